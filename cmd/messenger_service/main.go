package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/aradsms/messenger_gateway/internal/messenger_service/app"
	"github.com/aradsms/messenger_gateway/internal/messenger_service/domain"
	"github.com/aradsms/messenger_gateway/internal/messenger_service/provider"
	httptransport "github.com/aradsms/messenger_gateway/internal/messenger_service/transport/http"
	"github.com/aradsms/messenger_gateway/internal/platform/config"
	"github.com/aradsms/messenger_gateway/internal/platform/logger"
	"github.com/aradsms/messenger_gateway/internal/platform/messagebroker"
)

const serviceName = "messenger_service"

func main() {
	configPath := flag.String("config", "", "directory containing config.defaults.yaml")
	flag.Parse()

	// Main context for startup and long-running operations until shutdown signal
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	log.Info("Starting service...", "page_id", cfg.PageID, "api_version", cfg.APIVersion, "fallback_tag", cfg.FallbackTag)

	graphClient := provider.NewGraphClient(log, cfg.GraphBaseURL, cfg.APIVersion, cfg.PageID, cfg.PageAccessToken,
		cfg.FallbackTag, &http.Client{Timeout: cfg.HTTPTimeout})
	deliveryService := app.NewDeliveryAppService(graphClient, log)

	g, groupCtx := errgroup.WithContext(mainCtx)

	if cfg.NATSUrl != "" {
		nc, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, log)
		if err != nil {
			log.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		log.Info("NATS connection initialized")

		consumer := app.NewJobConsumer(nc, deliveryService, log, cfg.NATSOutcomeSubject, cfg.JobTimeout, domain.SniffContentType)
		g.Go(func() error {
			return consumer.StartConsuming(groupCtx, cfg.NATSSendSubject, cfg.NATSQueueGroup)
		})
	} else {
		log.Info("NATS URL not configured, job consumer disabled")
	}

	handler := httptransport.NewDeliveryHandler(deliveryService, log, validator.New(validator.WithRequiredStructEnabled()))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: httptransport.NewRouter(handler, cfg.JWTSecret, cfg.RequestTimeout, log),
	}

	g.Go(func() error {
		log.Info("HTTP server starting", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		log.Info("Shutting down HTTP server...")
		return server.Shutdown(shutdownCtx)
	})

	log.Info("Service components initialized. Service is ready.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var groupErr error
	select {
	case sig := <-sigCh:
		log.Info("Received termination signal", "signal", sig.String())
	case groupErr = <-watchGroup(g):
		log.Error("A critical component failed, initiating shutdown", "error", groupErr)
	}

	log.Info("Attempting graceful shutdown...")
	mainCancel()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Error during graceful shutdown of components", "error", err)
	}
	log.Info("Service shutdown complete.")
}

// watchGroup returns the error that caused the group to exit.
func watchGroup(g *errgroup.Group) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()
	return errCh
}
