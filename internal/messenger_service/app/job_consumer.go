package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/aradsms/messenger_gateway/internal/messenger_service/domain"
)

// MessageBroker is the subset of *messagebroker.NatsClient the consumer needs.
type MessageBroker interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject, queueGroup string, handler nats.MsgHandler) (*nats.Subscription, error)
}

// Deliverer runs fallback-aware deliveries. *DeliveryAppService implements it.
type Deliverer interface {
	SendWithFallback(ctx context.Context, recipientID string, msg domain.Message) domain.DeliveryOutcome
	UploadAndSendWithFallback(ctx context.Context, recipientID string, data []byte, fileName, contentType string) domain.DeliveryOutcome
}

// JobConsumer consumes SendJobs from NATS and publishes an OutcomeEvent for each.
type JobConsumer struct {
	broker         MessageBroker
	deliverer      Deliverer
	logger         *slog.Logger
	outcomeSubject string
	jobTimeout     time.Duration
	sniff          func(data []byte) string
	now            func() time.Time
}

// NewJobConsumer creates a consumer. sniff detects a content type for attachment jobs that
// omit one; nil leaves the type empty (uploaded as a generic file).
func NewJobConsumer(broker MessageBroker, deliverer Deliverer, logger *slog.Logger, outcomeSubject string, jobTimeout time.Duration, sniff func([]byte) string) *JobConsumer {
	return &JobConsumer{
		broker:         broker,
		deliverer:      deliverer,
		logger:         logger.With("component", "job_consumer"),
		outcomeSubject: outcomeSubject,
		jobTimeout:     jobTimeout,
		sniff:          sniff,
		now:            time.Now,
	}
}

// StartConsuming subscribes with a queue group and blocks until ctx is cancelled.
func (c *JobConsumer) StartConsuming(ctx context.Context, subject, queueGroup string) error {
	// Jobs still buffered when ctx ends are drained; they keep running and publish their outcome.
	jobParent := context.WithoutCancel(ctx)
	handler := func(msg *nats.Msg) {
		natsJobsReceivedCounter.WithLabelValues(msg.Subject).Inc()
		c.handle(jobParent, msg)
	}

	c.logger.InfoContext(ctx, "Starting NATS send job subscription", "subject", subject, "queue_group", queueGroup)
	if _, err := c.broker.Subscribe(ctx, subject, queueGroup, handler); err != nil {
		c.logger.ErrorContext(ctx, "NATS send job subscription failed", "error", err, "subject", subject)
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	<-ctx.Done()
	c.logger.InfoContext(ctx, "NATS send job subscription ended", "subject", subject)
	return nil
}

func (c *JobConsumer) handle(ctx context.Context, msg *nats.Msg) {
	var job domain.SendJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		jobsProcessedCounter.WithLabelValues("invalid").Inc()
		c.logger.ErrorContext(ctx, "Failed to deserialize send job", "error", err, "subject", msg.Subject, "data_len", len(msg.Data))
		return
	}
	if err := job.Validate(); err != nil {
		jobsProcessedCounter.WithLabelValues("invalid").Inc()
		c.logger.ErrorContext(ctx, "Invalid send job", "error", err, "job_id", job.JobID)
		return
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}

	jobCtx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	outcome, err := c.run(jobCtx, job)
	if err != nil {
		jobsProcessedCounter.WithLabelValues("invalid").Inc()
		c.logger.ErrorContext(ctx, "Send job rejected", "error", err, "job_id", job.JobID)
		return
	}

	status := "delivered"
	if !outcome.Success {
		status = "failed"
	}
	jobsProcessedCounter.WithLabelValues(status).Inc()

	event := domain.OutcomeEvent{
		JobID:       job.JobID,
		RecipientID: job.RecipientID,
		Outcome:     outcome,
		CompletedAt: c.now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to marshal outcome event", "error", err, "job_id", job.JobID)
		return
	}

	// Publish with ctx, not jobCtx: an expired job deadline must not drop the outcome.
	if err := c.broker.Publish(ctx, c.outcomeSubject, data); err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish outcome event", "error", err, "job_id", job.JobID)
	}
	if msg.Reply != "" {
		if err := c.broker.Publish(ctx, msg.Reply, data); err != nil {
			c.logger.ErrorContext(ctx, "Failed to reply with outcome event", "error", err, "job_id", job.JobID)
		}
	}
	c.logger.InfoContext(ctx, "Send job processed", "job_id", job.JobID, "success", outcome.Success, "method", outcome.MethodUsed.String())
}

func (c *JobConsumer) run(ctx context.Context, job domain.SendJob) (domain.DeliveryOutcome, error) {
	if job.Attachment != nil {
		contentType := job.Attachment.ContentType
		if contentType == "" && c.sniff != nil {
			contentType = c.sniff(job.Attachment.Data)
		}
		return c.deliverer.UploadAndSendWithFallback(ctx, job.RecipientID, job.Attachment.Data, job.Attachment.FileName, contentType), nil
	}

	msg, err := job.Message.ToMessage()
	if err != nil {
		return domain.DeliveryOutcome{}, err
	}
	return c.deliverer.SendWithFallback(ctx, job.RecipientID, msg), nil
}
