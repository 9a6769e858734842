package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware" // For GetReqID
	"github.com/go-playground/validator/v10"

	"github.com/aradsms/messenger_gateway/internal/messenger_service/domain"
	"github.com/aradsms/messenger_gateway/internal/messenger_service/provider"
)

// Multipart bodies above this are rejected before parsing.
const maxUploadBodyBytes = domain.FileMaxSize + 1<<20

// DeliveryService is implemented by *app.DeliveryAppService.
type DeliveryService interface {
	SendWithFallback(ctx context.Context, recipientID string, msg domain.Message) domain.DeliveryOutcome
	UploadAndSendWithFallback(ctx context.Context, recipientID string, data []byte, fileName, contentType string) domain.DeliveryOutcome
	SendDirect(ctx context.Context, recipientID string, msg domain.Message, tag string) (*provider.SendResponse, error)
	SendSenderAction(ctx context.Context, recipientID, action string) error
}

type DeliveryHandler struct {
	service  DeliveryService
	logger   *slog.Logger
	validate *validator.Validate
}

func NewDeliveryHandler(service DeliveryService, logger *slog.Logger, validate *validator.Validate) *DeliveryHandler {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &DeliveryHandler{
		service:  service,
		logger:   logger.With("handler", "delivery"),
		validate: validate,
	}
}

// RegisterRoutes registers delivery routes with the given router.
func (h *DeliveryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/messages", h.handleSendMessage)
	r.Post("/messages/direct", h.handleSendDirect)
	r.Post("/attachments", h.handleUploadAttachment)
	r.Post("/sender_actions", h.handleSenderAction)
}

func (h *DeliveryHandler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "Failed to decode send message request", "error", err)
		h.jsonError(w, logger, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.WarnContext(ctx, "Validation failed for send message request", "error", err)
		h.jsonError(w, logger, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := req.Message.ToMessage()
	if err != nil {
		h.jsonError(w, logger, err.Error(), http.StatusBadRequest)
		return
	}

	outcome := h.service.SendWithFallback(ctx, req.RecipientID, msg)
	logger.InfoContext(ctx, "Send message request completed",
		"recipient_id", req.RecipientID, "success", outcome.Success, "method", outcome.MethodUsed.String())
	h.jsonResponse(w, logger, outcome, http.StatusOK)
}

func (h *DeliveryHandler) handleSendDirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req DirectSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, logger, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		h.jsonError(w, logger, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := req.Message.ToMessage()
	if err != nil {
		h.jsonError(w, logger, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.service.SendDirect(ctx, req.RecipientID, msg, req.Tag)
	if err != nil {
		logger.WarnContext(ctx, "Direct send failed", "error", err, "recipient_id", req.RecipientID, "tag", req.Tag)
		var apiErr *provider.APIError
		if errors.As(err, &apiErr) {
			h.jsonError(w, logger, apiErr.Error(), http.StatusBadGateway)
			return
		}
		h.jsonError(w, logger, "Failed to send message", http.StatusBadGateway)
		return
	}
	h.jsonResponse(w, logger, resp, http.StatusOK)
}

func (h *DeliveryHandler) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodyBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.jsonError(w, logger, "Upload exceeds the maximum attachment size", http.StatusRequestEntityTooLarge)
			return
		}
		logger.WarnContext(ctx, "Failed to parse multipart upload", "error", err)
		h.jsonError(w, logger, "Invalid multipart body: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	recipientID := r.FormValue("recipient_id")
	if recipientID == "" {
		h.jsonError(w, logger, "recipient_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.jsonError(w, logger, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read uploaded file", "error", err)
		h.jsonError(w, logger, "Failed to read uploaded file", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = domain.SniffContentType(data)
	}
	if !domain.IsContentTypeSupported(contentType) {
		logger.WarnContext(ctx, "Content type not in the documented Messenger list, uploading anyway", "content_type", contentType)
	}

	outcome := h.service.UploadAndSendWithFallback(ctx, recipientID, data, header.Filename, contentType)
	logger.InfoContext(ctx, "Attachment request completed",
		"recipient_id", recipientID, "file_name", header.Filename, "content_type", contentType,
		"size", domain.FormatFileSize(int64(len(data))), "success", outcome.Success)
	h.jsonResponse(w, logger, outcome, http.StatusOK)
}

func (h *DeliveryHandler) handleSenderAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req SenderActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, logger, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		h.jsonError(w, logger, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SendSenderAction(ctx, req.RecipientID, req.Action); err != nil {
		logger.WarnContext(ctx, "Sender action failed", "error", err, "recipient_id", req.RecipientID, "action", req.Action)
		var apiErr *provider.APIError
		if errors.As(err, &apiErr) {
			h.jsonError(w, logger, apiErr.Error(), http.StatusBadGateway)
			return
		}
		h.jsonError(w, logger, "Failed to send sender action", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DeliveryHandler) jsonResponse(w http.ResponseWriter, logger *slog.Logger, body any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to write JSON response", "error", err)
	}
}

func (h *DeliveryHandler) jsonError(w http.ResponseWriter, logger *slog.Logger, message string, status int) {
	h.jsonResponse(w, logger, ErrorResponse{Error: message}, status)
}
