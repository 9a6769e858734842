package app

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aradsms/messenger_gateway/internal/messenger_service/domain"
	"github.com/aradsms/messenger_gateway/internal/messenger_service/provider"
)

// MessengerProvider is the platform side of a delivery. *provider.GraphClient implements it.
type MessengerProvider interface {
	Attempt(ctx context.Context, recipientID string, msg domain.Message, method domain.SendMethod) provider.AttemptResult
	UploadAttachment(ctx context.Context, data []byte, fileName, contentType string, attachmentType domain.AttachmentType) (string, error)
	Send(ctx context.Context, recipientID string, msg domain.Message) (*provider.SendResponse, error)
	SendWithTag(ctx context.Context, recipientID string, msg domain.Message, tag string) (*provider.SendResponse, error)
	SendSenderAction(ctx context.Context, recipientID, action string) error
}

// DeliveryAppService runs the two-step delivery ladder: a standard send, then one retry under
// the message tag when the platform reports the session window has closed. It holds no state
// between calls and is safe for concurrent use.
type DeliveryAppService struct {
	provider MessengerProvider
	logger   *slog.Logger
}

func NewDeliveryAppService(p MessengerProvider, logger *slog.Logger) *DeliveryAppService {
	return &DeliveryAppService{
		provider: p,
		logger:   logger.With("service", "delivery"),
	}
}

// SendWithFallback delivers msg to recipientID. Failures are reported in the outcome, never
// as an error.
func (s *DeliveryAppService) SendWithFallback(ctx context.Context, recipientID string, msg domain.Message) domain.DeliveryOutcome {
	timer := prometheus.NewTimer(deliveryDurationHist.WithLabelValues("send"))
	defer timer.ObserveDuration()

	outcome := s.sendWithFallback(ctx, recipientID, msg)
	s.record(ctx, recipientID, outcome)
	return outcome
}

func (s *DeliveryAppService) sendWithFallback(ctx context.Context, recipientID string, msg domain.Message) domain.DeliveryOutcome {
	first := s.provider.Attempt(ctx, recipientID, msg, domain.SendMethodDefault)
	if first.Success {
		return domain.OutcomeSucceeded(domain.SendMethodDefault)
	}

	firstErr := domain.ClassifyError(first.RawError)
	if !domain.IsOutsideWindowError(firstErr) {
		return domain.OutcomeFailed(domain.SendMethodDefault, firstErr.Summary(), false, false)
	}

	s.logger.InfoContext(ctx, "Recipient outside messaging window, retrying with message tag",
		"recipient_id", recipientID, "status_code", first.StatusCode)

	second := s.provider.Attempt(ctx, recipientID, msg, domain.SendMethodPrivilegedTag)
	if second.Success {
		return domain.OutcomeSucceeded(domain.SendMethodPrivilegedTag)
	}

	secondErr := domain.ClassifyError(second.RawError)
	if domain.IsPrivilegedTagDenied(secondErr) {
		s.logger.WarnContext(ctx, "Message tag not approved for this page",
			"recipient_id", recipientID, "error", secondErr.Summary())
		return domain.OutcomeFailed(domain.SendMethodPrivilegedTag, domain.PrivilegedTagDeniedMessage, true, true)
	}
	return domain.OutcomeFailed(domain.SendMethodPrivilegedTag, secondErr.Summary(), true, false)
}

// UploadAndSendWithFallback uploads data, then sends the resulting attachment reference
// through SendWithFallback. Upload failures end the call without a send.
func (s *DeliveryAppService) UploadAndSendWithFallback(ctx context.Context, recipientID string, data []byte, fileName, contentType string) domain.DeliveryOutcome {
	timer := prometheus.NewTimer(deliveryDurationHist.WithLabelValues("upload_and_send"))
	defer timer.ObserveDuration()

	attachmentType := domain.AttachmentTypeFor(contentType)
	if err := domain.ValidateUploadSize(attachmentType, int64(len(data))); err != nil {
		return s.uploadFailed(ctx, recipientID, fileName, err)
	}

	attachmentID, err := s.provider.UploadAttachment(ctx, data, fileName, contentType, attachmentType)
	if err != nil {
		return s.uploadFailed(ctx, recipientID, fileName, err)
	}

	return s.SendWithFallback(ctx, recipientID, domain.AttachmentRef(attachmentType, attachmentID))
}

// SendDirect makes exactly one send with no fallback. An empty tag sends a standard response,
// otherwise the message goes out under tag. Failures are returned as errors.
func (s *DeliveryAppService) SendDirect(ctx context.Context, recipientID string, msg domain.Message, tag string) (*provider.SendResponse, error) {
	timer := prometheus.NewTimer(deliveryDurationHist.WithLabelValues("direct_send"))
	defer timer.ObserveDuration()

	var (
		resp *provider.SendResponse
		err  error
	)
	tagLabel := tag
	if tag == "" {
		tagLabel = "none"
		resp, err = s.provider.Send(ctx, recipientID, msg)
	} else {
		resp, err = s.provider.SendWithTag(ctx, recipientID, msg, tag)
	}

	if err != nil {
		directSendsCounter.WithLabelValues(tagLabel, "failed").Inc()
		s.logger.WarnContext(ctx, "Direct send failed", "recipient_id", recipientID, "tag", tag, "error", err)
		return nil, err
	}
	directSendsCounter.WithLabelValues(tagLabel, "success").Inc()
	s.logger.InfoContext(ctx, "Direct send delivered", "recipient_id", recipientID, "tag", tag, "message_id", resp.MessageID)
	return resp, nil
}

// SendSenderAction forwards a typing indicator or mark_seen. It is not subject to the ladder.
func (s *DeliveryAppService) SendSenderAction(ctx context.Context, recipientID, action string) error {
	return s.provider.SendSenderAction(ctx, recipientID, action)
}

func (s *DeliveryAppService) uploadFailed(ctx context.Context, recipientID, fileName string, err error) domain.DeliveryOutcome {
	s.logger.WarnContext(ctx, "Attachment upload failed", "recipient_id", recipientID, "file_name", fileName, "error", err)
	deliveryOutcomesCounter.WithLabelValues(domain.SendMethodDefault.String(), "upload_failed").Inc()
	return domain.OutcomeFailed(domain.SendMethodDefault, "Failed to upload attachment: "+err.Error(), false, false)
}

func (s *DeliveryAppService) record(ctx context.Context, recipientID string, outcome domain.DeliveryOutcome) {
	method := outcome.MethodUsed.String()
	switch {
	case outcome.Success:
		deliveryOutcomesCounter.WithLabelValues(method, "success").Inc()
		s.logger.InfoContext(ctx, "Message delivered", "recipient_id", recipientID, "method", method)
	case outcome.PrivilegedTagDenied:
		deliveryOutcomesCounter.WithLabelValues(method, "tag_denied").Inc()
		s.logger.WarnContext(ctx, "Message not delivered, message tag denied", "recipient_id", recipientID)
	default:
		deliveryOutcomesCounter.WithLabelValues(method, "failed").Inc()
		s.logger.WarnContext(ctx, "Message not delivered",
			"recipient_id", recipientID, "method", method,
			"tag_required", outcome.PrivilegedTagRequired, "error", outcome.ErrorMessage)
	}
}
