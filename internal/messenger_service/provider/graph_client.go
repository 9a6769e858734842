package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aradsms/messenger_gateway/internal/messenger_service/domain"
)

const (
	endpointMessages    = "messages"
	endpointAttachments = "message_attachments"

	messagingTypeMessageTag = "MESSAGE_TAG"
)

// GraphClient talks to the Messenger Send and Attachment Upload APIs for one page.
type GraphClient struct {
	logger      *slog.Logger
	httpClient  *http.Client
	baseURL     string
	apiVersion  string
	pageID      string
	accessToken string
	fallbackTag string
}

// NewGraphClient builds a client. An empty pageID targets "me" (the page owning the token);
// an empty fallbackTag uses HUMAN_AGENT.
func NewGraphClient(logger *slog.Logger, baseURL, apiVersion, pageID, accessToken, fallbackTag string, httpClient *http.Client) *GraphClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if pageID == "" {
		pageID = "me"
	}
	if fallbackTag == "" {
		fallbackTag = domain.TagHumanAgent
	}
	return &GraphClient{
		logger:      logger.With("provider", "messenger_graph"),
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiVersion:  strings.Trim(apiVersion, "/"),
		pageID:      pageID,
		accessToken: accessToken,
		fallbackTag: fallbackTag,
	}
}

// FallbackTag is the tag used for SendMethodPrivilegedTag attempts.
func (c *GraphClient) FallbackTag() string { return c.fallbackTag }

type recipientRef struct {
	ID string `json:"id"`
}

type sendEnvelope struct {
	Recipient     recipientRef   `json:"recipient"`
	Message       map[string]any `json:"message,omitempty"`
	SenderAction  string         `json:"sender_action,omitempty"`
	MessagingType string         `json:"messaging_type,omitempty"`
	Tag           string         `json:"tag,omitempty"`
	PersonaID     string         `json:"persona_id,omitempty"`
}

func messageEnvelope(recipientID string, msg domain.Message) sendEnvelope {
	return sendEnvelope{Recipient: recipientRef{ID: recipientID}, Message: msg.Payload(), PersonaID: msg.PersonaID()}
}

// SendResponse is the success body of the Send API.
type SendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type uploadResponse struct {
	AttachmentID string `json:"attachment_id"`
}

// AttemptResult is the reduced result of one delivery attempt. RawError holds the response
// body, or a transport description when no response was received.
type AttemptResult struct {
	Success    bool
	StatusCode int
	RawError   string
}

// Attempt performs one send under method. It never returns an error: transport failures and
// platform rejections both come back as Success=false with RawError set.
func (c *GraphClient) Attempt(ctx context.Context, recipientID string, msg domain.Message, method domain.SendMethod) AttemptResult {
	env := messageEnvelope(recipientID, msg)
	if method == domain.SendMethodPrivilegedTag {
		env.MessagingType = messagingTypeMessageTag
		env.Tag = c.fallbackTag
	}

	status, body, err := c.postJSON(ctx, endpointMessages, env)
	if err != nil {
		c.logger.WarnContext(ctx, "Messenger send attempt got no response",
			"recipient_id", recipientID, "method", method.String(), "error", err)
		return AttemptResult{Success: false, RawError: "transport error: " + err.Error()}
	}
	if !isSuccess(status) {
		c.logger.WarnContext(ctx, "Messenger send attempt rejected",
			"recipient_id", recipientID, "method", method.String(), "status_code", status, "body", string(body))
		return AttemptResult{Success: false, StatusCode: status, RawError: string(body)}
	}

	c.logger.InfoContext(ctx, "Messenger send attempt accepted",
		"recipient_id", recipientID, "method", method.String(), "kind", msg.Kind().String())
	return AttemptResult{Success: true, StatusCode: status}
}

// UploadAttachment uploads data as a reusable attachment and returns its attachment_id.
func (c *GraphClient) UploadAttachment(ctx context.Context, data []byte, fileName, contentType string, attachmentType domain.AttachmentType) (string, error) {
	descriptor, err := json.Marshal(map[string]any{
		"attachment": map[string]any{
			"type":    string(attachmentType),
			"payload": map[string]any{"is_reusable": true},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal attachment descriptor: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("message", string(descriptor)); err != nil {
		return "", fmt.Errorf("failed to write message part: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="filedata"; filename="%s"`, quoteEscaper.Replace(fileName)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create filedata part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write filedata part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	status, body, err := c.post(ctx, endpointAttachments, mw.FormDataContentType(), &buf)
	if err != nil {
		c.logger.ErrorContext(ctx, "Attachment upload got no response", "file_name", fileName, "error", err)
		return "", fmt.Errorf("attachment upload failed: %w", err)
	}
	if !isSuccess(status) {
		apiErr := newAPIError(status, body)
		c.logger.WarnContext(ctx, "Attachment upload rejected", "file_name", fileName, "status_code", status, "body", string(body))
		return "", apiErr
	}

	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.WarnContext(ctx, "Failed to parse attachment upload response", "error", err, "body", string(body))
		return "", fmt.Errorf("%w: %v", ErrMissingAttachmentID, err)
	}
	if resp.AttachmentID == "" {
		return "", ErrMissingAttachmentID
	}

	c.logger.InfoContext(ctx, "Attachment uploaded",
		"file_name", fileName, "attachment_type", string(attachmentType), "size", len(data), "attachment_id", resp.AttachmentID)
	return resp.AttachmentID, nil
}

// Send delivers msg as a standard response. Unlike Attempt it returns platform and transport
// failures as errors (*APIError for non-2xx responses).
func (c *GraphClient) Send(ctx context.Context, recipientID string, msg domain.Message) (*SendResponse, error) {
	return c.send(ctx, messageEnvelope(recipientID, msg))
}

// SendWithTag delivers msg with messaging_type MESSAGE_TAG and the given tag.
func (c *GraphClient) SendWithTag(ctx context.Context, recipientID string, msg domain.Message, tag string) (*SendResponse, error) {
	if !domain.IsKnownTag(tag) {
		return nil, fmt.Errorf("unknown message tag %q", tag)
	}
	env := messageEnvelope(recipientID, msg)
	env.MessagingType = messagingTypeMessageTag
	env.Tag = tag
	return c.send(ctx, env)
}

// SendSenderAction sends typing_on, typing_off or mark_seen.
func (c *GraphClient) SendSenderAction(ctx context.Context, recipientID, action string) error {
	switch action {
	case domain.SenderActionTypingOn, domain.SenderActionTypingOff, domain.SenderActionMarkSeen:
	default:
		return fmt.Errorf("unknown sender action %q", action)
	}
	_, err := c.send(ctx, sendEnvelope{Recipient: recipientRef{ID: recipientID}, SenderAction: action})
	return err
}

func (c *GraphClient) send(ctx context.Context, env sendEnvelope) (*SendResponse, error) {
	status, body, err := c.postJSON(ctx, endpointMessages, env)
	if err != nil {
		return nil, fmt.Errorf("messenger send failed: %w", err)
	}
	if !isSuccess(status) {
		return nil, newAPIError(status, body)
	}

	var resp SendResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			c.logger.WarnContext(ctx, "Sent via Messenger, but failed to parse response body", "error", err, "body", string(body))
		}
	}
	return &resp, nil
}

func (c *GraphClient) postJSON(ctx context.Context, endpoint string, payload any) (int, []byte, error) {
	reqBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.post(ctx, endpoint, "application/json", bytes.NewReader(reqBytes))
}

// post returns an error only when no response was received.
func (c *GraphClient) post(ctx context.Context, endpoint, contentType string, body io.Reader) (int, []byte, error) {
	timer := prometheus.NewTimer(graphRequestDurationHist.WithLabelValues(endpoint))
	defer timer.ObserveDuration()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(endpoint), body)
	if err != nil {
		graphRequestsCounter.WithLabelValues(endpoint, "transport_error").Inc()
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		graphRequestsCounter.WithLabelValues(endpoint, "transport_error").Inc()
		return 0, nil, stripURL(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		graphRequestsCounter.WithLabelValues(endpoint, "transport_error").Inc()
		return 0, nil, fmt.Errorf("failed to read response body (status %d): %w", httpResp.StatusCode, err)
	}

	result := "ok"
	if !isSuccess(httpResp.StatusCode) {
		result = "api_error"
	}
	graphRequestsCounter.WithLabelValues(endpoint, result).Inc()
	c.logger.DebugContext(ctx, "Graph API response", "endpoint", endpoint, "status_code", httpResp.StatusCode)
	return httpResp.StatusCode, respBody, nil
}

func (c *GraphClient) endpointURL(endpoint string) string {
	q := url.Values{}
	q.Set("access_token", c.accessToken)
	return fmt.Sprintf("%s/%s/%s/%s?%s", c.baseURL, c.apiVersion, url.PathEscape(c.pageID), endpoint, q.Encode())
}

// stripURL drops the request URL from client errors so the access token never reaches logs
// or outcomes.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
