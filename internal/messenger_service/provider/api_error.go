package provider

import (
	"errors"
	"fmt"

	"github.com/aradsms/messenger_gateway/internal/messenger_service/domain"
)

// ErrMissingAttachmentID is returned when an upload succeeds at the HTTP level but the
// response carries no attachment_id.
var ErrMissingAttachmentID = errors.New("upload response did not contain an attachment_id")

// APIError is a non-2xx response from the Graph API on the plain (non-fallback) path.
type APIError struct {
	StatusCode int
	Body       string
	Descriptor domain.ErrorDescriptor
}

func newAPIError(statusCode int, body []byte) *APIError {
	raw := string(body)
	return &APIError{StatusCode: statusCode, Body: raw, Descriptor: domain.ClassifyError(raw)}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messenger api error: status %d: %s", e.StatusCode, e.Descriptor.Summary())
}
