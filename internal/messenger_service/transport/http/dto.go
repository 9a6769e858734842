package http

import "github.com/aradsms/messenger_gateway/internal/messenger_service/domain"

// SendMessageRequest DTO for POST /v1/messages
type SendMessageRequest struct {
	RecipientID string             `json:"recipient_id" validate:"required"`
	Message     domain.MessageSpec `json:"message" validate:"required"`
}

// DirectSendRequest DTO for POST /v1/messages/direct. An empty Tag sends a standard response.
type DirectSendRequest struct {
	RecipientID string             `json:"recipient_id" validate:"required"`
	Message     domain.MessageSpec `json:"message" validate:"required"`
	Tag         string             `json:"tag,omitempty" validate:"omitempty,oneof=CONFIRMED_EVENT_UPDATE POST_PURCHASE_UPDATE ACCOUNT_UPDATE HUMAN_AGENT"`
}

// SenderActionRequest DTO for POST /v1/sender_actions
type SenderActionRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Action      string `json:"action" validate:"required,oneof=typing_on typing_off mark_seen"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
