package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidMessage is returned by MessageSpec.ToMessage when required fields are missing.
var ErrInvalidMessage = errors.New("invalid message")

// MessageSpec is the JSON description of a Message accepted by the HTTP API and NATS jobs.
type MessageSpec struct {
	Type           string           `json:"type" validate:"required,oneof=text image video audio file attachment button_template generic_template"`
	Text           string           `json:"text,omitempty"`
	URL            string           `json:"url,omitempty" validate:"omitempty,url"`
	AttachmentType string           `json:"attachment_type,omitempty" validate:"omitempty,oneof=image video audio file"`
	AttachmentID   string           `json:"attachment_id,omitempty"`
	Buttons        []ButtonSpec     `json:"buttons,omitempty" validate:"max=3,dive"`
	Elements       []ElementSpec    `json:"elements,omitempty" validate:"max=10,dive"`
	QuickReplies   []QuickReplySpec `json:"quick_replies,omitempty" validate:"max=13,dive"`
	PersonaID      string           `json:"persona_id,omitempty"`
}

type ButtonSpec struct {
	Type               string `json:"type" validate:"required,oneof=web_url postback phone_number"`
	Title              string `json:"title" validate:"required"`
	URL                string `json:"url,omitempty"`
	Payload            string `json:"payload,omitempty"`
	WebviewHeightRatio string `json:"webview_height_ratio,omitempty" validate:"omitempty,oneof=compact tall full"`
}

type ElementSpec struct {
	Title         string       `json:"title" validate:"required"`
	Subtitle      string       `json:"subtitle,omitempty"`
	ImageURL      string       `json:"image_url,omitempty"`
	DefaultAction *ButtonSpec  `json:"default_action,omitempty"`
	Buttons       []ButtonSpec `json:"buttons,omitempty" validate:"max=3,dive"`
}

type QuickReplySpec struct {
	ContentType string `json:"content_type,omitempty" validate:"omitempty,oneof=text user_phone_number user_email"`
	Title       string `json:"title,omitempty"`
	Payload     string `json:"payload,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// ToMessage converts s into a Message.
func (s MessageSpec) ToMessage() (Message, error) {
	var msg Message
	switch s.Type {
	case "text":
		if s.Text == "" {
			return Message{}, fmt.Errorf("%w: text is required", ErrInvalidMessage)
		}
		msg = Text(s.Text)
	case "image", "video", "audio", "file":
		if s.URL == "" {
			return Message{}, fmt.Errorf("%w: url is required for %s", ErrInvalidMessage, s.Type)
		}
		msg = urlMessage(AttachmentType(s.Type), s.URL)
	case "attachment":
		if s.AttachmentID == "" {
			return Message{}, fmt.Errorf("%w: attachment_id is required", ErrInvalidMessage)
		}
		t := AttachmentType(s.AttachmentType)
		if t == "" {
			t = AttachmentFile
		}
		msg = AttachmentRef(t, s.AttachmentID)
	case "button_template":
		if s.Text == "" || len(s.Buttons) == 0 {
			return Message{}, fmt.Errorf("%w: button_template needs text and buttons", ErrInvalidMessage)
		}
		buttons, err := toButtons(s.Buttons)
		if err != nil {
			return Message{}, err
		}
		msg = ButtonTemplate(s.Text, buttons...)
	case "generic_template":
		if len(s.Elements) == 0 {
			return Message{}, fmt.Errorf("%w: generic_template needs elements", ErrInvalidMessage)
		}
		elements := make([]GenericElement, 0, len(s.Elements))
		for _, e := range s.Elements {
			el, err := e.toElement()
			if err != nil {
				return Message{}, err
			}
			elements = append(elements, el)
		}
		msg = GenericTemplate(elements...)
	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, s.Type)
	}

	if len(s.QuickReplies) > 0 {
		replies := make([]QuickReply, 0, len(s.QuickReplies))
		for _, q := range s.QuickReplies {
			replies = append(replies, QuickReply(q))
		}
		msg = msg.WithQuickReplies(replies...)
	}
	if s.PersonaID != "" {
		msg = msg.WithPersona(s.PersonaID)
	}
	return msg, nil
}

func urlMessage(t AttachmentType, url string) Message {
	switch t {
	case AttachmentImage:
		return Image(url)
	case AttachmentVideo:
		return Video(url)
	case AttachmentAudio:
		return Audio(url)
	default:
		return File(url)
	}
}

func (b ButtonSpec) toButton() (Button, error) {
	switch ButtonKind(b.Type) {
	case ButtonWebURL:
		if b.URL == "" {
			return Button{}, fmt.Errorf("%w: web_url button %q needs url", ErrInvalidMessage, b.Title)
		}
		return URLButton(b.Title, b.URL, b.WebviewHeightRatio), nil
	case ButtonPostback:
		return PostbackButton(b.Title, b.Payload), nil
	case ButtonCall:
		if b.Payload == "" {
			return Button{}, fmt.Errorf("%w: phone_number button %q needs payload", ErrInvalidMessage, b.Title)
		}
		return CallButton(b.Title, b.Payload), nil
	default:
		return Button{}, fmt.Errorf("%w: unknown button type %q", ErrInvalidMessage, b.Type)
	}
}

func toButtons(specs []ButtonSpec) ([]Button, error) {
	buttons := make([]Button, 0, len(specs))
	for _, b := range specs {
		btn, err := b.toButton()
		if err != nil {
			return nil, err
		}
		buttons = append(buttons, btn)
	}
	return buttons, nil
}

func (e ElementSpec) toElement() (GenericElement, error) {
	buttons, err := toButtons(e.Buttons)
	if err != nil {
		return GenericElement{}, err
	}
	el := GenericElement{Title: e.Title, Subtitle: e.Subtitle, ImageURL: e.ImageURL, Buttons: buttons}
	if e.DefaultAction != nil {
		action, err := e.DefaultAction.toButton()
		if err != nil {
			return GenericElement{}, err
		}
		el.DefaultAction = &action
	}
	return el, nil
}

// AttachmentUpload carries a binary payload inside a SendJob. Data is base64 in JSON.
type AttachmentUpload struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data"`
}

// SendJob is a queued delivery request. Exactly one of Message and Attachment is set.
type SendJob struct {
	JobID       string            `json:"job_id,omitempty"`
	RecipientID string            `json:"recipient_id"`
	Message     *MessageSpec      `json:"message,omitempty"`
	Attachment  *AttachmentUpload `json:"attachment,omitempty"`
}

// Validate checks the job shape, not the message content.
func (j SendJob) Validate() error {
	if j.RecipientID == "" {
		return errors.New("recipient_id is required")
	}
	if (j.Message == nil) == (j.Attachment == nil) {
		return errors.New("exactly one of message or attachment is required")
	}
	return nil
}

// OutcomeEvent is published once a SendJob finishes.
type OutcomeEvent struct {
	JobID       string          `json:"job_id"`
	RecipientID string          `json:"recipient_id"`
	Outcome     DeliveryOutcome `json:"outcome"`
	CompletedAt time.Time       `json:"completed_at"`
}
