package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Graph API error subcodes the fallback ladder reacts to.
const (
	// SubcodeOutsideWindow is returned when a standard reply is sent after the 24h session window closed.
	SubcodeOutsideWindow = 2018278
	// SubcodeTagNotApproved is returned when the page may not use the requested message tag.
	SubcodeTagNotApproved = 2018276
)

// ErrorDescriptor is the structured view of a Graph API error body. Nil / empty fields were
// absent or unparseable.
type ErrorDescriptor struct {
	Code    *int
	Subcode *int
	Message string
	Type    string
}

type graphErrorBody struct {
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Subcode json.RawMessage `json:"error_subcode"`
		Message json.RawMessage `json:"message"`
		Type    json.RawMessage `json:"type"`
	} `json:"error"`
}

// ClassifyError parses a raw error body. It never fails: a body that is not a JSON object
// degrades to a descriptor whose Message is the raw body.
func ClassifyError(raw string) ErrorDescriptor {
	if raw == "" {
		return ErrorDescriptor{}
	}

	var body graphErrorBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return ErrorDescriptor{Message: raw}
	}
	if body.Error == nil {
		return ErrorDescriptor{}
	}

	return ErrorDescriptor{
		Code:    rawInt(body.Error.Code),
		Subcode: rawInt(body.Error.Subcode),
		Message: rawString(body.Error.Message),
		Type:    rawString(body.Error.Type),
	}
}

// IsOutsideWindowError reports whether d looks like a session-window rejection. The platform
// does not always send the subcode, so any message mentioning "24" or "window" also matches.
func IsOutsideWindowError(d ErrorDescriptor) bool {
	if d.Subcode != nil && *d.Subcode == SubcodeOutsideWindow {
		return true
	}
	msg := strings.ToLower(d.Message)
	return strings.Contains(msg, "24") || strings.Contains(msg, "window")
}

// IsPrivilegedTagDenied reports whether d looks like the page lacking permission for the
// human agent tag. Any message mentioning HUMAN_AGENT matches.
func IsPrivilegedTagDenied(d ErrorDescriptor) bool {
	if d.Subcode != nil && *d.Subcode == SubcodeTagNotApproved {
		return true
	}
	return strings.Contains(strings.ToLower(d.Message), strings.ToLower(TagHumanAgent))
}

// Summary renders d for outcomes and logs.
func (d ErrorDescriptor) Summary() string {
	if d.Message != "" {
		return d.Message
	}
	if d.Code != nil {
		if d.Subcode != nil {
			return fmt.Sprintf("Messenger API error (code %d, subcode %d)", *d.Code, *d.Subcode)
		}
		return fmt.Sprintf("Messenger API error (code %d)", *d.Code)
	}
	return "unknown error"
}

func rawInt(raw json.RawMessage) *int {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
