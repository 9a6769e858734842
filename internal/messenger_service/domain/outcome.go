package domain

import (
	"encoding/json"
	"fmt"
)

// SendMethod is the policy a delivery attempt ran under.
type SendMethod int

const (
	// SendMethodDefault sends a standard response inside the session window.
	SendMethodDefault SendMethod = iota
	// SendMethodPrivilegedTag sends with messaging_type MESSAGE_TAG and the configured tag.
	SendMethodPrivilegedTag
)

func (m SendMethod) String() string {
	switch m {
	case SendMethodDefault:
		return "default"
	case SendMethodPrivilegedTag:
		return "privileged_tag"
	default:
		return fmt.Sprintf("SendMethod(%d)", int(m))
	}
}

func (m SendMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *SendMethod) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "default":
		*m = SendMethodDefault
	case "privileged_tag":
		*m = SendMethodPrivilegedTag
	default:
		return fmt.Errorf("unknown send method %q", s)
	}
	return nil
}

// PrivilegedTagDeniedMessage is reported when the tagged retry was rejected for lack of the
// Human Agent permission.
const PrivilegedTagDeniedMessage = "Message could not be delivered: the recipient is outside the 24-hour messaging window " +
	"and the page is not approved to use the HUMAN_AGENT tag. Request the Human Agent permission in the app dashboard."

// DeliveryOutcome is the result of a fallback-aware send.
type DeliveryOutcome struct {
	Success               bool       `json:"success"`
	MethodUsed            SendMethod `json:"method_used"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	PrivilegedTagRequired bool       `json:"privileged_tag_required"`
	PrivilegedTagDenied   bool       `json:"privileged_tag_denied"`
}

// OutcomeSucceeded reports delivery under method.
func OutcomeSucceeded(method SendMethod) DeliveryOutcome {
	return DeliveryOutcome{Success: true, MethodUsed: method}
}

// OutcomeFailed reports a failed delivery. denied implies required.
func OutcomeFailed(method SendMethod, errorMessage string, tagRequired, tagDenied bool) DeliveryOutcome {
	if errorMessage == "" {
		errorMessage = "unknown error"
	}
	return DeliveryOutcome{
		Success:               false,
		MethodUsed:            method,
		ErrorMessage:          errorMessage,
		PrivilegedTagRequired: tagRequired || tagDenied,
		PrivilegedTagDenied:   tagDenied,
	}
}
