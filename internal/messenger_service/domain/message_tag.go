package domain

// Message tags allow sending outside the 24 hour session window for the listed use cases only.
const (
	// TagConfirmedEventUpdate: reminders or changes for an event the user registered for.
	TagConfirmedEventUpdate = "CONFIRMED_EVENT_UPDATE"
	// TagPostPurchaseUpdate: order confirmations and shipping updates. No promotions.
	TagPostPurchaseUpdate = "POST_PURCHASE_UPDATE"
	// TagAccountUpdate: non-recurring changes to the user's application or account.
	TagAccountUpdate = "ACCOUNT_UPDATE"
	// TagHumanAgent: a human replying within 7 days of the user's message. Requires the
	// Human Agent permission on the app.
	TagHumanAgent = "HUMAN_AGENT"
)

// IsKnownTag reports whether tag is one of the tags above.
func IsKnownTag(tag string) bool {
	switch tag {
	case TagConfirmedEventUpdate, TagPostPurchaseUpdate, TagAccountUpdate, TagHumanAgent:
		return true
	}
	return false
}

// Sender actions for the plain send path.
const (
	SenderActionTypingOn  = "typing_on"
	SenderActionTypingOff = "typing_off"
	SenderActionMarkSeen  = "mark_seen"
)
