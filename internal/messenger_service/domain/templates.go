package domain

// ButtonKind is one of the button types the templates accept.
type ButtonKind string

const (
	ButtonWebURL   ButtonKind = "web_url"
	ButtonPostback ButtonKind = "postback"
	ButtonCall     ButtonKind = "phone_number"
)

// Button is a template button. Use URLButton, PostbackButton or CallButton.
type Button struct {
	kind               ButtonKind
	title              string
	url                string
	payload            string
	webviewHeightRatio string
}

// URLButton opens url. heightRatio (compact, tall, full) is optional.
func URLButton(title, url, heightRatio string) Button {
	return Button{kind: ButtonWebURL, title: title, url: url, webviewHeightRatio: heightRatio}
}

// PostbackButton sends payload back to the page webhook when tapped.
func PostbackButton(title, payload string) Button {
	return Button{kind: ButtonPostback, title: title, payload: payload}
}

// CallButton dials phoneNumber.
func CallButton(title, phoneNumber string) Button {
	return Button{kind: ButtonCall, title: title, payload: phoneNumber}
}

func (b Button) Kind() ButtonKind { return b.kind }

func (b Button) toPayload() map[string]any {
	out := map[string]any{"type": string(b.kind), "title": b.title}
	switch b.kind {
	case ButtonWebURL:
		out["url"] = b.url
		if b.webviewHeightRatio != "" {
			out["webview_height_ratio"] = b.webviewHeightRatio
		}
	case ButtonPostback, ButtonCall:
		out["payload"] = b.payload
	}
	return out
}

// GenericElement is one card of a generic template.
type GenericElement struct {
	Title         string
	Subtitle      string
	ImageURL      string
	DefaultAction *Button
	Buttons       []Button
}

func (e GenericElement) toPayload() map[string]any {
	out := map[string]any{"title": e.Title}
	if e.Subtitle != "" {
		out["subtitle"] = e.Subtitle
	}
	if e.ImageURL != "" {
		out["image_url"] = e.ImageURL
	}
	if e.DefaultAction != nil {
		out["default_action"] = e.DefaultAction.toPayload()
	}
	if len(e.Buttons) > 0 {
		buttons := make([]map[string]any, 0, len(e.Buttons))
		for _, b := range e.Buttons {
			buttons = append(buttons, b.toPayload())
		}
		out["buttons"] = buttons
	}
	return out
}

// QuickReply content types.
const (
	QuickReplyText            = "text"
	QuickReplyUserPhoneNumber = "user_phone_number"
	QuickReplyUserEmail       = "user_email"
)

// QuickReply is a chip shown under a message.
type QuickReply struct {
	ContentType string
	Title       string
	Payload     string
	ImageURL    string
}

// TextQuickReply builds a text chip.
func TextQuickReply(title, payload, imageURL string) QuickReply {
	return QuickReply{ContentType: QuickReplyText, Title: title, Payload: payload, ImageURL: imageURL}
}

func (q QuickReply) toPayload() map[string]any {
	ct := q.ContentType
	if ct == "" {
		ct = QuickReplyText
	}
	out := map[string]any{"content_type": ct}
	if q.Title != "" {
		out["title"] = q.Title
	}
	if q.Payload != "" {
		out["payload"] = q.Payload
	}
	if q.ImageURL != "" {
		out["image_url"] = q.ImageURL
	}
	return out
}
