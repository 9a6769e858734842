package domain

// MessageKind identifies which variant a Message holds. The set is closed: it mirrors the
// shapes the Messenger Send API accepts.
type MessageKind int

const (
	KindText MessageKind = iota
	KindImage
	KindVideo
	KindAudio
	KindFile
	KindAttachmentRef
	KindButtonTemplate
	KindGenericTemplate
)

func (k MessageKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindFile:
		return "file"
	case KindAttachmentRef:
		return "attachment_ref"
	case KindButtonTemplate:
		return "button_template"
	case KindGenericTemplate:
		return "generic_template"
	default:
		return "unknown"
	}
}

// Message is an immutable outgoing message. Build it with the constructors below.
type Message struct {
	kind MessageKind

	text           string
	url            string
	attachmentType AttachmentType
	attachmentID   string
	buttons        []Button
	elements       []GenericElement
	quickReplies   []QuickReply
	personaID      string
}

// Text builds a plain text message.
func Text(text string) Message { return Message{kind: KindText, text: text} }

// Image builds an image message from a public URL.
func Image(url string) Message { return Message{kind: KindImage, url: url} }

// Video builds a video message from a public URL.
func Video(url string) Message { return Message{kind: KindVideo, url: url} }

// Audio builds an audio message from a public URL.
func Audio(url string) Message { return Message{kind: KindAudio, url: url} }

// File builds a file message from a public URL.
func File(url string) Message { return Message{kind: KindFile, url: url} }

// AttachmentRef builds a message that points at a previously uploaded attachment.
func AttachmentRef(t AttachmentType, attachmentID string) Message {
	return Message{kind: KindAttachmentRef, attachmentType: t, attachmentID: attachmentID}
}

// ButtonTemplate builds a button template (text plus up to three buttons on the platform side).
func ButtonTemplate(text string, buttons ...Button) Message {
	return Message{kind: KindButtonTemplate, text: text, buttons: append([]Button(nil), buttons...)}
}

// GenericTemplate builds a carousel of elements.
func GenericTemplate(elements ...GenericElement) Message {
	return Message{kind: KindGenericTemplate, elements: append([]GenericElement(nil), elements...)}
}

// WithQuickReplies returns a copy of m carrying the given quick replies.
func (m Message) WithQuickReplies(replies ...QuickReply) Message {
	out := m
	out.quickReplies = append([]QuickReply(nil), replies...)
	return out
}

// WithPersona returns a copy of m sent on behalf of the given page persona.
func (m Message) WithPersona(personaID string) Message {
	out := m
	out.personaID = personaID
	return out
}

func (m Message) Kind() MessageKind { return m.kind }

// PersonaID is the persona the message is sent as, or empty for the page itself.
func (m Message) PersonaID() string { return m.personaID }

// AttachmentID is set only for KindAttachmentRef messages.
func (m Message) AttachmentID() string { return m.attachmentID }

// Payload renders the "message" object of the Send API request.
func (m Message) Payload() map[string]any {
	var p map[string]any
	switch m.kind {
	case KindText:
		p = map[string]any{"text": m.text}
	case KindImage:
		p = urlAttachment(AttachmentImage, m.url)
	case KindVideo:
		p = urlAttachment(AttachmentVideo, m.url)
	case KindAudio:
		p = urlAttachment(AttachmentAudio, m.url)
	case KindFile:
		p = urlAttachment(AttachmentFile, m.url)
	case KindAttachmentRef:
		p = attachment(string(m.attachmentType), map[string]any{"attachment_id": m.attachmentID})
	case KindButtonTemplate:
		buttons := make([]map[string]any, 0, len(m.buttons))
		for _, b := range m.buttons {
			buttons = append(buttons, b.toPayload())
		}
		p = attachment("template", map[string]any{
			"template_type": "button",
			"text":          m.text,
			"buttons":       buttons,
		})
	case KindGenericTemplate:
		elements := make([]map[string]any, 0, len(m.elements))
		for _, e := range m.elements {
			elements = append(elements, e.toPayload())
		}
		p = attachment("template", map[string]any{
			"template_type": "generic",
			"elements":      elements,
		})
	default:
		p = map[string]any{}
	}

	if len(m.quickReplies) > 0 {
		replies := make([]map[string]any, 0, len(m.quickReplies))
		for _, q := range m.quickReplies {
			replies = append(replies, q.toPayload())
		}
		p["quick_replies"] = replies
	}
	return p
}

func urlAttachment(t AttachmentType, url string) map[string]any {
	return attachment(string(t), map[string]any{"url": url, "is_reusable": true})
}

func attachment(typ string, payload map[string]any) map[string]any {
	return map[string]any{
		"attachment": map[string]any{
			"type":    typ,
			"payload": payload,
		},
	}
}
