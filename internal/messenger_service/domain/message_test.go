package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadJSON(t *testing.T, m Message) string {
	t.Helper()
	data, err := json.Marshal(m.Payload())
	require.NoError(t, err)
	return string(data)
}

func TestMessage_Payload(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"text", Text("hello"), `{"text":"hello"}`},
		{"image", Image("https://cdn.example.com/a.png"),
			`{"attachment":{"type":"image","payload":{"url":"https://cdn.example.com/a.png","is_reusable":true}}}`},
		{"video", Video("https://cdn.example.com/a.mp4"),
			`{"attachment":{"type":"video","payload":{"url":"https://cdn.example.com/a.mp4","is_reusable":true}}}`},
		{"audio", Audio("https://cdn.example.com/a.mp3"),
			`{"attachment":{"type":"audio","payload":{"url":"https://cdn.example.com/a.mp3","is_reusable":true}}}`},
		{"file", File("https://cdn.example.com/a.pdf"),
			`{"attachment":{"type":"file","payload":{"url":"https://cdn.example.com/a.pdf","is_reusable":true}}}`},
		{"attachment ref", AttachmentRef(AttachmentImage, "1857777774821032"),
			`{"attachment":{"type":"image","payload":{"attachment_id":"1857777774821032"}}}`},
		{"button template",
			ButtonTemplate("Pick one",
				URLButton("Site", "https://example.com", "tall"),
				PostbackButton("Start", "START"),
				CallButton("Call", "+15105551234")),
			`{"attachment":{"type":"template","payload":{"template_type":"button","text":"Pick one","buttons":[
				{"type":"web_url","title":"Site","url":"https://example.com","webview_height_ratio":"tall"},
				{"type":"postback","title":"Start","payload":"START"},
				{"type":"phone_number","title":"Call","payload":"+15105551234"}]}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, payloadJSON(t, tt.msg))
		})
	}
}

func TestMessage_GenericTemplate(t *testing.T) {
	action := URLButton("", "https://example.com/item", "")
	msg := GenericTemplate(GenericElement{
		Title:         "Shirt",
		Subtitle:      "Blue",
		ImageURL:      "https://example.com/shirt.png",
		DefaultAction: &action,
		Buttons:       []Button{PostbackButton("Buy", "BUY_SHIRT")},
	})

	assert.Equal(t, KindGenericTemplate, msg.Kind())
	assert.JSONEq(t, `{"attachment":{"type":"template","payload":{"template_type":"generic","elements":[{
		"title":"Shirt","subtitle":"Blue","image_url":"https://example.com/shirt.png",
		"default_action":{"type":"web_url","title":"","url":"https://example.com/item"},
		"buttons":[{"type":"postback","title":"Buy","payload":"BUY_SHIRT"}]}]}}}`, payloadJSON(t, msg))
}

func TestMessage_WithQuickReplies(t *testing.T) {
	base := Text("Pick a color")
	withReplies := base.WithQuickReplies(
		TextQuickReply("Red", "RED", ""),
		QuickReply{ContentType: QuickReplyUserEmail},
	)

	assert.JSONEq(t, `{"text":"Pick a color"}`, payloadJSON(t, base), "original is not modified")
	assert.JSONEq(t, `{"text":"Pick a color","quick_replies":[
		{"content_type":"text","title":"Red","payload":"RED"},
		{"content_type":"user_email"}]}`, payloadJSON(t, withReplies))
}

func TestMessage_ConstructorsCopyInput(t *testing.T) {
	buttons := []Button{PostbackButton("A", "A")}
	msg := ButtonTemplate("t", buttons...)
	buttons[0] = PostbackButton("B", "B")

	assert.Contains(t, payloadJSON(t, msg), `"title":"A"`)
}

func TestMessage_AttachmentID(t *testing.T) {
	assert.Equal(t, "42", AttachmentRef(AttachmentFile, "42").AttachmentID())
	assert.Empty(t, Text("x").AttachmentID())
	assert.Equal(t, "attachment_ref", KindAttachmentRef.String())
}
