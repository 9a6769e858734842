package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/aradsms/messenger_gateway/internal/messenger_service/domain"
	"github.com/aradsms/messenger_gateway/internal/messenger_service/provider"
)

// --- Mocks ---

type MockMessengerProvider struct {
	mock.Mock
}

func (m *MockMessengerProvider) Attempt(ctx context.Context, recipientID string, msg domain.Message, method domain.SendMethod) provider.AttemptResult {
	args := m.Called(ctx, recipientID, msg, method)
	return args.Get(0).(provider.AttemptResult)
}

func (m *MockMessengerProvider) UploadAttachment(ctx context.Context, data []byte, fileName, contentType string, attachmentType domain.AttachmentType) (string, error) {
	args := m.Called(ctx, data, fileName, contentType, attachmentType)
	return args.String(0), args.Error(1)
}

func (m *MockMessengerProvider) Send(ctx context.Context, recipientID string, msg domain.Message) (*provider.SendResponse, error) {
	args := m.Called(ctx, recipientID, msg)
	resp, _ := args.Get(0).(*provider.SendResponse)
	return resp, args.Error(1)
}

func (m *MockMessengerProvider) SendWithTag(ctx context.Context, recipientID string, msg domain.Message, tag string) (*provider.SendResponse, error) {
	args := m.Called(ctx, recipientID, msg, tag)
	resp, _ := args.Get(0).(*provider.SendResponse)
	return resp, args.Error(1)
}

func (m *MockMessengerProvider) SendSenderAction(ctx context.Context, recipientID, action string) error {
	args := m.Called(ctx, recipientID, action)
	return args.Error(0)
}

const (
	outsideWindowBody = `{"error":{"message":"(#10) This message is sent outside of allowed window.","type":"OAuthException","code":10,"error_subcode":2018278}}`
	tagDeniedBody     = `{"error":{"message":"(#10) Page is not approved for this tag","type":"OAuthException","code":10,"error_subcode":2018276}}`
	unrelatedBody     = `{"error":{"message":"(#100) No matching user found","type":"OAuthException","code":10,"error_subcode":2018001}}`
)

func setupDeliveryTest() (*DeliveryAppService, *MockMessengerProvider) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockProvider := new(MockMessengerProvider)
	return NewDeliveryAppService(mockProvider, logger), mockProvider
}

func failed(status int, body string) provider.AttemptResult {
	return provider.AttemptResult{Success: false, StatusCode: status, RawError: body}
}

var ok = provider.AttemptResult{Success: true, StatusCode: 200}

func TestSendWithFallback_DefaultSucceeds(t *testing.T) {
	svc, mockProvider := setupDeliveryTest()
	msg := domain.Text("hello")
	mockProvider.On("Attempt", mock.Anything, "psid", msg, domain.SendMethodDefault).Return(ok).Once()

	outcome := svc.SendWithFallback(context.Background(), "psid", msg)

	assert.Equal(t, domain.OutcomeSucceeded(domain.SendMethodDefault), outcome)
	mockProvider.AssertNumberOfCalls(t, "Attempt", 1)
	mockProvider.AssertExpectations(t)
}

func TestSendWithFallback_TagSucceedsAfterWindowError(t *testing.T) {
	svc, mockProvider := setupDeliveryTest()
	msg := domain.Text("late reply")
	mockProvider.On("Attempt", mock.Anything, "psid", msg, domain.SendMethodDefault).Return(failed(400, outsideWindowBody)).Once()
	mockProvider.On("Attempt", mock.Anything, "psid", msg, domain.SendMethodPrivilegedTag).Return(ok).Once()

	outcome := svc.SendWithFallback(context.Background(), "psid", msg)

	assert.True(t, outcome.Success)
	assert.Equal(t, domain.SendMethodPrivilegedTag, outcome.MethodUsed)
	assert.Empty(t, outcome.ErrorMessage)
	assert.False(t, outcome.PrivilegedTagDenied)
	mockProvider.AssertNumberOfCalls(t, "Attempt", 2)
	mockProvider.AssertExpectations(t)
}

func TestSendWithFallback_TagDenied(t *testing.T) {
	svc, mockProvider := setupDeliveryTest()
	msg := domain.Text("late reply")
	mockProvider.On("Attempt", mock.Anything, "psid", msg, domain.SendMethodDefault).Return(failed(400, outsideWindowBody)).Once()
	mockProvider.On("Attempt", mock.Anything, "psid", msg, domain.SendMethodPrivilegedTag).Return(failed(400, tagDeniedBody)).Once()

	outcome := svc.SendWithFallback(context.Background(), "psid", msg)

	assert.Equal(t, domain.DeliveryOutcome{
		Success:               false,
		MethodUsed:            domain.SendMethodPrivilegedTag,
		ErrorMessage:          domain.PrivilegedTagDeniedMessage,
		PrivilegedTagRequired: true,
		PrivilegedTagDenied:   true,
	}, outcome)
	mockProvider.AssertExpectations(t)
}

func TestSendWithFallback_TagFailsForOtherReason(t *testing.T) {
	svc, mockProvider := setupDeliveryTest()
	msg := domain.Text("late reply")
	mockProvider.On("Attempt", mock.Anything, "psid", msg, domain.SendMethodDefault).Return(failed(400, outsideWindowBody)).Once()
	mockProvider.On("Attempt", mock.Anything, "psid", msg, domain.SendMethodPrivilegedTag).Return(failed(500, `{"error":{"code":2,"message":"Service temporarily unavailable"}}`)).Once()

	outcome := svc.SendWithFallback(context.Background(), "psid", msg)

	assert.False(t, outcome.Success)
	assert.Equal(t, domain.SendMethodPrivilegedTag, outcome.MethodUsed)
	assert.True(t, outcome.PrivilegedTagRequired)
	assert.False(t, outcome.PrivilegedTagDenied)
	assert.Equal(t, "Service temporarily unavailable", outcome.ErrorMessage)
}

func TestSendWithFallback_UnrelatedErrorNoRetry(t *testing.T) {
	svc, mockProvider := setupDeliveryTest()
	msg := domain.Text("hi")
	mockProvider.On("Attempt", mock.Anything, "psid", msg, domain.SendMethodDefault).Return(failed(400, unrelatedBody)).Once()

	outcome := svc.SendWithFallback(context.Background(), "psid", msg)

	assert.False(t, outcome.Success)
	assert.Equal(t, domain.SendMethodDefault, outcome.MethodUsed)
	assert.False(t, outcome.PrivilegedTagRequired)
	assert.Equal(t, "(#100) No matching user found", outcome.ErrorMessage)
	mockProvider.AssertNotCalled(t, "Attempt", mock.Anything, "psid", msg, domain.SendMethodPrivilegedTag)
	mockProvider.AssertNumberOfCalls(t, "Attempt", 1)
}

func TestSendWithFallback_TransportErrorTreatedAsUnknown(t *testing.T) {
	svc, mockProvider := setupDeliveryTest()
	msg := domain.Text("hi")
	mockProvider.On("Attempt", mock.Anything, "psid", msg, domain.SendMethodDefault).
		Return(failed(0, "transport error: connection reset by peer")).Once()

	outcome := svc.SendWithFallback(context.Background(), "psid", msg)

	assert.False(t, outcome.Success)
	assert.Equal(t, domain.SendMethodDefault, outcome.MethodUsed)
	assert.Equal(t, "transport error: connection reset by peer", outcome.ErrorMessage)
	mockProvider.AssertNumberOfCalls(t, "Attempt", 1)
}

func TestSendWithFallback_EmptyErrorBody(t *testing.T) {
	svc, mockProvider := setupDeliveryTest()
	msg := domain.Text("hi")
	mockProvider.On("Attempt", mock.Anything, "psid", msg, domain.SendMethodDefault).Return(failed(502, "")).Once()

	outcome := svc.SendWithFallback(context.Background(), "psid", msg)

	assert.False(t, outcome.Success)
	assert.Equal(t, "unknown error", outcome.ErrorMessage)
}

func TestSendWithFallback_Concurrent(t *testing.T) {
	svc, mockProvider := setupDeliveryTest()
	mockProvider.On("Attempt", mock.Anything, "in-window", mock.Anything, domain.SendMethodDefault).Return(ok)
	mockProvider.On("Attempt", mock.Anything, "late", mock.Anything, domain.SendMethodDefault).Return(failed(400, outsideWindowBody))
	mockProvider.On("Attempt", mock.Anything, "late", mock.Anything, domain.SendMethodPrivilegedTag).Return(ok)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		recipient := "in-window"
		want := domain.SendMethodDefault
		if i%2 == 1 {
			recipient, want = "late", domain.SendMethodPrivilegedTag
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := svc.SendWithFallback(context.Background(), recipient, domain.Text("x"))
			assert.True(t, outcome.Success)
			assert.Equal(t, want, outcome.MethodUsed)
		}()
	}
	wg.Wait()
	mockProvider.AssertNumberOfCalls(t, "Attempt", 30)
}

func TestUploadAndSendWithFallback(t *testing.T) {
	data := []byte("PNGDATA")

	t.Run("upload then send reference", func(t *testing.T) {
		svc, mockProvider := setupDeliveryTest()
		mockProvider.On("UploadAttachment", mock.Anything, data, "cat.png", "image/png", domain.AttachmentImage).Return("att-1", nil).Once()
		mockProvider.On("Attempt", mock.Anything, "psid", domain.AttachmentRef(domain.AttachmentImage, "att-1"), domain.SendMethodDefault).Return(ok).Once()

		outcome := svc.UploadAndSendWithFallback(context.Background(), "psid", data, "cat.png", "image/png")

		assert.True(t, outcome.Success)
		assert.Equal(t, domain.SendMethodDefault, outcome.MethodUsed)
		mockProvider.AssertExpectations(t)
	})

	t.Run("reference goes through the ladder", func(t *testing.T) {
		svc, mockProvider := setupDeliveryTest()
		ref := domain.AttachmentRef(domain.AttachmentFile, "att-2")
		mockProvider.On("UploadAttachment", mock.Anything, data, "doc.pdf", "application/pdf", domain.AttachmentFile).Return("att-2", nil).Once()
		mockProvider.On("Attempt", mock.Anything, "psid", ref, domain.SendMethodDefault).Return(failed(400, outsideWindowBody)).Once()
		mockProvider.On("Attempt", mock.Anything, "psid", ref, domain.SendMethodPrivilegedTag).Return(failed(400, tagDeniedBody)).Once()

		outcome := svc.UploadAndSendWithFallback(context.Background(), "psid", data, "doc.pdf", "application/pdf")

		assert.False(t, outcome.Success)
		assert.True(t, outcome.PrivilegedTagDenied)
		assert.Equal(t, domain.SendMethodPrivilegedTag, outcome.MethodUsed)
	})

	t.Run("missing attachment id never sends", func(t *testing.T) {
		svc, mockProvider := setupDeliveryTest()
		mockProvider.On("UploadAttachment", mock.Anything, data, "clip.mp4", "video/mp4", domain.AttachmentVideo).Return("", provider.ErrMissingAttachmentID).Once()

		outcome := svc.UploadAndSendWithFallback(context.Background(), "psid", data, "clip.mp4", "video/mp4")

		assert.False(t, outcome.Success)
		assert.True(t, strings.HasPrefix(outcome.ErrorMessage, "Failed to upload attachment"))
		assert.False(t, outcome.PrivilegedTagRequired)
		mockProvider.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("upload api error never sends", func(t *testing.T) {
		svc, mockProvider := setupDeliveryTest()
		mockProvider.On("UploadAttachment", mock.Anything, data, "a.mp3", "audio/mpeg", domain.AttachmentAudio).Return("", errors.New("messenger api error: status 400: Invalid file")).Once()

		outcome := svc.UploadAndSendWithFallback(context.Background(), "psid", data, "a.mp3", "audio/mpeg")

		assert.Equal(t, "Failed to upload attachment: messenger api error: status 400: Invalid file", outcome.ErrorMessage)
		mockProvider.AssertNumberOfCalls(t, "Attempt", 0)
	})

	t.Run("oversized payload rejected before upload", func(t *testing.T) {
		svc, mockProvider := setupDeliveryTest()
		big := make([]byte, domain.ImageMaxSize+1)

		outcome := svc.UploadAndSendWithFallback(context.Background(), "psid", big, "huge.png", "image/png")

		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.ErrorMessage, "Failed to upload attachment")
		mockProvider.AssertNumberOfCalls(t, "UploadAttachment", 0)
		mockProvider.AssertNumberOfCalls(t, "Attempt", 0)
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		svc, mockProvider := setupDeliveryTest()

		outcome := svc.UploadAndSendWithFallback(context.Background(), "psid", nil, "empty.txt", "text/plain")

		assert.False(t, outcome.Success)
		mockProvider.AssertNumberOfCalls(t, "UploadAttachment", 0)
	})
}

func TestSendSenderAction(t *testing.T) {
	svc, mockProvider := setupDeliveryTest()
	mockProvider.On("SendSenderAction", mock.Anything, "psid", domain.SenderActionMarkSeen).Return(nil).Once()

	assert.NoError(t, svc.SendSenderAction(context.Background(), "psid", domain.SenderActionMarkSeen))
	mockProvider.AssertExpectations(t)
}

func TestSendDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("standard send", func(t *testing.T) {
		svc, mockProvider := setupDeliveryTest()
		msg := domain.Text("hi")
		mockProvider.On("Send", ctx, "psid", msg).Return(&provider.SendResponse{RecipientID: "psid", MessageID: "m_1"}, nil).Once()

		resp, err := svc.SendDirect(ctx, "psid", msg, "")
		assert.NoError(t, err)
		assert.Equal(t, "m_1", resp.MessageID)
		mockProvider.AssertExpectations(t)
		mockProvider.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("tagged send", func(t *testing.T) {
		svc, mockProvider := setupDeliveryTest()
		msg := domain.Text("your order shipped")
		mockProvider.On("SendWithTag", ctx, "psid", msg, domain.TagPostPurchaseUpdate).
			Return(&provider.SendResponse{MessageID: "m_2"}, nil).Once()

		resp, err := svc.SendDirect(ctx, "psid", msg, domain.TagPostPurchaseUpdate)
		assert.NoError(t, err)
		assert.Equal(t, "m_2", resp.MessageID)
		mockProvider.AssertExpectations(t)
		mockProvider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("window error is not retried", func(t *testing.T) {
		svc, mockProvider := setupDeliveryTest()
		msg := domain.Text("late")
		apiErr := &provider.APIError{StatusCode: 400, Body: outsideWindowBody, Descriptor: domain.ClassifyError(outsideWindowBody)}
		mockProvider.On("Send", ctx, "psid", msg).Return(nil, apiErr).Once()

		resp, err := svc.SendDirect(ctx, "psid", msg, "")
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, apiErr)
		mockProvider.AssertNumberOfCalls(t, "Send", 1)
		mockProvider.AssertNotCalled(t, "SendWithTag", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
