package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

func newTestResend(t *testing.T, handler http.HandlerFunc) *ResendSender {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewResendSender(&config.MailConfig{
		From:          "TourFurr <team@tourfurr.test>",
		ResendAPIKey:  "re_test",
		ResendBaseURL: srv.URL + "/",
		Timeout:       5 * time.Second,
	}, zap.NewNop())
}

var testMessage = Message{To: "a@b.com", Subject: "Hi", HTML: "<p>hi</p>", Text: "hi"}

func TestResendSender_Send(t *testing.T) {
	var got resendRequest
	s := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	})

	require.NoError(t, s.Send(context.Background(), testMessage))
	assert.Equal(t, []string{"a@b.com"}, got.To)
	assert.Equal(t, "TourFurr <team@tourfurr.test>", got.From)
	assert.Equal(t, "hi", got.Text)
}

func TestResendSender_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "429", status: http.StatusTooManyRequests, body: `{}`, wantErr: ErrRateLimited},
		{name: "rate limit message", status: http.StatusForbidden, body: `{"message":"You hit the Rate Limit"}`, wantErr: ErrRateLimited},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: ErrSendFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestResend(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			assert.ErrorIs(t, s.Send(context.Background(), testMessage), tt.wantErr)
		})
	}
}

func TestSenders_RejectIncompleteMessages(t *testing.T) {
	s := NewLogSender(zap.NewNop())
	assert.ErrorIs(t, s.Send(context.Background(), Message{To: "a@b.com"}), ErrInvalidMessage)
	assert.NoError(t, s.Send(context.Background(), testMessage))
}

func TestNewSender(t *testing.T) {
	tests := []struct {
		driver  string
		want    any
		wantErr bool
	}{
		{driver: "", want: &LogSender{}},
		{driver: DriverLog, want: &LogSender{}},
		{driver: DriverResend, want: &ResendSender{}},
		{driver: DriverSMTP, want: &SMTPSender{}},
		{driver: "pigeon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s, err := NewSender(&config.MailConfig{Driver: tt.driver}, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestBuildMessage(t *testing.T) {
	m := buildMessage("from@tourfurr.test", testMessage)
	assert.Equal(t, []string{"a@b.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Hi"}, m.GetHeader("Subject"))
}

func TestMailer(t *testing.T) {
	sender := &MockSender{}
	m, err := NewMailer(sender, "https://tourfurr.test", zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.SendVerificationCode(ctx, "a@b.com", "123456", 15*time.Minute))
	msg, ok := sender.Last()
	require.True(t, ok)
	assert.Contains(t, msg.Subject, "123456")
	assert.Contains(t, msg.HTML, "123456")
	assert.Contains(t, msg.Text, "15 минут")

	require.NoError(t, m.SendPasswordResetCode(ctx, "a@b.com", "654321", 15*time.Minute))
	msg, _ = sender.Last()
	assert.Contains(t, msg.Text, "654321")

	require.NoError(t, m.SendDecision(ctx, "a@b.com", "<Fox>", true))
	msg, _ = sender.Last()
	assert.Contains(t, msg.Subject, "одобрена")
	assert.Contains(t, msg.HTML, "&lt;Fox&gt;", "html output is escaped")
	assert.Contains(t, msg.Text, "<Fox>")
	assert.Contains(t, msg.Text, "https://tourfurr.test")

	require.NoError(t, m.SendDecision(ctx, "a@b.com", "Fox", false))
	msg, _ = sender.Last()
	assert.Contains(t, msg.Subject, "отклонена")
	assert.Equal(t, 4, sender.Count())
}
