package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

// ResendSender posts messages to the Resend HTTP API.
type ResendSender struct {
	client  *http.Client
	baseURL string
	apiKey  string
	from    string
	log     *zap.Logger
}

func NewResendSender(cfg *config.MailConfig, log *zap.Logger) *ResendSender {
	return &ResendSender{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.ResendBaseURL, "/"),
		apiKey:  cfg.ResendAPIKey,
		from:    cfg.From,
		log:     log.Named("mail"),
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Name    string `json:"name"`
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	body, err := json.Marshal(resendRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	var out resendResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Error("resend api error",
			zap.Int("status", resp.StatusCode),
			zap.String("name", out.Name),
			zap.String("message", out.Message))
		if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(strings.ToLower(out.Message), "rate limit") {
			return ErrRateLimited
		}
		return fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
	}

	s.log.Info("email sent", zap.String("to", msg.To), zap.String("message_id", out.ID))
	return nil
}
