package mail

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Mailer turns domain events into rendered messages for a Sender.
type Mailer struct {
	sender   Sender
	renderer *renderer
	siteURL  string
	log      *zap.Logger
}

func NewMailer(sender Sender, siteURL string, log *zap.Logger) (*Mailer, error) {
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	return &Mailer{sender: sender, renderer: r, siteURL: siteURL, log: log.Named("mail")}, nil
}

type codeData struct {
	Subject string
	Code    string
	Minutes int
}

type decisionData struct {
	Subject  string
	Nickname string
	Approved bool
	SiteURL  string
}

func (m *Mailer) SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error {
	data := codeData{
		Subject: fmt.Sprintf("Код подтверждения TourFurr: %s", code),
		Code:    code,
		Minutes: int(ttl.Minutes()),
	}
	return m.send(ctx, to, kindVerification, data.Subject, data)
}

func (m *Mailer) SendPasswordResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	data := codeData{
		Subject: "Сброс пароля TourFurr",
		Code:    code,
		Minutes: int(ttl.Minutes()),
	}
	return m.send(ctx, to, kindPasswordReset, data.Subject, data)
}

func (m *Mailer) SendDecision(ctx context.Context, to, nickname string, approved bool) error {
	subject := "Ваша заявка на TourFurr 2026 отклонена"
	if approved {
		subject = "Ваша заявка на TourFurr 2026 одобрена!"
	}
	data := decisionData{
		Subject:  subject,
		Nickname: nickname,
		Approved: approved,
		SiteURL:  m.siteURL,
	}
	return m.send(ctx, to, kindDecision, subject, data)
}

func (m *Mailer) send(ctx context.Context, to string, k kind, subject string, data any) error {
	html, text, err := m.renderer.render(k, data)
	if err != nil {
		return fmt.Errorf("render %s email: %w", k, err)
	}
	return m.sender.Send(ctx, Message{To: to, Subject: subject, HTML: html, Text: text})
}
