// Package mail renders and delivers transactional email.
package mail

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

var (
	ErrRateLimited   = errors.New("email provider rate limit exceeded")
	ErrSendFailed    = errors.New("failed to send email")
	ErrInvalidMessage = errors.New("invalid email message")
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

func (m Message) validate() error {
	if m.To == "" || m.Subject == "" || (m.HTML == "" && m.Text == "") {
		return ErrInvalidMessage
	}
	return nil
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const (
	DriverResend = "resend"
	DriverSMTP   = "smtp"
	DriverLog    = "log"
)

func NewSender(cfg *config.MailConfig, log *zap.Logger) (Sender, error) {
	switch cfg.Driver {
	case DriverResend:
		return NewResendSender(cfg, log), nil
	case DriverSMTP:
		return NewSMTPSender(cfg), nil
	case DriverLog, "":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.Named("mail")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.log.Info("email not delivered (log driver)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text))
	return nil
}
