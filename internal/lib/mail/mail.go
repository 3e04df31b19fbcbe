// Package mail отправляет письма через SMTP или Resend и рендерит их шаблоны.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/smtp"
)

// Message готовое письмо.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer отправляет письмо получателю.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New выбирает реализацию по cfg.Mail.Provider.
func New(cfg *config.Config, log *slog.Logger) (Mailer, error) {
	switch cfg.Mail.Provider {
	case "smtp":
		return NewSMTPMailer(smtp.NewTransport(cfg.SMTP, log), cfg.Mail.From, log), nil
	case "resend":
		if cfg.Mail.ResendAPIKey == "" {
			return nil, fmt.Errorf("mail.New: resend api key is empty")
		}
		return NewResendMailer(resend.NewClient(cfg.Mail.ResendAPIKey), cfg.Mail.From), nil
	default:
		return nil, fmt.Errorf("mail.New: unknown provider %q", cfg.Mail.Provider)
	}
}

// SMTPMailer отправляет письма через SMTP-транспорт.
type SMTPMailer struct {
	transport smtp.Dialer
	from      string
	log       *slog.Logger
}

// NewSMTPMailer создает SMTPMailer. Если from пуст, в заголовок From пишется адрес конверта.
func NewSMTPMailer(transport smtp.Dialer, from string, log *slog.Logger) *SMTPMailer {
	return &SMTPMailer{transport: transport, from: from, log: log}
}

// Send отправляет письмо одной SMTP-сессией.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	const op = "mail.SMTPMailer.Send"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	envelopeFrom := m.transport.EnvelopeFrom()
	header := m.from
	if header == "" {
		header = envelopeFrom
	}
	body := strings.Join([]string{
		"From: " + header,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		msg.HTML,
	}, "\r\n")

	client, err := m.transport.Dial(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			m.log.Debug("smtp client close", sl.Err(err))
		}
	}()

	if err := client.Mail(envelopeFrom); err != nil {
		return fmt.Errorf("%s: mail from: %w", op, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("%s: rcpt to: %w", op, err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: data: %w", op, err)
	}
	if _, err := wc.Write([]byte(body)); err != nil {
		return fmt.Errorf("%s: write body: %w", op, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%s: close data: %w", op, err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("%s: quit: %w", op, err)
	}

	m.log.Info("email sent", slog.String("to", msg.To), slog.String("via", "smtp"))
	return nil
}

// ResendMailer отправляет письма через API Resend.
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer создает ResendMailer.
func NewResendMailer(client *resend.Client, from string) *ResendMailer {
	return &ResendMailer{client: client, from: from}
}

// Send отправляет письмо через Resend.
func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("mail.ResendMailer.Send: %w", err)
	}
	return nil
}
