// Package services доставляет уведомления из очереди по почте.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/lib/mail"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/metrics"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// Renderer собирает письмо по уведомлению.
type Renderer interface {
	Render(n models.Notification) (mail.Message, error)
}

// SenderService обрабатывает сообщения очереди уведомлений.
type SenderService struct {
	renderer Renderer
	mailer   mail.Mailer
	timeout  time.Duration
	log      *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
// timeout ограничивает отправку одного письма.
func NewSenderService(log *slog.Logger, renderer Renderer, mailer mail.Mailer, timeout time.Duration) *SenderService {
	return &SenderService{
		renderer: renderer,
		mailer:   mailer,
		timeout:  timeout,
		log:      log,
	}
}

// Handle обрабатывает тело сообщения из очереди.
// Сообщения, которые нельзя разобрать или отрисовать, отбрасываются.
// Ошибка отправки возвращается, чтобы сообщение вернулось в очередь.
func (s *SenderService) Handle(body []byte) error {
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		metrics.Emails.WithLabelValues("unknown", "dropped").Inc()
		return nil
	}
	if n.Email == "" {
		s.log.Warn("message without recipient dropped", slog.String("kind", n.Kind))
		metrics.Emails.WithLabelValues(n.Kind, "dropped").Inc()
		return nil
	}

	msg, err := s.renderer.Render(n)
	if err != nil {
		s.log.Error("failed to render email", slog.String("kind", n.Kind), sl.Err(err))
		metrics.Emails.WithLabelValues(n.Kind, "dropped").Inc()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.Emails.WithLabelValues(n.Kind, "failed").Inc()
		return fmt.Errorf("services.SenderService.Handle: send %s: %w", n.Kind, err)
	}

	metrics.Emails.WithLabelValues(n.Kind, "sent").Inc()
	s.log.Info("email sent successfully", slog.String("kind", n.Kind), slog.String("to", n.Email))
	return nil
}
