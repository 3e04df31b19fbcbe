// Package sender читает очередь уведомлений и рассылает письма.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/mail"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/metrics"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	senderservice "github.com/magabrotheeeer/fitness-courses/internal/services/sender"
)

// App приложение рассыльщика.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	workers       int
	metrics       string
	logger        *slog.Logger
}

// New подключается к брокеру и выбирает почтовый провайдер.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	mailer, err := mail.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	renderer, err := mail.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewSenderService(logger, renderer, mailer, cfg.Mail.SendTimeout),
		workers:       cfg.RabbitMQ.Workers,
		metrics:       cfg.MetricsAddress,
		logger:        logger,
	}, nil
}

// Run обрабатывает очередь писем до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if a.metrics != "" {
		metrics.Serve(ctx, a.metrics, a.logger)
	}
	wait, err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.EmailQueue, a.workers, a.senderService.Handle)
	if err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", rabbitmq.EmailQueue), sl.Err(err))
		return err
	}
	a.logger.Info("sender consuming", slog.String("queue", rabbitmq.EmailQueue), slog.Int("workers", a.workers))

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	// письма в работе дописываются и подтверждаются до закрытия канала
	wait()

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
