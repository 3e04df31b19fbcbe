// Package services реализует покупку курсов через платёжного провайдера.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/fitness-courses/internal/lib/metrics"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/schedule"
	"github.com/magabrotheeeer/fitness-courses/internal/lib/sl"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
	"github.com/magabrotheeeer/fitness-courses/internal/paymentprovider"
)

// PaymentRepository хранилище платежей и связанных сущностей.
type PaymentRepository interface {
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	FindGrant(ctx context.Context, userUID string, courseID int64, at time.Time) (*models.AccessGrant, error)

	CreatePayment(ctx context.Context, p models.Payment) (int64, error)
	GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error)
	MarkPaymentPaid(ctx context.Context, sessionID string, paidAt time.Time, accessDays *int) (*models.Payment, *models.AccessGrant, bool, error)
	MarkPaymentExpired(ctx context.Context, sessionID string) error
	ListPayments(ctx context.Context, userUID string) ([]models.Payment, error)
}

// Provider платёжный провайдер.
type Provider interface {
	CreateCheckout(ctx context.Context, p paymentprovider.CheckoutParams) (*models.CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*models.CheckoutEvent, error)
}

// Notifier публикует уведомления в очередь.
type Notifier interface {
	Publish(ctx context.Context, message any) error
}

// PaymentService создаёт оплаты и обрабатывает события провайдера.
type PaymentService struct {
	log      *slog.Logger
	repo     PaymentRepository
	provider Provider
	notifier Notifier
	now      func() time.Time
}

// NewPaymentService создает новый экземпляр PaymentService.
func NewPaymentService(log *slog.Logger, repo PaymentRepository, provider Provider, notifier Notifier) *PaymentService {
	return &PaymentService{
		log:      log,
		repo:     repo,
		provider: provider,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Checkout создаёт сессию оплаты курса и платёж в статусе pending.
func (s *PaymentService) Checkout(ctx context.Context, userUID string, courseID int64) (*models.CheckoutSession, error) {
	const op = "services.PaymentService.Checkout"

	course, err := s.repo.GetCourse(ctx, courseID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !course.IsPublished {
		return nil, models.ErrCourseNotPublished
	}

	now := s.now()
	g, err := s.repo.FindGrant(ctx, userUID, courseID, now)
	switch {
	case err == nil:
		if st := g.StatusAt(now); st == models.GrantActive || st == models.GrantFrozen || st == models.GrantPending {
			return nil, models.ErrAlreadyHasAccess
		}
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cs, err := s.provider.CreateCheckout(ctx, paymentprovider.CheckoutParams{
		UserUID:     userUID,
		Email:       user.Email,
		CourseID:    course.ID,
		CourseTitle: course.Title,
		AmountCents: course.PriceCents,
		Currency:    course.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.repo.CreatePayment(ctx, models.Payment{
		UserUID:           userUID,
		CourseID:          course.ID,
		ProviderSessionID: cs.ID,
		Status:            models.PaymentPending,
		AmountCents:       course.PriceCents,
		Currency:          course.Currency,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("checkout created",
		slog.String("session_id", cs.ID),
		slog.Int64("course_id", course.ID))
	return cs, nil
}

// HandleWebhook проверяет подпись события и применяет его.
// Завершённая оплата выдаёт доступ ровно один раз, истёкшая помечает платёж,
// остальные события игнорируются.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "services.PaymentService.HandleWebhook"

	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	log := s.log.With(slog.String("event", event.Type), slog.String("session_id", event.SessionID))

	switch event.Type {
	case paymentprovider.EventCheckoutCompleted:
		if err := s.complete(ctx, log, event); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	case paymentprovider.EventCheckoutExpired:
		err := s.repo.MarkPaymentExpired(ctx, event.SessionID)
		if errors.Is(err, models.ErrPaymentNotFound) || errors.Is(err, models.ErrNotFound) {
			log.Warn("expired session has no pending payment")
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Info("payment expired")
	default:
		log.Debug("webhook event ignored")
	}
	return nil
}

func (s *PaymentService) complete(ctx context.Context, log *slog.Logger, event *models.CheckoutEvent) error {
	p, err := s.repo.GetPaymentBySession(ctx, event.SessionID)
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrPaymentNotFound
	}
	if err != nil {
		return err
	}
	course, err := s.repo.GetCourse(ctx, p.CourseID)
	if err != nil {
		return err
	}

	_, grant, applied, err := s.repo.MarkPaymentPaid(ctx, event.SessionID, s.now(), course.AccessDays)
	if err != nil {
		return err
	}
	if !applied {
		log.Info("payment already processed")
		return nil
	}

	metrics.Events.WithLabelValues("purchase").Inc()
	log.Info("payment completed", slog.Int64("grant_id", grant.ID), slog.String("user_uid", p.UserUID))

	user, err := s.repo.GetUser(ctx, p.UserUID)
	if err != nil {
		log.Error("failed to load user for purchase email", sl.Err(err))
		return nil
	}
	data := map[string]string{"course": course.Title}
	if grant.ExpiresAt != nil {
		data["expires_at"] = grant.ExpiresAt.Format(schedule.DateLayout)
	}
	if err := s.notifier.Publish(ctx, models.Notification{
		Kind:     models.NotifyPurchase,
		Email:    user.Email,
		Username: user.Username,
		Data:     data,
	}); err != nil {
		log.Error("failed to publish notification", slog.String("kind", models.NotifyPurchase), sl.Err(err))
	}
	return nil
}

// ListPayments история платежей пользователя.
func (s *PaymentService) ListPayments(ctx context.Context, userUID string) ([]models.Payment, error) {
	const op = "services.PaymentService.ListPayments"

	payments, err := s.repo.ListPayments(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}
