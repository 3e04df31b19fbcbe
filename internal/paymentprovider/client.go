// Package paymentprovider создаёт оплаты в Stripe Checkout и разбирает вебхуки Stripe.
package paymentprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

// Типы событий Stripe, которые обрабатывает сервис.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

const (
	metaUserUID  = "user_uid"
	metaCourseID = "course_id"
)

// CheckoutParams параметры оплаты одного курса.
type CheckoutParams struct {
	UserUID     string
	Email       string
	CourseID    int64
	CourseTitle string
	AmountCents int64
	Currency    string
}

// Client клиент Stripe с собственным ключом и бэкендом.
type Client struct {
	sessions      session.Client
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewClient создаёт клиент для боевого API Stripe.
func NewClient(cfg config.Stripe) *Client {
	return NewClientWithBackend(cfg, stripe.GetBackend(stripe.APIBackend))
}

// NewClientWithBackend создаёт клиент поверх заданного бэкенда.
func NewClientWithBackend(cfg config.Stripe, backend stripe.Backend) *Client {
	return &Client{
		sessions:      session.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

// CreateCheckout создаёт Checkout Session в режиме разовой оплаты.
// Пользователь и курс передаются в metadata и возвращаются в вебхуке.
// Ключ идемпотентности свой у каждого вызова: повторы внутри stripe-go
// используют его же, а новая попытка оплаты получает новую сессию.
func (c *Client) CreateCheckout(ctx context.Context, p CheckoutParams) (*models.CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckout"
	courseID := strconv.FormatInt(p.CourseID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(p.UserUID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.CourseTitle),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.successURL),
		CancelURL:  stripe.String(c.cancelURL),
	}
	if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}
	params.Context = ctx
	params.AddMetadata(metaUserUID, p.UserUID)
	params.AddMetadata(metaCourseID, courseID)
	params.SetIdempotencyKey(uuid.NewString())

	sess, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook проверяет подпись и извлекает событие оплаты.
// Для событий, не связанных с Checkout, возвращается только Type.
func (c *Client) ParseWebhook(payload []byte, signature string) (*models.CheckoutEvent, error) {
	const op = "paymentprovider.ParseWebhook"
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrInvalidSignature, err)
	}

	out := &models.CheckoutEvent{Type: string(event.Type)}
	if out.Type != EventCheckoutCompleted && out.Type != EventCheckoutExpired {
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%s: decode session: %w", op, err)
	}
	out.SessionID = sess.ID
	out.UserUID = sess.Metadata[metaUserUID]
	if out.UserUID == "" {
		out.UserUID = sess.ClientReferenceID
	}
	if raw := sess.Metadata[metaCourseID]; raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad course_id metadata %q: %w", op, raw, err)
		}
		out.CourseID = id
	}
	return out, nil
}
