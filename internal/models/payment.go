package models

import "time"

// Статусы платежа.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentExpired = "expired"
)

// Payment покупка курса через платёжного провайдера.
type Payment struct {
	ID                int64      `json:"id"`
	UserUID           string     `json:"user_uid"`
	CourseID          int64      `json:"course_id"`
	ProviderSessionID string     `json:"provider_session_id"`
	Status            string     `json:"status"`
	AmountCents       int64      `json:"amount_cents"`
	Currency          string     `json:"currency"`
	CreatedAt         time.Time  `json:"created_at"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}

// CheckoutSession ответ провайдера на создание оплаты.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutEvent событие оплаты, извлечённое из вебхука провайдера.
type CheckoutEvent struct {
	Type      string
	SessionID string
	UserUID   string
	CourseID  int64
}
