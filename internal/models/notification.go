package models

// Виды email-уведомлений.
const (
	NotifyWelcome        = "welcome"
	NotifyPasswordReset  = "password_reset"
	NotifyPurchase       = "purchase"
	NotifyAccessExpiring = "access_expiring"
	NotifyWorkoutToday   = "workout_today"
	NotifyFreeze         = "freeze"
)

// Notification сообщение в очереди уведомлений.
// Data содержит параметры шаблона письма.
type Notification struct {
	Kind     string            `json:"kind"`
	Email    string            `json:"email"`
	Username string            `json:"username"`
	Data     map[string]string `json:"data,omitempty"`
}
