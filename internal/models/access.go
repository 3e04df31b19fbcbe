package models

import "time"

// Источники выдачи доступа.
const (
	GrantSourcePurchase = "purchase"
	GrantSourceAdmin    = "admin"
)

// GrantStatus вычисляемый статус доступа на момент времени.
type GrantStatus string

// Статусы доступа.
const (
	GrantActive  GrantStatus = "active"
	GrantFrozen  GrantStatus = "frozen"
	GrantExpired GrantStatus = "expired"
	GrantRevoked GrantStatus = "revoked"
	GrantPending GrantStatus = "pending"
)

// AccessGrant окно доступа пользователя к курсу.
// ExpiresAt == nil означает бессрочный доступ.
// Frozen заполняется хранилищем: true, если текущая дата попадает в заморозку.
type AccessGrant struct {
	ID        int64       `json:"id"`
	UserUID   string      `json:"user_uid"`
	CourseID  int64       `json:"course_id"`
	StartsAt  time.Time   `json:"starts_at"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	Source    string      `json:"source"`
	RevokedAt *time.Time  `json:"revoked_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	Frozen    bool        `json:"-"`
	Status    GrantStatus `json:"status,omitempty"`
}

// StatusAt вычисляет статус доступа на момент now.
func (g *AccessGrant) StatusAt(now time.Time) GrantStatus {
	switch {
	case g.RevokedAt != nil:
		return GrantRevoked
	case now.Before(g.StartsAt):
		return GrantPending
	case g.ExpiresAt != nil && !now.Before(*g.ExpiresAt):
		return GrantExpired
	case g.Frozen:
		return GrantFrozen
	default:
		return GrantActive
	}
}

// Freeze приостановка доступа на период [StartDate, EndDate] включительно.
type Freeze struct {
	ID        int64     `json:"id"`
	GrantID   int64     `json:"grant_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      int       `json:"days"`
	CreatedAt time.Time `json:"created_at"`
}

// FreezeRequest запрос пользователя на заморозку.
type FreezeRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	Days      int    `json:"days" validate:"required,gte=1"`
}

// GrantRequest запрос администратора на выдачу или продление доступа.
// Days == nil выдаёт бессрочный доступ.
type GrantRequest struct {
	UserUID  string `json:"user_uid" validate:"required,uuid"`
	CourseID int64  `json:"course_id" validate:"required,gt=0"`
	Days     *int   `json:"days,omitempty" validate:"omitempty,gte=1"`
}

// FreezeApplication всё, что нужно записать в одной транзакции при заморозке.
// Лимиты перепроверяются под блокировкой доступа. KnownFreezes число заморозок,
// от которого строился Replan: если в транзакции их другое число, план устарел.
type FreezeApplication struct {
	Freeze       Freeze
	MaxCount     int
	MaxDays      int
	KnownFreezes int
	Replan       *Replan
}

// GrantReminder данные для уведомления об окончании доступа.
type GrantReminder struct {
	GrantID     int64
	Email       string
	Username    string
	CourseTitle string
	ExpiresAt   time.Time
}

// ExpiryFrom срок нового доступа на days дней от now. days == nil даёт бессрочный доступ.
func ExpiryFrom(now time.Time, days *int) *time.Time {
	if days == nil {
		return nil
	}
	t := now.AddDate(0, 0, *days)
	return &t
}

// Extended срок доступа после продления на days дней.
// Продление идёт от max(now, ExpiresAt). Бессрочный доступ остаётся бессрочным.
func (g *AccessGrant) Extended(now time.Time, days *int) *time.Time {
	if days == nil || g.ExpiresAt == nil {
		return nil
	}
	base := now
	if g.ExpiresAt.After(now) {
		base = *g.ExpiresAt
	}
	return ExpiryFrom(base, days)
}
