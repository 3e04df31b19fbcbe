// Package models содержит доменные структуры сервиса фитнес-курсов:
// пользователей, курсы, доступы, заморозки, записи на курс и дневные планы.
package models

import "time"

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User представляет зарегистрированного пользователя.
type User struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserFilter параметры поиска пользователей в админ-панели.
type UserFilter struct {
	Query  string // подстрока email или username
	Role   string
	Limit  int
	Offset int
}
