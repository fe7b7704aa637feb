// Package models содержит доменные структуры сервиса: пользователей, подписки,
// встречи и их участников.
package models

// User — зарегистрированный пользователь, которому принадлежат подписки.
type User struct {
	UUID   string
	Name   string
	Email  string
	Phone  string
	Source string // канал регистрации
	Role   string // admin или user
}

// Attendee — участник встречи.
type Attendee struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}
