package models

import (
	"time"

	"github.com/google/uuid"
)

// User — идентичность пользователя: неизменяемый ID, e-mail и
// изменяемые отображаемые метаданные.
type User struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Account — учётная запись локального провайдера (хэш пароля и подтверждение).
// ConfirmedAt == nil означает, что e-mail ещё не подтверждён.
type Account struct {
	User
	PasswordHash string
	ConfirmedAt  *time.Time
}

// Confirmed сообщает, подтверждена ли учётная запись.
func (a *Account) Confirmed() bool {
	return a.ConfirmedAt != nil
}

// RefreshToken — запись refresh-токена локального провайдера.
// В хранилище лежит только хэш токена, сам секрет знает клиент.
type RefreshToken struct {
	TokenHash string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}
