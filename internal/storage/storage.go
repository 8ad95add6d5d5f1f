// storage описывает контракты хранилищ module-mind.
//
// Реализации:
//   - memory   — состояние браузерных контекстов и прогресс в памяти процесса;
//   - redis    — персистентная сессия, Pending Redirect и эфемерные данные контекста;
//   - mongo    — прогресс (документ на пару пользователь/курс);
//   - postgres — пользователи и refresh-токены локального провайдера;
//   - minio    — выдача подписанных ссылок на объекты.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/refresh-token).
	ErrAlreadyExists = errors.New("already exists")
)

// SessionStorage хранит сессию браузерного контекста между запросами.
// В контексте не больше одной сессии: SaveSession перезаписывает предыдущую.
type SessionStorage interface {
	// LoadSession возвращает сохранённую сессию или ErrNotFound.
	LoadSession(ctx context.Context, contextID string) (*models.Session, error)
	// SaveSession сохраняет сессию; ttl <= 0 означает хранение без срока.
	SaveSession(ctx context.Context, contextID string, s *models.Session, ttl time.Duration) error
	// DeleteSession удаляет сессию. Отсутствие записи ошибкой не считается.
	DeleteSession(ctx context.Context, contextID string) error
}

// RedirectStorage хранит Pending Redirect: одно значение на контекст,
// перезаписывается, потребляется ровно один раз.
type RedirectStorage interface {
	// SetPendingRedirect записывает путь, затирая предыдущий.
	SetPendingRedirect(ctx context.Context, contextID, path string) error
	// ConsumePendingRedirect читает и удаляет путь; пусто — ErrNotFound.
	ConsumePendingRedirect(ctx context.Context, contextID string) (string, error)
}

// EphemeralStorage — данные приложения, живущие не дольше сессии пользователя
// (позиции плееров и т.п.). PurgeEphemeral вызывается при выходе.
type EphemeralStorage interface {
	SetEphemeral(ctx context.Context, contextID, key, value string) error
	// Ephemeral возвращает значение или ErrNotFound.
	Ephemeral(ctx context.Context, contextID, key string) (string, error)
	PurgeEphemeral(ctx context.Context, contextID string) error
}

// ContextStorage объединяет хранилища одного браузерного контекста.
type ContextStorage interface {
	SessionStorage
	RedirectStorage
	EphemeralStorage
	// Evict удаляет Pending Redirect и эфемерные данные закрытого контекста.
	// Сессия остаётся: вернувшийся браузер её восстановит.
	Evict(ctx context.Context, contextID string) error
	Close() error
}

// ProgressStorage хранит прогресс по ключу (пользователь, курс).
type ProgressStorage interface {
	// Progress возвращает запись или ErrNotFound.
	Progress(ctx context.Context, userID uuid.UUID, courseID string) (*models.Progress, error)
	// SaveProgress создаёт или заменяет запись целиком.
	SaveProgress(ctx context.Context, p *models.Progress) error
}

// SignedURLStorage выдаёт ограниченные по времени ссылки на объекты.
type SignedURLStorage interface {
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// UserStorage — учётные записи локального провайдера.
type UserStorage interface {
	// SaveAccount создаёт учётную запись; занятый email — ErrAlreadyExists.
	SaveAccount(ctx context.Context, acc *models.Account) error
	// AccountByEmail находит учётную запись по email.
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	// AccountByID находит учётную запись по ID.
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	// UpdateDisplayName меняет отображаемое имя и возвращает обновлённого пользователя.
	UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string, now time.Time) (*models.User, error)
	// ConfirmAccount отмечает email подтверждённым; уже подтверждённая запись
	// не меняется. Нет записи — ErrNotFound.
	ConfirmAccount(ctx context.Context, email string, now time.Time) (*models.User, error)
}

// RefreshTokenStorage — refresh-токены локального провайдера.
type RefreshTokenStorage interface {
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RevokeRefreshTokenIfActive отзывает токен, если он ещё активен.
	// (true, nil) — отозван сейчас; (false, nil) — уже был отозван; ErrNotFound — нет токена.
	RevokeRefreshTokenIfActive(ctx context.Context, hash string) (bool, error)
	// RevokeUserTokens отзывает все активные токены пользователя.
	RevokeUserTokens(ctx context.Context, userID uuid.UUID) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

// AuthStorage задаёт контракт БД локального провайдера.
type AuthStorage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
