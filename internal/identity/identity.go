// identity — граница с провайдером идентичности (Session Store).
//
// Provider — stateless транспорт к провайдеру (gotrue или local).
// Client — фасад одного браузерного контекста: хранит его сессию
// в storage.SessionStorage и рассылает события смены состояния.
// Все ошибки провайдера переводятся в *AuthError ровно один раз, здесь.
package identity

import (
	"context"
	"errors"

	"github.com/pribylovaa/module-mind/internal/models"
)

// ErrNoSession — у контекста нет сохранённой сессии.
var ErrNoSession = errors.New("no session")

// Event — событие смены состояния сессии.
type Event string

const (
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// Listener получает события клиента. sess — копия актуальной сессии
// (nil для SIGNED_OUT и PASSWORD_RECOVERY).
type Listener func(ctx context.Context, ev Event, sess *models.Session)

// Provider — операции провайдера идентичности.
type Provider interface {
	// SignInWithPassword обменивает учётные данные на сессию.
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	// SignUp регистрирует пользователя. Сессия nil, если провайдер требует подтверждения.
	SignUp(ctx context.Context, email, password, displayName string) (*models.User, *models.Session, error)
	// SignOut инвалидирует сессию.
	SignOut(ctx context.Context, accessToken string) error
	// RefreshSession выпускает новую сессию по refresh-токену.
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	// User возвращает пользователя по access-токену.
	User(ctx context.Context, accessToken string) (*models.User, error)
	// UpdateUser меняет отображаемое имя.
	UpdateUser(ctx context.Context, accessToken, displayName string) (*models.User, error)
	// RecoverPassword инициирует восстановление пароля.
	RecoverPassword(ctx context.Context, email string) error
}
