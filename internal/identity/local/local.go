// local — самостоятельный identity.Provider для local/dev-развёртываний
// и интеграционных тестов: bcrypt-хэши паролей, HS256 access-токены,
// непрозрачные refresh-токены (в БД только SHA-256) с ротацией.
//
// Ошибки возвращаются как *identity.ProviderError с кодами GoTrue,
// поэтому классификация identity.Classify одинакова для обоих провайдеров.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
	"github.com/pribylovaa/module-mind/internal/pkg/redact"
	"github.com/pribylovaa/module-mind/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength — минимальная длина пароля в символах.
	MinPasswordLength = 6
	// MaxPasswordBytes — предел bcrypt: более длинный пароль не хэшируется.
	MaxPasswordBytes = 72
)

// Ошибки провайдера в формате GoTrue.
var (
	errInvalidCredentials = &identity.ProviderError{Status: http.StatusBadRequest, Code: identity.CodeInvalidCredentials, Message: "Invalid login credentials"}
	errNotConfirmed       = &identity.ProviderError{Status: http.StatusBadRequest, Code: identity.CodeEmailNotConfirmed, Message: "Email not confirmed"}
	errUserExists         = &identity.ProviderError{Status: http.StatusUnprocessableEntity, Code: identity.CodeUserAlreadyExists, Message: "User already registered"}
	errInvalidEmail       = &identity.ProviderError{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Unable to validate email address: invalid format"}
	errWeakPassword       = &identity.ProviderError{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
	errLongPassword       = &identity.ProviderError{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at most 72 bytes."}
	errRefreshNotFound    = &identity.ProviderError{Status: http.StatusBadRequest, Code: identity.CodeRefreshNotFound, Message: "Invalid Refresh Token: Refresh Token Not Found"}
	errRefreshReused      = &identity.ProviderError{Status: http.StatusBadRequest, Code: identity.CodeRefreshReused, Message: "Invalid Refresh Token: Already Used"}
	errRefreshExpired     = &identity.ProviderError{Status: http.StatusBadRequest, Code: identity.CodeRefreshNotFound, Message: "Invalid Refresh Token: Expired"}
	errBadJWT             = &identity.ProviderError{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: "invalid JWT"}
	errUserNotFound       = &identity.ProviderError{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
)

// Config — параметры локального провайдера.
type Config struct {
	JWTSecret string
	// Issuer — базовый URL сервиса; Audience — публичный ключ клиента.
	Issuer              string
	Audience            string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	RequireConfirmation bool
}

// Provider — локальный провайдер идентичности.
type Provider struct {
	storage storage.AuthStorage
	cfg     Config
	now     func() time.Time
}

// New создаёт провайдера поверх хранилища учётных записей.
func New(st storage.AuthStorage, cfg Config) *Provider {
	return &Provider{storage: st, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// SignUp регистрирует учётную запись. При RequireConfirmation сессия не выдаётся.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*models.User, *models.Session, error) {
	const op = "identity.local.SignUp"

	normEmail, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}

	if len([]rune(password)) < MinPasswordLength {
		return nil, nil, errWeakPassword
	}
	if len(password) > MaxPasswordBytes {
		return nil, nil, errLongPassword
	}

	_, err = p.storage.AccountByEmail(ctx, normEmail)
	if err == nil {
		return nil, nil, errUserExists
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, nil, errLongPassword
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	now := p.now()
	acc := &models.Account{
		User: models.User{
			ID:          uuid.New(),
			Email:       normEmail,
			DisplayName: strings.TrimSpace(displayName),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: hash,
	}
	if !p.cfg.RequireConfirmation {
		acc.ConfirmedAt = &now
	}

	if err := p.storage.SaveAccount(ctx, acc); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, nil, errUserExists
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("account_created",
		slog.String("op", op),
		slog.String("user_id", acc.ID.String()),
		slog.String("email", redact.Email(normEmail)),
		slog.Bool("confirmed", acc.Confirmed()),
	)

	if !acc.Confirmed() {
		return &acc.User, nil, nil
	}

	sess, err := p.issueSession(ctx, &acc.User, "")
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return &acc.User, sess, nil
}

// ConfirmEmail отмечает учётную запись email подтверждённой. Заменяет
// письмо со ссылкой подтверждения в local/dev-развёртываниях с
// RequireConfirmation; вызывается из командной строки (--confirm-email).
func (p *Provider) ConfirmEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "identity.local.ConfirmEmail"

	normEmail, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := p.storage.ConfirmAccount(ctx, normEmail, p.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errUserNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("account_confirmed",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(normEmail)),
	)

	return user, nil
}

// SignInWithPassword проверяет учётные данные и выдаёт сессию.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "identity.local.SignInWithPassword"

	normEmail, err := normalizeEmail(email)
	if err != nil || password == "" {
		return nil, errInvalidCredentials
	}

	acc, err := p.storage.AccountByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errInvalidCredentials
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(acc.PasswordHash, password) {
		return nil, errInvalidCredentials
	}

	if !acc.Confirmed() {
		return nil, errNotConfirmed
	}

	sess, err := p.issueSession(ctx, &acc.User, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// RefreshSession ротирует refresh-токен: старый отзывается, выдаётся новая пара.
func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	const op = "identity.local.RefreshSession"

	token, err := p.validateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	acc, err := p.storage.AccountByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errRefreshNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess, err := p.issueSession(ctx, &acc.User, token.TokenHash)
	if err != nil {
		return nil, err
	}

	return sess, nil
}

// SignOut отзывает все refresh-токены владельца access-токена.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	const op = "identity.local.SignOut"

	uid, err := p.validateAccessToken(accessToken)
	if err != nil {
		return errBadJWT
	}

	if err := p.storage.RevokeUserTokens(ctx, uid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// User возвращает владельца access-токена.
func (p *Provider) User(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "identity.local.User"

	uid, err := p.validateAccessToken(accessToken)
	if err != nil {
		return nil, errBadJWT
	}

	acc, err := p.storage.AccountByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errUserNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &acc.User, nil
}

// UpdateUser меняет отображаемое имя владельца access-токена.
func (p *Provider) UpdateUser(ctx context.Context, accessToken, displayName string) (*models.User, error) {
	const op = "identity.local.UpdateUser"

	uid, err := p.validateAccessToken(accessToken)
	if err != nil {
		return nil, errBadJWT
	}

	user, err := p.storage.UpdateDisplayName(ctx, uid, strings.TrimSpace(displayName), p.now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errUserNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// RecoverPassword принимает запрос на восстановление. Ответ не зависит от того,
// существует ли учётная запись; письма локальный провайдер не отправляет.
func (p *Provider) RecoverPassword(ctx context.Context, email string) error {
	const op = "identity.local.RecoverPassword"

	normEmail, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	_, err = p.storage.AccountByEmail(ctx, normEmail)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("password_recovery_requested",
		slog.String("op", op),
		slog.String("email", redact.Email(normEmail)),
		slog.Bool("account_exists", err == nil),
	)

	return nil
}

// StartJanitor периодически удаляет просроченные refresh-токены до отмены ctx.
func (p *Provider) StartJanitor(ctx context.Context, period time.Duration) {
	if period <= 0 {
		return
	}

	lg := log.From(ctx)

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := p.storage.DeleteExpiredTokens(ctx, p.now()); err != nil {
					lg.Error("refresh_janitor_failed", slog.String("err", err.Error()))
				}
			}
		}
	}()
}

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", errInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errInvalidEmail
	}

	return strings.ToLower(email), nil
}

var _ identity.Provider = (*Provider)(nil)
