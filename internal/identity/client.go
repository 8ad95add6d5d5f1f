package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
	"github.com/pribylovaa/module-mind/internal/pkg/redact"
	"github.com/pribylovaa/module-mind/internal/storage"
)

// Client — Session Store одного браузерного контекста.
//
// Операции сначала обращаются к провайдеру, затем обновляют сохранённую
// сессию и только после этого синхронно рассылают событие подписчикам.
//
// Выход увеличивает поколение сессии. Результат продления или смены профиля,
// начатых в старом поколении, отбрасывается: завершённый пользователем выход
// не отменяется ответом провайдера, пришедшим позже. Запись сессии и рассылка
// события выполняются под sessMu, поэтому слушатели не должны вызывать
// SignIn, SignUp, SignOut, Refresh или UpdateUser этого клиента.
type Client struct {
	contextID string
	provider  Provider
	store     storage.SessionStorage
	ttl       time.Duration

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int

	sessMu sync.Mutex
	gen    uint64
}

// NewClient создаёт клиента контекста contextID.
// ttl — срок хранения сессии в store (0 — без срока).
func NewClient(contextID string, p Provider, st storage.SessionStorage, ttl time.Duration) *Client {
	return &Client{
		contextID: contextID,
		provider:  p,
		store:     st,
		ttl:       ttl,
		listeners: make(map[int]Listener),
	}
}

// ContextID возвращает идентификатор браузерного контекста.
func (c *Client) ContextID() string { return c.contextID }

// Subscribe регистрирует слушателя; возвращённая функция отписывает его.
func (c *Client) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) emit(ctx context.Context, ev Event, sess *models.Session) {
	c.mu.Lock()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.Unlock()

	for _, l := range ls {
		l(ctx, ev, sess.Clone())
	}
}

// Session возвращает сохранённую сессию контекста или ErrNoSession.
func (c *Client) Session(ctx context.Context) (*models.Session, error) {
	const op = "identity.Client.Session"

	sess, err := c.store.LoadSession(ctx, c.contextID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoSession
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// SignIn обменивает учётные данные на сессию и рассылает SIGNED_IN.
// Ошибки провайдера возвращаются как *AuthError.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "identity.Client.SignIn"

	sess, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		ae := Classify(err)
		log.From(ctx).Info("sign_in_rejected",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("kind", string(ae.Kind)),
		)

		return nil, ae
	}

	if err := c.adopt(ctx, EventSignedIn, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// SignUp регистрирует пользователя. Если провайдер сразу выдал сессию,
// она сохраняется и рассылается SIGNED_IN; иначе сессия nil.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*models.User, *models.Session, error) {
	const op = "identity.Client.SignUp"

	user, sess, err := c.provider.SignUp(ctx, email, password, displayName)
	if err != nil {
		ae := Classify(err)
		log.From(ctx).Info("sign_up_rejected",
			slog.String("op", op),
			slog.String("email", redact.Email(email)),
			slog.String("kind", string(ae.Kind)),
		)

		return nil, nil, ae
	}

	if sess == nil {
		return user, nil, nil
	}

	if err := c.adopt(ctx, EventSignedIn, sess); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, sess, nil
}

// SignOut завершает сессию. Локальная сессия удаляется и SIGNED_OUT
// рассылается всегда, даже если провайдер недоступен; ошибка провайдера
// при этом возвращается вызывающему для логирования.
func (c *Client) SignOut(ctx context.Context) error {
	const op = "identity.Client.SignOut"

	var remoteErr error
	sess, err := c.Session(ctx)
	switch {
	case err == nil:
		if err := c.provider.SignOut(ctx, sess.AccessToken); err != nil {
			remoteErr = Classify(err)
		}
	case !errors.Is(err, ErrNoSession):
		remoteErr = err
	}

	c.sessMu.Lock()
	c.gen++
	if err := c.store.DeleteSession(ctx, c.contextID); err != nil {
		log.From(ctx).Error("session_delete_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}
	c.emit(ctx, EventSignedOut, nil)
	c.sessMu.Unlock()

	if remoteErr != nil {
		return fmt.Errorf("%s: %w", op, remoteErr)
	}

	return nil
}

// Refresh продлевает сохранённую сессию и рассылает TOKEN_REFRESHED.
// Любой отказ возвращается как *AuthError с Kind=KindRefreshFailed
// (кроме отсутствия сессии — ErrNoSession). Если во время обращения
// к провайдеру контекст вышел, новая сессия не сохраняется и
// возвращается ErrNoSession.
func (c *Client) Refresh(ctx context.Context) (*models.Session, error) {
	const op = "identity.Client.Refresh"

	gen := c.generation()

	cur, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := c.provider.RefreshSession(ctx, cur.RefreshToken)
	if err != nil {
		ae := Classify(err)
		log.From(ctx).Warn("token_refresh_rejected",
			slog.String("op", op),
			slog.String("refresh_token", redact.Token(cur.RefreshToken)),
			slog.String("kind", string(ae.Kind)),
		)

		return nil, &AuthError{Kind: KindRefreshFailed, Raw: ae.Raw, Err: ae}
	}

	if err := c.adoptIfCurrent(ctx, gen, EventTokenRefreshed, sess); err != nil {
		if errors.Is(err, ErrNoSession) {
			log.From(ctx).Info("stale_refresh_dropped", slog.String("op", op))
			return nil, ErrNoSession
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// UpdateUser меняет отображаемое имя и рассылает USER_UPDATED.
func (c *Client) UpdateUser(ctx context.Context, displayName string) (*models.User, error) {
	const op = "identity.Client.UpdateUser"

	gen := c.generation()

	sess, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}

	user, err := c.provider.UpdateUser(ctx, sess.AccessToken, displayName)
	if err != nil {
		return nil, Classify(err)
	}

	sess.User = *user
	if err := c.adoptIfCurrent(ctx, gen, EventUserUpdated, sess); err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, ErrNoSession
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// RecoverPassword инициирует восстановление пароля и рассылает PASSWORD_RECOVERY.
func (c *Client) RecoverPassword(ctx context.Context, email string) error {
	if err := c.provider.RecoverPassword(ctx, email); err != nil {
		return Classify(err)
	}

	c.emit(ctx, EventPasswordRecovery, nil)

	return nil
}

func (c *Client) generation() uint64 {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	return c.gen
}

func (c *Client) adopt(ctx context.Context, ev Event, sess *models.Session) error {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	return c.save(ctx, ev, sess)
}

// adoptIfCurrent сохраняет сессию, только если с момента gen не было выхода.
func (c *Client) adoptIfCurrent(ctx context.Context, gen uint64, ev Event, sess *models.Session) error {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	if c.gen != gen {
		return ErrNoSession
	}

	return c.save(ctx, ev, sess)
}

func (c *Client) save(ctx context.Context, ev Event, sess *models.Session) error {
	if err := c.store.SaveSession(ctx, c.contextID, sess, c.ttl); err != nil {
		return err
	}

	c.emit(ctx, ev, sess)

	return nil
}
