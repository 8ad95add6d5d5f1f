// authstate — Auth State Manager браузерного контекста.
//
// Manager — единственный источник ответа на вопрос «кто аутентифицирован»
// внутри контекста: кэширует копию сессии, реагирует на события
// identity.Client и продлевает токен до истечения (см. refresh.go).
//
// Решения всегда принимаются по последней закэшированной сессии,
// прочитанной под блокировкой в момент решения.
package authstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/metrics"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
	"github.com/pribylovaa/module-mind/internal/storage"
)

// SignUpStatus — исход регистрации.
type SignUpStatus int

const (
	// SignUpSignedIn — регистрация завершилась активной сессией.
	SignUpSignedIn SignUpStatus = iota + 1
	// SignUpConfirmationRequired — пользователь создан, но войти нельзя
	// до подтверждения e-mail.
	SignUpConfirmationRequired
)

func (s SignUpStatus) String() string {
	switch s {
	case SignUpSignedIn:
		return "signed_in"
	case SignUpConfirmationRequired:
		return "confirmation_required"
	default:
		return "unknown"
	}
}

// Client — операции Session Store, нужные менеджеру.
// Реализуется *identity.Client.
type Client interface {
	ContextID() string
	Session(ctx context.Context) (*models.Session, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password, displayName string) (*models.User, *models.Session, error)
	SignOut(ctx context.Context) error
	Refresh(ctx context.Context) (*models.Session, error)
	UpdateUser(ctx context.Context, displayName string) (*models.User, error)
	RecoverPassword(ctx context.Context, email string) error
	Subscribe(fn identity.Listener) (unsubscribe func())
}

// Store — хранилища контекста, с которыми работает менеджер.
type Store interface {
	storage.RedirectStorage
	storage.EphemeralStorage
}

// Navigator получает сигнал навигации на путь.
type Navigator func(path string)

// ChangeListener вызывается при смене состояния аутентификации
// и один раз при завершении начальной проверки.
type ChangeListener func(ctx context.Context, authenticated bool)

// Config — параметры менеджера.
type Config struct {
	RefreshInterval time.Duration
	SafetyWindow    time.Duration
	DefaultPath     string
	SignedOutPath   string
	RecoveryPath    string
}

// Manager — Auth State Manager одного браузерного контекста.
type Manager struct {
	client  Client
	store   Store
	cfg     Config
	nav     Navigator
	metrics *metrics.Metrics
	now     func() time.Time

	mu        sync.RWMutex
	session   *models.Session
	resolved  bool
	listeners []ChangeListener

	// refreshMu сериализует продление: тик таймера и Revalidate
	// не должны одновременно предъявлять один refresh-токен.
	refreshMu sync.Mutex

	unsubscribe func()
	initOnce    sync.Once
	startOnce   sync.Once
	closeOnce   sync.Once
	stop        chan struct{}
	wg          sync.WaitGroup
}

// New создаёт менеджера и подписывает его на события клиента.
// nav и m могут быть nil.
func New(client Client, store Store, cfg Config, nav Navigator, m *metrics.Metrics) *Manager {
	if nav == nil {
		nav = func(string) {}
	}

	mgr := &Manager{
		client:  client,
		store:   store,
		cfg:     cfg,
		nav:     nav,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		stop:    make(chan struct{}),
	}
	mgr.unsubscribe = client.Subscribe(mgr.handleEvent)

	return mgr
}

// Initialize принимает сохранённую сессию контекста. Сессия внутри окна
// безопасности сначала продлевается. Внутренние ошибки сворачиваются
// в «нет сессии»; наружу Initialize не отказывает. Повторные вызовы ничего не делают.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() { m.initialize(ctx) })
}

func (m *Manager) initialize(ctx context.Context) {
	const op = "authstate.Manager.Initialize"

	lg := log.From(ctx)

	sess, err := m.client.Session(ctx)
	switch {
	case err == nil:
		m.mu.Lock()
		m.session = sess
		m.mu.Unlock()

		m.refreshIfDue(ctx)
	case errors.Is(err, identity.ErrNoSession):
	default:
		lg.Warn("session_restore_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}

	m.mu.Lock()
	m.resolved = true
	authenticated := m.authenticatedLocked()
	ls := append([]ChangeListener(nil), m.listeners...)
	m.mu.Unlock()

	lg.Debug("auth_state_initialized",
		slog.String("op", op),
		slog.Bool("authenticated", authenticated),
	)

	for _, l := range ls {
		l(ctx, authenticated)
	}
}

// Resolved сообщает, завершена ли начальная проверка сессии.
func (m *Manager) Resolved() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.resolved
}

// Authenticated сообщает, есть ли у контекста неистёкшая сессия.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.authenticatedLocked()
}

func (m *Manager) authenticatedLocked() bool {
	return m.session != nil && !m.session.Expired(m.now())
}

// Session возвращает копию закэшированной сессии или nil.
func (m *Manager) Session() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.session.Clone()
}

// OnChange регистрирует слушателя смены состояния.
func (m *Manager) OnChange(fn ChangeListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// SignIn делегирует проверку учётных данных. Ожидаемые отказы
// возвращаются как *identity.AuthError; состояние обновляется событием SIGNED_IN.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	_, err := m.client.SignIn(ctx, email, password)
	m.metrics.AuthAttempt("sign_in", outcome(err))

	return err
}

// SignUp регистрирует пользователя. Если провайдер не выдал сессию,
// выполняется ровно одна попытка входа с теми же данными; её отказ
// даёт SignUpConfirmationRequired без ошибки.
func (m *Manager) SignUp(ctx context.Context, email, password, displayName string) (SignUpStatus, error) {
	const op = "authstate.Manager.SignUp"

	_, sess, err := m.client.SignUp(ctx, email, password, displayName)
	if err != nil {
		m.metrics.AuthAttempt("sign_up", outcome(err))
		return 0, err
	}

	if sess != nil {
		m.metrics.AuthAttempt("sign_up", "ok")
		return SignUpSignedIn, nil
	}

	if _, err := m.client.SignIn(ctx, email, password); err != nil {
		log.From(ctx).Info("sign_up_confirmation_required",
			slog.String("op", op),
			slog.String("kind", outcome(err)),
		)
		m.metrics.AuthAttempt("sign_up", "confirmation_required")

		return SignUpConfirmationRequired, nil
	}

	m.metrics.AuthAttempt("sign_up", "ok")

	return SignUpSignedIn, nil
}

// SignOut завершает сессию у провайдера, затем всегда очищает локальное
// состояние и эфемерные данные и сигналит навигацию на SignedOutPath.
// Ошибка провайдера возвращается только для логирования. Идемпотентен.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.client.SignOut(ctx)
	m.clearLocal(ctx)
	m.nav(m.cfg.SignedOutPath)

	return err
}

// UpdateUser меняет отображаемое имя; кэш обновляется событием USER_UPDATED.
func (m *Manager) UpdateUser(ctx context.Context, displayName string) (*models.User, error) {
	return m.client.UpdateUser(ctx, displayName)
}

// RecoverPassword запускает восстановление пароля.
func (m *Manager) RecoverPassword(ctx context.Context, email string) error {
	return m.client.RecoverPassword(ctx, email)
}

func (m *Manager) handleEvent(ctx context.Context, ev identity.Event, sess *models.Session) {
	const op = "authstate.Manager.handleEvent"

	lg := log.From(ctx).With(slog.String("op", op), slog.String("event", string(ev)))

	switch ev {
	case identity.EventSignedIn:
		m.setSession(ctx, sess)
		lg.Info("session_adopted", slog.String("user_id", sess.User.ID.String()))
		m.nav(m.consumeRedirect(ctx))
	case identity.EventSignedOut:
		m.clearLocal(ctx)
	case identity.EventTokenRefreshed, identity.EventUserUpdated:
		m.setSession(ctx, sess)
		lg.Debug("session_updated", slog.Time("expires_at", sess.ExpiresAt))
	case identity.EventPasswordRecovery:
		lg.Info("password_recovery_started")
		m.nav(m.cfg.RecoveryPath)
	default:
		lg.Warn("unknown_session_event")
	}
}

// consumeRedirect читает и удаляет Pending Redirect; без него — DefaultPath.
func (m *Manager) consumeRedirect(ctx context.Context) string {
	const op = "authstate.Manager.consumeRedirect"

	path, err := m.store.ConsumePendingRedirect(ctx, m.client.ContextID())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Warn("pending_redirect_consume_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}

		return m.cfg.DefaultPath
	}

	log.From(ctx).Debug("pending_redirect_consumed", slog.String("op", op), slog.String("path", path))

	return path
}

func (m *Manager) clearLocal(ctx context.Context) {
	const op = "authstate.Manager.clearLocal"

	m.setSession(ctx, nil)

	if err := m.store.PurgeEphemeral(ctx, m.client.ContextID()); err != nil {
		log.From(ctx).Error("ephemeral_purge_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}
}

// setSession заменяет кэш и уведомляет слушателей о смене состояния.
func (m *Manager) setSession(ctx context.Context, sess *models.Session) {
	m.mu.Lock()
	before := m.authenticatedLocked()
	m.session = sess.Clone()
	after := m.authenticatedLocked()
	notify := m.resolved && before != after
	ls := append([]ChangeListener(nil), m.listeners...)
	m.mu.Unlock()

	if !notify {
		return
	}

	for _, l := range ls {
		l(ctx, after)
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}

	var ae *identity.AuthError
	if errors.As(err, &ae) {
		return string(ae.Kind)
	}

	return "error"
}
