// modal — Credential Modal: сбор учётных данных и локальная валидация.
//
// Модалка не закрывается, пока контекст не аутентифицирован; скрывается
// сама при любом переходе в аутентифицированное состояние.
// Пароль в состоянии модалки не хранится: введённые поля,
// сохраняемые при смене вкладки, это email и отображаемое имя.
package modal

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pribylovaa/module-mind/internal/authstate"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
	"github.com/pribylovaa/module-mind/internal/pkg/redact"
)

var (
	// ErrBusy — предыдущая отправка формы ещё выполняется.
	ErrBusy = errors.New("submission in progress")
	// ErrNotDismissible — закрыть модалку без входа нельзя.
	ErrNotDismissible = errors.New("modal cannot be dismissed while signed out")
	// ErrInvalidMode — неизвестная вкладка.
	ErrInvalidMode = errors.New("invalid modal mode")
)

// ConfirmationNotice показывается после регистрации, требующей подтверждения.
const ConfirmationNotice = "Check your email to confirm your account, then sign in."

// Mode — вкладка модалки.
type Mode string

const (
	ModeSignIn   Mode = "sign_in"
	ModeRegister Mode = "register"
)

// DismissReason — способ закрытия.
type DismissReason string

const (
	DismissBackdrop DismissReason = "backdrop"
	DismissEscape   DismissReason = "escape"
	DismissButton   DismissReason = "close_button"
)

// Outcome — результат успешной отправки.
type Outcome string

const (
	OutcomeSignedIn             Outcome = "signed_in"
	OutcomeConfirmationRequired Outcome = "confirmation_required"
)

// Auth — операции Auth State Manager, нужные модалке.
type Auth interface {
	Authenticated() bool
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password, displayName string) (authstate.SignUpStatus, error)
	OnChange(fn authstate.ChangeListener)
}

// Fields — введённые значения формы.
type Fields struct {
	Email       string
	Password    string
	DisplayName string
}

// View — то, что отрисовывает фронтенд.
type View struct {
	Visible     bool   `json:"visible"`
	Dismissible bool   `json:"dismissible"`
	Mode        Mode   `json:"mode"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Busy        bool   `json:"busy"`
	Disabled    bool   `json:"disabled"`
	Error       string `json:"error,omitempty"`
	Notice      string `json:"notice,omitempty"`
}

// Modal — Credential Modal одного контекста.
type Modal struct {
	auth     Auth
	validate *validator.Validate

	mu          sync.Mutex
	visible     bool
	mode        Mode
	email       string
	displayName string
	busy        bool
	errMsg      string
	notice      string
}

// New создаёт модалку; видимость следует за состоянием аутентификации.
func New(auth Auth) *Modal {
	m := &Modal{
		auth:     auth,
		validate: newValidator(),
		visible:  !auth.Authenticated(),
		mode:     ModeSignIn,
	}
	auth.OnChange(m.onChange)

	return m
}

// View возвращает снимок состояния.
func (m *Modal) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	return View{
		Visible:     m.visible,
		Dismissible: m.auth.Authenticated(),
		Mode:        m.mode,
		Email:       m.email,
		DisplayName: m.displayName,
		Busy:        m.busy,
		Disabled:    m.busy,
		Error:       m.errMsg,
		Notice:      m.notice,
	}
}

// SwitchMode переключает вкладку: сообщение об ошибке очищается,
// введённые email и имя сохраняются. Непустые значения draft обновляют их.
func (m *Modal) SwitchMode(mode Mode, draft Fields) error {
	if mode != ModeSignIn && mode != ModeRegister {
		return ErrInvalidMode
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return ErrBusy
	}

	m.mode = mode
	m.errMsg = ""
	m.keepDraft(draft)

	return nil
}

// Dismiss закрывает модалку. Пока контекст не аутентифицирован,
// любые способы закрытия перехватываются.
func (m *Modal) Dismiss(ctx context.Context, reason DismissReason) error {
	if !m.auth.Authenticated() {
		log.From(ctx).Debug("modal_dismiss_blocked", slog.String("reason", string(reason)))
		return ErrNotDismissible
	}

	m.mu.Lock()
	m.visible = false
	m.mu.Unlock()

	return nil
}

// Submit валидирует поля и отправляет их в текущей вкладке.
// Ошибка валидации (*ValidationError) возвращается до любого сетевого вызова.
// Пока отправка выполняется, повторная отправка получает ErrBusy.
func (m *Modal) Submit(ctx context.Context, in Fields) (Outcome, error) {
	const op = "modal.Modal.Submit"

	in.Email = strings.TrimSpace(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return "", ErrBusy
	}

	mode := m.mode
	m.keepDraft(in)
	m.notice = ""

	if err := m.check(mode, in); err != nil {
		m.errMsg = err.Error()
		m.mu.Unlock()

		return "", err
	}

	m.busy = true
	m.errMsg = ""
	m.mu.Unlock()

	outcome, err := m.send(ctx, mode, in)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.busy = false

	if err != nil {
		m.errMsg = userMessage(err)
		log.From(ctx).Info("modal_submit_failed",
			slog.String("op", op),
			slog.String("mode", string(mode)),
			slog.String("email", redact.Email(in.Email)),
		)

		return "", err
	}

	if outcome == OutcomeConfirmationRequired {
		m.mode = ModeSignIn
		m.notice = ConfirmationNotice
	}

	return outcome, nil
}

func (m *Modal) send(ctx context.Context, mode Mode, in Fields) (Outcome, error) {
	if mode == ModeRegister {
		status, err := m.auth.SignUp(ctx, in.Email, in.Password, in.DisplayName)
		if err != nil {
			return "", err
		}

		if status == authstate.SignUpConfirmationRequired {
			return OutcomeConfirmationRequired, nil
		}

		return OutcomeSignedIn, nil
	}

	if err := m.auth.SignIn(ctx, in.Email, in.Password); err != nil {
		return "", err
	}

	return OutcomeSignedIn, nil
}

func (m *Modal) keepDraft(in Fields) {
	if in.Email != "" {
		m.email = in.Email
	}
	if in.DisplayName != "" {
		m.displayName = in.DisplayName
	}
}

func (m *Modal) onChange(_ context.Context, authenticated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if authenticated {
		m.visible = false
		m.errMsg = ""
		m.notice = ""
		return
	}

	m.visible = true
	m.mode = ModeSignIn
}

// userMessage — короткий текст ошибки рядом с формой.
func userMessage(err error) string {
	var ae *identity.AuthError
	if errors.As(err, &ae) {
		return ae.Message()
	}

	return identity.Classify(err).Message()
}
