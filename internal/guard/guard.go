// guard — Route Guard браузерного контекста.
//
// Автомат с тремя состояниями: Checking → Granted | Denied,
// Denied → Granted при входе, Granted → Denied при выходе или
// принудительном истечении сессии. Переходы Granted/Denied задаются
// только событиями Auth State Manager.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pribylovaa/module-mind/internal/authstate"
	"github.com/pribylovaa/module-mind/internal/metrics"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
	"github.com/pribylovaa/module-mind/internal/storage"
)

// State — состояние guard.
type State int

const (
	Checking State = iota
	Denied
	Granted
)

func (s State) String() string {
	switch s {
	case Checking:
		return "checking"
	case Denied:
		return "denied"
	case Granted:
		return "granted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText отдаёт состояние строкой в JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Auth — то, что guard читает у Auth State Manager.
type Auth interface {
	Initialize(ctx context.Context)
	Resolved() bool
	Authenticated() bool
	Revalidate(ctx context.Context) bool
	OnChange(fn authstate.ChangeListener)
}

// Guard — Route Guard одного контекста.
type Guard struct {
	contextID string
	auth      Auth
	redirects storage.RedirectStorage
	metrics   *metrics.Metrics

	mu    sync.Mutex
	state State
	path  string
}

// New создаёт guard в состоянии Checking и подписывает его на смену состояния.
func New(contextID string, auth Auth, redirects storage.RedirectStorage, m *metrics.Metrics) *Guard {
	g := &Guard{
		contextID: contextID,
		auth:      auth,
		redirects: redirects,
		metrics:   m,
	}
	auth.OnChange(g.onChange)

	return g
}

// State возвращает текущее состояние.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.state
}

// Check разрешает Checking по результату начальной проверки
// и возвращает состояние без повторной валидации.
func (g *Guard) Check(ctx context.Context) State {
	g.auth.Initialize(ctx)
	g.resolve()

	return g.State()
}

// Enter обрабатывает навигацию на защищённый путь.
//
// Denied: путь записывается как Pending Redirect (с перезаписью),
// защищённое содержимое не монтируется. Granted на новом пути:
// защитная перепроверка сессии; состояние меняет только неудачная перепроверка.
// Путь вне приложения отклоняется с ErrInvalidPath.
func (g *Guard) Enter(ctx context.Context, path string) (State, error) {
	const op = "guard.Guard.Enter"

	if !ValidPath(path) {
		return g.State(), ErrInvalidPath
	}

	state := g.Check(ctx)

	g.mu.Lock()
	last := g.path
	g.mu.Unlock()

	if state == Granted && path != last {
		if !g.auth.Revalidate(ctx) {
			g.onChange(ctx, false)
		}
		state = g.State()
	}

	if state == Denied {
		g.metrics.GuardDecision(Denied.String())

		if err := g.redirects.SetPendingRedirect(ctx, g.contextID, path); err != nil {
			return Denied, fmt.Errorf("%s: %w", op, err)
		}

		log.From(ctx).Debug("guard_denied",
			slog.String("op", op),
			slog.String("path", path),
		)

		return Denied, nil
	}

	g.metrics.GuardDecision(Granted.String())

	g.mu.Lock()
	g.path = path
	g.mu.Unlock()

	return Granted, nil
}

func (g *Guard) resolve() {
	if !g.auth.Resolved() {
		return
	}

	authenticated := g.auth.Authenticated()

	g.mu.Lock()
	if g.state == Checking {
		g.state = stateFor(authenticated)
	}
	g.mu.Unlock()
}

func (g *Guard) onChange(_ context.Context, authenticated bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = stateFor(authenticated)
	if !authenticated {
		g.path = ""
	}
}

func stateFor(authenticated bool) State {
	if authenticated {
		return Granted
	}

	return Denied
}
