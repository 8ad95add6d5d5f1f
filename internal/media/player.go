package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/metrics"
	"github.com/pribylovaa/module-mind/internal/storage"
)

var (
	// ErrPlayerNotFound — плеер с таким ID не смонтирован.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrInvalidPosition — позиция отрицательна или не число.
	ErrInvalidPosition = errors.New("invalid seek position")
	// ErrEmptyObjectPath — не задан путь объекта.
	ErrEmptyObjectPath = errors.New("empty object path")
	// ErrTooManyPlayers — в контексте уже смонтировано MaxPlayers плееров.
	ErrTooManyPlayers = errors.New("too many players")
)

// Seeker — возможность перемотки, которую плеер отдаёт связанным
// компонентам (таймкоды в содержании урока) явной ссылкой.
type Seeker interface {
	Seek(ctx context.Context, seconds float64) error
}

// Player — смонтированный плеер: резолвер ссылки и позиция воспроизведения.
// Позиция хранится в эфемерном хранилище контекста и исчезает при выходе.
type Player struct {
	*Resolver

	id        string
	contextID string
	positions storage.EphemeralStorage
}

// ID возвращает идентификатор плеера.
func (p *Player) ID() string { return p.id }

func (p *Player) positionKey() string { return "player:" + p.id + ":position" }

// Seek запоминает позицию, на которую фронтенд должен перемотать плеер.
func (p *Player) Seek(ctx context.Context, seconds float64) error {
	const op = "media.Player.Seek"

	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return ErrInvalidPosition
	}

	v := strconv.FormatFloat(seconds, 'f', 3, 64)
	if err := p.positions.SetEphemeral(ctx, p.contextID, p.positionKey(), v); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Position возвращает последнюю позицию перемотки (0, если её нет).
func (p *Player) Position(ctx context.Context) (float64, error) {
	const op = "media.Player.Position"

	v, err := p.positions.Ephemeral(ctx, p.contextID, p.positionKey())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return f, nil
}

// View — состояние плеера для фронтенда.
type View struct {
	ID         string     `json:"id"`
	ObjectPath string     `json:"object_path"`
	Status     Status     `json:"status"`
	URL        string     `json:"url,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Position   float64    `json:"position"`
}

// View собирает снимок состояния плеера.
func (p *Player) View(ctx context.Context) (View, error) {
	st, msg := p.Status()
	v := View{
		ID:         p.id,
		ObjectPath: p.ObjectPath(),
		Status:     st,
		Error:      msg,
	}

	if h := p.Handle(); h != nil && st == StatusReady {
		v.URL = h.URL
		exp := h.ExpiresAt
		v.ExpiresAt = &exp
	}

	pos, err := p.Position(ctx)
	if err != nil {
		return View{}, err
	}
	v.Position = pos

	return v, nil
}

var _ Seeker = (*Player)(nil)

// Players — смонтированные плееры одного браузерного контекста.
type Players struct {
	contextID string
	signer    storage.SignedURLStorage
	auth      Auth
	store     storage.EphemeralStorage
	cfg       Config
	metrics   *metrics.Metrics

	mu      sync.Mutex
	players map[string]*Player
	closed  bool
}

// NewPlayers создаёт реестр плееров контекста.
func NewPlayers(contextID string, signer storage.SignedURLStorage, auth Auth, store storage.EphemeralStorage, cfg Config, m *metrics.Metrics) *Players {
	return &Players{
		contextID: contextID,
		signer:    signer,
		auth:      auth,
		store:     store,
		cfg:       cfg,
		metrics:   m,
		players:   make(map[string]*Player),
	}
}

// Mount монтирует плеер для objectPath. Плеер регистрируется даже при
// неудачном первом обмене: его состояние показывается вместо видео,
// а таймер повторит обмен. Сверх MaxPlayers — ErrTooManyPlayers.
func (ps *Players) Mount(ctx context.Context, objectPath string) (*Player, error) {
	if objectPath == "" {
		return nil, ErrEmptyObjectPath
	}

	p := &Player{
		Resolver:  NewResolver(objectPath, ps.signer, ps.auth, ps.cfg, ps.metrics),
		id:        uuid.NewString(),
		contextID: ps.contextID,
		positions: ps.store,
	}

	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil, ErrPlayerNotFound
	}
	if ps.cfg.MaxPlayers > 0 && len(ps.players) >= ps.cfg.MaxPlayers {
		ps.mu.Unlock()
		return nil, ErrTooManyPlayers
	}
	ps.players[p.id] = p
	ps.mu.Unlock()

	ps.metrics.PlayerMounted()

	_, err := p.Mount(ctx)

	return p, err
}

// Get возвращает плеер по ID.
func (ps *Players) Get(id string) (*Player, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, ok := ps.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}

	return p, nil
}

// Seeker отдаёт возможность перемотки плеера id.
func (ps *Players) Seeker(id string) (Seeker, error) {
	p, err := ps.Get(id)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Unmount останавливает таймер плеера и удаляет его из реестра.
func (ps *Players) Unmount(id string) error {
	ps.mu.Lock()
	p, ok := ps.players[id]
	delete(ps.players, id)
	ps.mu.Unlock()

	if !ok {
		return ErrPlayerNotFound
	}

	p.Unmount()
	ps.metrics.PlayerUnmounted()

	return nil
}

// Len возвращает число смонтированных плееров.
func (ps *Players) Len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	return len(ps.players)
}

// Close размонтирует все плееры; новые после этого не монтируются.
func (ps *Players) Close() {
	ps.mu.Lock()
	all := make([]*Player, 0, len(ps.players))
	for _, p := range ps.players {
		all = append(all, p)
	}
	ps.players = make(map[string]*Player)
	ps.closed = true
	ps.mu.Unlock()

	for _, p := range all {
		p.Unmount()
		ps.metrics.PlayerUnmounted()
	}
}
