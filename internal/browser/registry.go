package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/module-mind/internal/authstate"
	"github.com/pribylovaa/module-mind/internal/guard"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/media"
	"github.com/pribylovaa/module-mind/internal/metrics"
	"github.com/pribylovaa/module-mind/internal/modal"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
	"github.com/pribylovaa/module-mind/internal/storage"
)

var (
	// ErrInvalidID — идентификатор контекста имеет неверный формат.
	ErrInvalidID = errors.New("invalid browser context id")
	// ErrClosed — реестр закрыт.
	ErrClosed = errors.New("registry closed")
)

// Deps — внешние зависимости контекстов.
type Deps struct {
	Provider identity.Provider
	Store    storage.ContextStorage
	Signer   storage.SignedURLStorage
	Metrics  *metrics.Metrics
}

// Config — параметры реестра.
type Config struct {
	// SessionTTL — срок хранения сессии контекста в Store.
	SessionTTL      time.Duration
	IdleTTL         time.Duration
	JanitorInterval time.Duration
	// MaxContexts ограничивает число живых контекстов; при переполнении
	// закрывается тот, к которому дольше всего не обращались. 0 — без ограничения.
	MaxContexts int
	Auth        authstate.Config
	Media       media.Config
}

// Registry создаёт контексты лениво и закрывает простаивающие.
type Registry struct {
	deps Deps
	cfg  Config
	now  func() time.Time

	mu       sync.Mutex
	contexts map[string]*Context
	closed   bool

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(deps Deps, cfg Config) *Registry {
	return &Registry{
		deps:     deps,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		contexts: make(map[string]*Context),
		stop:     make(chan struct{}),
	}
}

// Acquire возвращает контекст id, создавая его при первом обращении.
// Новый контекст восстанавливает сохранённую сессию и запускает цикл продления.
func (r *Registry) Acquire(ctx context.Context, id string) (*Context, error) {
	const op = "browser.Registry.Acquire"

	if !ValidID(id) {
		return nil, ErrInvalidID
	}

	now := r.now()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}

	if c, ok := r.contexts[id]; ok {
		r.mu.Unlock()
		c.touch(now)

		return c, nil
	}

	var evicted *Context
	if r.cfg.MaxContexts > 0 && len(r.contexts) >= r.cfg.MaxContexts {
		evicted = r.oldestLocked()
		delete(r.contexts, evicted.ID)
	}

	c := r.build(id)
	c.touch(now)
	r.contexts[id] = c
	r.mu.Unlock()

	if evicted != nil {
		r.release(ctx, evicted)
		log.From(ctx).Info("browser_context_evicted", slog.String("op", op), log.ContextID(evicted.ID))
	}

	r.deps.Metrics.ContextOpened()

	// Фоновые задачи контекста переживают запрос, но сохраняют его логгер.
	bg := log.WithContextID(context.WithoutCancel(ctx), id)
	c.Auth.Initialize(bg)
	c.Auth.Start(bg)

	log.From(ctx).Debug("browser_context_opened", slog.String("op", op), log.ContextID(id))

	return c, nil
}

func (r *Registry) build(id string) *Context {
	c := &Context{ID: id}

	c.Client = identity.NewClient(id, r.deps.Provider, r.deps.Store, r.cfg.SessionTTL)
	c.Auth = authstate.New(c.Client, r.deps.Store, r.cfg.Auth, c.navigateTo, r.deps.Metrics)
	c.Guard = guard.New(id, c.Auth, r.deps.Store, r.deps.Metrics)
	c.Modal = modal.New(c.Auth)
	c.Players = media.NewPlayers(id, r.deps.Signer, c.Auth, r.deps.Store, r.cfg.Media, r.deps.Metrics)

	return c
}

// oldestLocked возвращает контекст с самым давним обращением.
// Вызывается под r.mu при непустом реестре.
func (r *Registry) oldestLocked() *Context {
	var (
		oldest *Context
		seen   time.Time
	)
	for _, c := range r.contexts {
		at := c.seenAt()
		if oldest == nil || at.Before(seen) {
			oldest, seen = c, at
		}
	}

	return oldest
}

// release закрывает контекст, удалённый из реестра, и стирает его
// Pending Redirect и эфемерные данные.
func (r *Registry) release(ctx context.Context, c *Context) {
	const op = "browser.Registry.release"

	c.close()
	r.deps.Metrics.ContextClosed()

	if err := r.deps.Store.Evict(ctx, c.ID); err != nil {
		log.From(ctx).Warn("browser_context_evict_failed",
			slog.String("op", op),
			log.ContextID(c.ID),
			slog.String("err", err.Error()),
		)
	}
}

// expiredPruner — хранилище, которому нужна явная очистка истёкших записей.
type expiredPruner interface {
	PruneExpired() int
}

// Len возвращает число живых контекстов.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.contexts)
}

// StartJanitor запускает периодическое закрытие простаивающих контекстов.
func (r *Registry) StartJanitor(ctx context.Context) {
	r.startOnce.Do(func() {
		if r.cfg.JanitorInterval <= 0 || r.cfg.IdleTTL <= 0 {
			return
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()

			t := time.NewTicker(r.cfg.JanitorInterval)
			defer t.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-r.stop:
					return
				case <-t.C:
					r.sweep(ctx)
				}
			}
		}()
	})
}

// sweep закрывает контексты, простаивающие дольше IdleTTL, и стирает
// их состояние вкладки. Сохранённая сессия остаётся в Store: вернувшийся
// браузер её восстановит.
func (r *Registry) sweep(ctx context.Context) int {
	now := r.now()

	r.mu.Lock()
	var idle []*Context
	for id, c := range r.contexts {
		if c.idleSince(now) > r.cfg.IdleTTL {
			idle = append(idle, c)
			delete(r.contexts, id)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		r.release(ctx, c)
	}

	if p, ok := r.deps.Store.(expiredPruner); ok {
		if n := p.PruneExpired(); n > 0 {
			log.From(ctx).Debug("context_store_pruned", slog.Int("count", n))
		}
	}

	if len(idle) > 0 {
		log.From(ctx).Info("browser_contexts_expired", slog.Int("count", len(idle)))
	}

	return len(idle)
}

// Close останавливает janitor и закрывает все контексты.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()

		r.mu.Lock()
		all := make([]*Context, 0, len(r.contexts))
		for _, c := range r.contexts {
			all = append(all, c)
		}
		r.contexts = make(map[string]*Context)
		r.closed = true
		r.mu.Unlock()

		for _, c := range all {
			c.close()
			r.deps.Metrics.ContextClosed()
		}
	})
}
