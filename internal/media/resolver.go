// media — Signed-Media Resolver: держит ссылку на видео действительной,
// пока плеер смонтирован.
//
// Resolver обменивает стабильный путь объекта на подписанную ссылку,
// обновляет её по таймеру до истечения и внепланово при ошибке воспроизведения.
// Новый MediaHandle целиком заменяет предыдущий; старая ссылка просто устаревает.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/module-mind/internal/metrics"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
	"github.com/pribylovaa/module-mind/internal/pkg/redact"
	"github.com/pribylovaa/module-mind/internal/storage"
)

// ErrMustAuthenticate — контекст не аутентифицирован, обмен не выполнялся.
var ErrMustAuthenticate = errors.New("must authenticate")

// UnavailableMessage показывается вместо плеера при отказе выдачи ссылки.
const UnavailableMessage = "This video could not be loaded. Please try again later."

// Коды ошибок HTMLMediaElement.
const (
	MediaErrAborted         = 1
	MediaErrNetwork         = 2
	MediaErrDecode          = 3
	MediaErrSrcNotSupported = 4
)

// Status — состояние резолвера.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusReady            Status = "ready"
	StatusMustAuthenticate Status = "must_authenticate"
	StatusFailed           Status = "failed"
)

// Триггеры обмена (метка метрики).
const (
	triggerMount    = "mount"
	triggerTimer    = "timer"
	triggerPlayback = "playback_error"
	triggerManual   = "manual"
)

// Auth — чтение состояния аутентификации контекста.
type Auth interface {
	Authenticated() bool
}

// Config — параметры обновления ссылок.
type Config struct {
	// Validity — срок действия выдаваемой ссылки.
	Validity time.Duration
	// RefreshInterval — период проверки таймера.
	RefreshInterval time.Duration
	// Margin — запас до истечения, при котором ссылка обновляется.
	Margin time.Duration
	// MaxPlayers — предел смонтированных плееров одного контекста; 0 — без предела.
	MaxPlayers int
}

// Resolver обслуживает один путь объекта.
type Resolver struct {
	objectPath string
	signer     storage.SignedURLStorage
	auth       Auth
	cfg        Config
	metrics    *metrics.Metrics
	now        func() time.Time

	// resolveMu сериализует обмены: таймер и ошибка воспроизведения
	// не подписывают ссылку параллельно.
	resolveMu sync.Mutex

	mu     sync.RWMutex
	handle *models.MediaHandle
	status Status
	errMsg string

	mountOnce   sync.Once
	unmountOnce sync.Once
	stop        chan struct{}
	wg          sync.WaitGroup
}

// NewResolver создаёт резолвер пути objectPath.
func NewResolver(objectPath string, signer storage.SignedURLStorage, auth Auth, cfg Config, m *metrics.Metrics) *Resolver {
	return &Resolver{
		objectPath: objectPath,
		signer:     signer,
		auth:       auth,
		cfg:        cfg,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
		status:     StatusIdle,
		stop:       make(chan struct{}),
	}
}

// ObjectPath возвращает стабильный путь объекта.
func (r *Resolver) ObjectPath() string { return r.objectPath }

// Handle возвращает копию текущего хэндла или nil.
func (r *Resolver) Handle() *models.MediaHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.handle == nil {
		return nil
	}

	h := *r.handle
	return &h
}

// Status возвращает состояние и текст ошибки для отображения вместо плеера.
func (r *Resolver) Status() (Status, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.status, r.errMsg
}

// Resolve выдаёт новую подписанную ссылку и заменяет ею текущий хэндл.
// Без аутентификации возвращает ErrMustAuthenticate, не обращаясь к хранилищу.
func (r *Resolver) Resolve(ctx context.Context) (*models.MediaHandle, error) {
	return r.resolve(ctx, triggerManual)
}

func (r *Resolver) resolve(ctx context.Context, trigger string) (*models.MediaHandle, error) {
	const op = "media.Resolver.Resolve"

	r.resolveMu.Lock()
	defer r.resolveMu.Unlock()

	lg := log.From(ctx).With(
		slog.String("op", op),
		slog.String("object_path", r.objectPath),
		slog.String("trigger", trigger),
	)

	if !r.auth.Authenticated() {
		r.set(nil, StatusMustAuthenticate, "")
		r.metrics.SignedURL(trigger, metrics.ResultDenied)
		lg.Debug("signed_url_requires_auth")

		return nil, ErrMustAuthenticate
	}

	url, err := r.signer.SignedURL(ctx, r.objectPath, r.cfg.Validity)
	if err != nil {
		r.mu.Lock()
		r.status = StatusFailed
		r.errMsg = UnavailableMessage
		r.mu.Unlock()

		r.metrics.SignedURL(trigger, metrics.ResultFailed)
		lg.Warn("signed_url_failed", slog.String("err", err.Error()))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	h := &models.MediaHandle{
		ObjectPath: r.objectPath,
		URL:        url,
		ExpiresAt:  r.now().Add(r.cfg.Validity),
	}
	r.set(h, StatusReady, "")

	r.metrics.SignedURL(trigger, metrics.ResultOK)
	lg.Debug("signed_url_resolved",
		slog.String("url", redact.SignedURL(url)),
		slog.Time("expires_at", h.ExpiresAt),
	)

	c := *h
	return &c, nil
}

func (r *Resolver) set(h *models.MediaHandle, st Status, msg string) {
	r.mu.Lock()
	r.handle = h
	r.status = st
	r.errMsg = msg
	r.mu.Unlock()
}

// Mount выполняет первый обмен и запускает таймер обновления.
// Таймер работает и после неудачного первого обмена, чтобы повторить его.
func (r *Resolver) Mount(ctx context.Context) (*models.MediaHandle, error) {
	var (
		h   *models.MediaHandle
		err error
	)

	r.mountOnce.Do(func() {
		h, err = r.resolve(ctx, triggerMount)

		if r.cfg.RefreshInterval > 0 {
			r.wg.Add(1)
			go r.loop(context.WithoutCancel(ctx))
		}
	})

	return h, err
}

// Unmount останавливает таймер и дожидается его завершения.
func (r *Resolver) Unmount() {
	r.unmountOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()
	})
}

func (r *Resolver) loop(ctx context.Context) {
	defer r.wg.Done()

	t := time.NewTicker(r.cfg.RefreshInterval)
	defer t.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			r.tick(ctx)
		}
	}
}

// tick обновляет ссылку, если до её истечения осталось не больше Margin,
// либо если прошлый обмен не дал действительной ссылки.
func (r *Resolver) tick(ctx context.Context) {
	r.mu.RLock()
	h, st := r.handle, r.status
	r.mu.RUnlock()

	if st == StatusReady && h != nil && !h.ExpiresWithin(r.now(), r.cfg.Margin) {
		return
	}

	if st == StatusMustAuthenticate && !r.auth.Authenticated() {
		return
	}

	_, _ = r.resolve(ctx, triggerTimer)
}

// ReportPlaybackError принимает код ошибки плеера. Ошибки класса
// «источник не поддерживается/не найден» означают, что ссылка могла
// истечь досрочно: обмен выполняется сразу, не дожидаясь таймера.
// Возвращает, был ли выполнен обмен.
func (r *Resolver) ReportPlaybackError(ctx context.Context, code int) (bool, error) {
	const op = "media.Resolver.ReportPlaybackError"

	r.metrics.PlaybackError(fmt.Sprint(code))

	if code != MediaErrSrcNotSupported && code != MediaErrNetwork {
		log.From(ctx).Debug("playback_error_ignored",
			slog.String("op", op),
			slog.Int("code", code),
		)

		return false, nil
	}

	if _, err := r.resolve(ctx, triggerPlayback); err != nil {
		return true, err
	}

	return true, nil
}
