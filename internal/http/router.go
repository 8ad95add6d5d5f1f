package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/module-mind/internal/browser"
	"github.com/pribylovaa/module-mind/internal/guard"
	"github.com/pribylovaa/module-mind/internal/http/handlers"
	"github.com/pribylovaa/module-mind/internal/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Cookie  middleware.CookieOptions
	// Metrics — обработчик /metrics; nil — маршрут не регистрируется.
	Metrics http.Handler
	// Ready — проверка готовности для /healthz; nil — всегда готов.
	Ready func(ctx context.Context) error
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(reg middleware.Acquirer, h *handlers.Handlers, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	registerOps(root, opts)

	root.Route("/api", func(api chi.Router) {
		api.Use(middleware.BrowserContext(reg, opts.Cookie))
		registerRoutes(api, h)
	})

	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// auth (публичные)
	r.Get("/auth/session", h.Session)
	r.Get("/auth/modal", h.Modal)
	r.Put("/auth/modal/mode", h.SwitchModalMode)
	r.Post("/auth/modal/submit", h.SubmitModal)
	r.Post("/auth/modal/dismiss", h.DismissModal)
	r.Post("/auth/signout", h.SignOut)
	r.Post("/auth/recover", h.RecoverPassword)

	// guard публичный: в состоянии Denied он запоминает Pending Redirect.
	r.Get("/guard", h.Guard)

	r.Group(func(p chi.Router) {
		p.Use(guard.Middleware(guardOf, h.Denied))

		p.Patch("/auth/user", h.UpdateUser)

		// players
		p.Post("/players", h.MountPlayer)
		p.Get("/players/{id}", h.GetPlayer)
		p.Post("/players/{id}/errors", h.ReportPlaybackError)
		p.Post("/players/{id}/seek", h.SeekPlayer)
		p.Delete("/players/{id}", h.UnmountPlayer)

		// progress
		p.Get("/progress/{course_id}", h.GetProgress)
		p.Post("/progress/{course_id}/lessons/{lesson_id}", h.CompleteLesson)
		p.Delete("/progress/{course_id}/lessons/{lesson_id}", h.UncompleteLesson)
		p.Post("/progress/{course_id}/lessons/{lesson_id}/checklist/{item_id}", h.ToggleChecklistItem)
		p.Post("/progress/{course_id}/lessons/{lesson_id}/access", h.RecordLessonAccess)
	})
}

// registerOps — служебные маршруты вне браузерных контекстов.
func registerOps(r chi.Router, opts Options) {
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
}

func guardOf(r *http.Request) (*guard.Guard, bool) {
	bc, ok := browser.From(r.Context())
	if !ok {
		return nil, false
	}

	return bc.Guard, true
}
