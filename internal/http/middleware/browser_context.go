package middleware

import (
	"context"
	"net/http"

	"github.com/pribylovaa/module-mind/internal/browser"
	"github.com/pribylovaa/module-mind/internal/http/apierrors"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
)

// Acquirer — источник браузерных контекстов (browser.Registry).
type Acquirer interface {
	Acquire(ctx context.Context, id string) (*browser.Context, error)
}

// CookieOptions — параметры cookie браузерного контекста.
type CookieOptions struct {
	Name   string
	Secure bool
	// MaxAge в секундах; 0 — сессионная cookie.
	MaxAge int
}

// BrowserContext привязывает запрос к браузерному контексту.
//
// Идентификатор читается из cookie; отсутствующий или испорченный
// заменяется новым, и cookie (HttpOnly, SameSite=Lax) выставляется заново.
// Контекст кладётся в context запроса (browser.From), логгер получает ctx_id.
func BrowserContext(reg Acquirer, opts CookieOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(opts.Name); err == nil && browser.ValidID(c.Value) {
				id = c.Value
			}

			if id == "" {
				fresh, err := browser.NewID()
				if err != nil {
					apierrors.WriteError(w, r, err)
					return
				}

				id = fresh
				http.SetCookie(w, &http.Cookie{
					Name:     opts.Name,
					Value:    id,
					Path:     "/",
					MaxAge:   opts.MaxAge,
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			bc, err := reg.Acquire(r.Context(), id)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := log.WithContextID(r.Context(), id)

			next.ServeHTTP(w, r.WithContext(browser.Into(ctx, bc)))
		})
	}
}
