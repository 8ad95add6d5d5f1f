package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/module-mind/internal/pkg/log"
)

// ErrRequestTimeout — причина отмены контекста запроса, истёкшего по Timeout.
// Отличает бюджет запроса от таймаутов провайдера и хранилищ:
// context.Cause(r.Context()) == ErrRequestTimeout.
var ErrRequestTimeout = errors.New("request timeout")

// Timeout ограничивает обработку запроса бюджетом d, если у контекста ещё
// нет дедлайна. Исчерпанный бюджет логируется событием request_timeout.
// d <= 0 отключает мидлвар.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeoutCause(r.Context(), d, ErrRequestTimeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(context.Cause(ctx), ErrRequestTimeout) {
				log.From(ctx).Warn("request_timeout",
					slog.String("path", r.URL.Path),
					slog.Duration("budget", d),
				)
			}
		})
	}
}
