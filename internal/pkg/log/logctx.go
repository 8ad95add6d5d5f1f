// log переносит request-scoped *slog.Logger через context.Context.
//
// Логгер браузерного контекста помечается ctx_id: короткий префикс
// идентификатора из cookie. Полный идентификатор в логи не попадает,
// так как по нему можно занять чужой контекст.
package log

import (
	"context"
	"log/slog"
)

// ContextIDPrefix — сколько символов идентификатора контекста видно в логах.
const ContextIDPrefix = 8

type loggerKey struct{}

// Into кладёт логгер в контекст.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// From возвращает логгер контекста, без него — slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}

// With обогащает логгер из контекста атрибутами и кладёт результат обратно.
func With(ctx context.Context, args ...any) context.Context {
	return Into(ctx, From(ctx).With(args...))
}

// ContextID — атрибут ctx_id с префиксом идентификатора браузерного контекста.
func ContextID(id string) slog.Attr {
	if len(id) > ContextIDPrefix {
		id = id[:ContextIDPrefix]
	}

	return slog.String("ctx_id", id)
}

// WithContextID помечает логгер контекста атрибутом ContextID(id).
func WithContextID(ctx context.Context, id string) context.Context {
	return With(ctx, ContextID(id))
}
