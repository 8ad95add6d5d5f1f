// middleware — net/http мидлвары JSON API module-mind.
//
// Порядок в роутере: Recover → RequestID → Logging → Timeout, затем
// BrowserContext на /api. Recover стоит первым, чтобы паника в любом
// из остальных превращалась в ответ 500 с конвертом apierrors.
package middleware

import (
	"net/http"
)

// Middleware — стандартный net/http мидлвар.
type Middleware func(http.Handler) http.Handler

// Chain оборачивает h так, что mws[0] выполняется первым.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := range mws {
		h = mws[len(mws)-1-i](h)
	}

	return h
}

// statusWriter запоминает статус и число записанных байт ответа.
// Unwrap даёт http.ResponseController доступ к исходному writer (Flush, дедлайны).
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n

	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Status — отданный статус; обработчик, ничего не записавший, получает 200.
func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}

	return w.status
}
