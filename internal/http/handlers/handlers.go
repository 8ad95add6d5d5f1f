// handlers — JSON-обработчики публичного API module-mind.
//
// Каждый обработчик достаёт браузерный контекст запроса (browser.From),
// вызывает доменную операцию и пишет JSON; ошибки идут через apierrors.
// Ожидающий сигнал навигации контекста отдаётся полем navigate_to.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/module-mind/internal/browser"
	"github.com/pribylovaa/module-mind/internal/http/apierrors"
	"github.com/pribylovaa/module-mind/internal/media"
	"github.com/pribylovaa/module-mind/internal/progress"
)

var errNoContext = errors.New("browser context missing")

// Handlers агрегирует зависимости, общие для всех контекстов.
type Handlers struct {
	Progress *progress.Service
}

func New(p *progress.Service) *Handlers {
	return &Handlers{Progress: p}
}

// Denied отвечает вместо защищённого обработчика: 401 и состояние
// блокирующей формы входа.
func (h *Handlers) Denied(w http.ResponseWriter, r *http.Request) {
	bc, ok := browser.From(r.Context())
	if !ok {
		apierrors.WriteError(w, r, errNoContext)
		return
	}

	view := bc.Modal.View()
	status, resp := apierrors.ToHTTP(media.ErrMustAuthenticate)
	resp.Modal = &view
	apierrors.Write(w, r, status, resp)
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// contextOf достаёт браузерный контекст; без него обработчик отвечает 500.
func contextOf(w http.ResponseWriter, r *http.Request) (*browser.Context, bool) {
	bc, ok := browser.From(r.Context())
	if !ok {
		apierrors.WriteError(w, r, errNoContext)
		return nil, false
	}

	return bc, true
}
