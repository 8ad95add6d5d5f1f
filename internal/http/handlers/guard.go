package handlers

import (
	"net/http"

	"github.com/pribylovaa/module-mind/internal/guard"
	"github.com/pribylovaa/module-mind/internal/http/apierrors"
)

// Guard проверяет навигацию на защищённый клиентский маршрут ?path=.
// Denied — нормальный ответ (200): путь запомнен как Pending Redirect,
// фронтенд показывает блокирующую форму входа.
func (h *Handlers) Guard(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	path := r.URL.Query().Get("path")
	if !guard.ValidPath(path) {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	state, err := bc.Guard.Enter(r.Context(), path)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out := guardResponse{State: state}
	if state == guard.Denied {
		view := bc.Modal.View()
		out.Modal = &view
	}
	out.NavigateTo = bc.TakeNavigation()

	writeJSON(w, http.StatusOK, out)
}
