package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/module-mind/internal/http/apierrors"
)

// MountPlayer монтирует плеер. Неудачный первый обмен не отказ:
// плеер создаётся, а его View несёт status=failed и сообщение.
func (h *Handlers) MountPlayer(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	var in mountRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	// Ошибка первого обмена уже отражена в View плеера.
	p, err := bc.Players.Mount(r.Context(), in.ObjectPath)
	if p == nil {
		apierrors.WriteError(w, r, err)
		return
	}

	view, err := p.View(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

func (h *Handlers) GetPlayer(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	p, err := bc.Players.Get(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	view, err := p.View(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// ReportPlaybackError принимает код ошибки элемента video (1..4).
func (h *Handlers) ReportPlaybackError(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	var in playbackErrorRequest
	if err := decodeStrict(r, &in); err != nil || in.Code <= 0 {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	p, err := bc.Players.Get(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	refreshed, _ := p.ReportPlaybackError(r.Context(), in.Code)

	view, err := p.View(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, playbackErrorResponse{Refreshed: refreshed, Player: view})
}

func (h *Handlers) SeekPlayer(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	var in seekRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	id := chi.URLParam(r, "id")
	s, err := bc.Players.Seeker(id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := s.Seek(r.Context(), in.Position); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	p, err := bc.Players.Get(id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	view, err := p.View(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) UnmountPlayer(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	if err := bc.Players.Unmount(chi.URLParam(r, "id")); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
