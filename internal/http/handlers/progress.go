package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/browser"
	"github.com/pribylovaa/module-mind/internal/http/apierrors"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/models"
)

// currentUser — владелец записей прогресса: пользователь сессии контекста.
func currentUser(bc *browser.Context) (uuid.UUID, error) {
	sess := bc.Auth.Session()
	if sess == nil {
		return uuid.Nil, identity.ErrNoSession
	}

	return sess.User.ID, nil
}

// progressOp — общий каркас обработчиков прогресса.
func (h *Handlers) progressOp(w http.ResponseWriter, r *http.Request, fn func(uid uuid.UUID, courseID string) (*models.Progress, error)) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	uid, err := currentUser(bc)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	p, err := fn(uid, chi.URLParam(r, "course_id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, progressFromModel(p))
}

func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	h.progressOp(w, r, func(uid uuid.UUID, courseID string) (*models.Progress, error) {
		return h.Progress.Get(r.Context(), uid, courseID)
	})
}

func (h *Handlers) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	h.progressOp(w, r, func(uid uuid.UUID, courseID string) (*models.Progress, error) {
		return h.Progress.CompleteLesson(r.Context(), uid, courseID, chi.URLParam(r, "lesson_id"))
	})
}

func (h *Handlers) UncompleteLesson(w http.ResponseWriter, r *http.Request) {
	h.progressOp(w, r, func(uid uuid.UUID, courseID string) (*models.Progress, error) {
		return h.Progress.UncompleteLesson(r.Context(), uid, courseID, chi.URLParam(r, "lesson_id"))
	})
}

func (h *Handlers) ToggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	h.progressOp(w, r, func(uid uuid.UUID, courseID string) (*models.Progress, error) {
		return h.Progress.ToggleChecklistItem(r.Context(), uid, courseID, chi.URLParam(r, "lesson_id"), chi.URLParam(r, "item_id"))
	})
}

func (h *Handlers) RecordLessonAccess(w http.ResponseWriter, r *http.Request) {
	h.progressOp(w, r, func(uid uuid.UUID, courseID string) (*models.Progress, error) {
		return h.Progress.RecordAccess(r.Context(), uid, courseID, chi.URLParam(r, "lesson_id"))
	})
}
