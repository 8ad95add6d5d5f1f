package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pribylovaa/module-mind/internal/http/apierrors"
	"github.com/pribylovaa/module-mind/internal/modal"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
)

func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	out := sessionResponse{
		Resolved:      bc.Auth.Resolved(),
		Authenticated: bc.Auth.Authenticated(),
	}

	if sess := bc.Auth.Session(); sess != nil && out.Authenticated {
		out.User = userFromModel(&sess.User)
		exp := sess.ExpiresAt
		out.ExpiresAt = &exp
	}

	out.NavigateTo = bc.TakeNavigation()
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) Modal(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, modalResponse{Modal: bc.Modal.View(), NavigateTo: bc.TakeNavigation()})
}

func (h *Handlers) SwitchModalMode(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	var in modeRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	draft := modal.Fields{Email: in.Email, DisplayName: in.DisplayName}
	if err := bc.Modal.SwitchMode(modal.Mode(in.Mode), draft); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, modalResponse{Modal: bc.Modal.View()})
}

// SubmitModal отправляет форму. Ошибка отдаётся вместе с состоянием модалки:
// сообщение уже лежит в поле error и показывается рядом с формой.
func (h *Handlers) SubmitModal(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	var in submitRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	outcome, err := bc.Modal.Submit(r.Context(), modal.Fields{
		Email:       in.Email,
		Password:    in.Password,
		DisplayName: in.DisplayName,
	})
	if err != nil {
		view := bc.Modal.View()
		status, resp := apierrors.ToHTTP(err)
		if view.Error != "" {
			resp.Error.Message = view.Error
		}
		resp.Modal = &view
		apierrors.Write(w, r, status, resp)

		return
	}

	writeJSON(w, http.StatusOK, modalResponse{
		Modal:      bc.Modal.View(),
		Outcome:    string(outcome),
		NavigateTo: bc.TakeNavigation(),
	})
}

func (h *Handlers) DismissModal(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	var in dismissRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	if err := bc.Modal.Dismiss(r.Context(), modal.DismissReason(in.Reason)); err != nil {
		view := bc.Modal.View()
		status, resp := apierrors.ToHTTP(err)
		resp.Modal = &view
		apierrors.Write(w, r, status, resp)

		return
	}

	writeJSON(w, http.StatusOK, modalResponse{Modal: bc.Modal.View()})
}

// SignOut всегда очищает локальное состояние; отказ провайдера
// только логируется.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	if err := bc.Auth.SignOut(r.Context()); err != nil {
		log.From(r.Context()).Warn("sign_out_remote_failed", slog.String("err", err.Error()))
	}

	writeJSON(w, http.StatusOK, navigationResponse{NavigateTo: bc.TakeNavigation()})
}

func (h *Handlers) RecoverPassword(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	var in recoverRequest
	if err := decodeStrict(r, &in); err != nil || in.Email == "" {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	if err := bc.Auth.RecoverPassword(r.Context(), in.Email); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, navigationResponse{NavigateTo: bc.TakeNavigation()})
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	bc, ok := contextOf(w, r)
	if !ok {
		return
	}

	var in updateUserRequest
	if err := decodeStrict(r, &in); err != nil || in.DisplayName == "" {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	user, err := bc.Auth.UpdateUser(r.Context(), in.DisplayName)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userFromModel(user))
}
