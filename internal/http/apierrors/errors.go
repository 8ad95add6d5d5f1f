// apierrors стандартизирует ответы об ошибках HTTP-слоя module-mind.
// На вход принимает доменную ошибку (identity, modal, media, progress, browser),
// на выход даёт:
//   - корректный HTTP-статус;
//   - стабильный машиночитаемый code;
//   - короткое действенное message для показа рядом с формой или плеером.
//
// Ошибки провайдера к этому моменту уже классифицированы в *identity.AuthError;
// нераспознанные передают текст провайдера как есть.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/module-mind/internal/browser"
	"github.com/pribylovaa/module-mind/internal/guard"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/media"
	"github.com/pribylovaa/module-mind/internal/modal"
	"github.com/pribylovaa/module-mind/internal/progress"
	"github.com/pribylovaa/module-mind/internal/storage"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrInvalidArgument — тело или параметры запроса не разобраны.
var ErrInvalidArgument = errors.New("invalid argument")

// APIError — единый формат для фронта.
// Field заполняется для ошибок локальной валидации формы.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
// Modal добавляется к 401, чтобы фронтенд сразу показал блокирующую форму входа.
type ErrorResponse struct {
	Error APIError    `json:"error"`
	Modal *modal.View `json:"modal,omitempty"`
}

// ToHTTP конвертирует доменную ошибку в HTTP-статус и ответ.
// err == nil — программная ошибка вызова: 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	status, apiErr := mapError(err)
	return status, ErrorResponse{Error: apiErr}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)
	Write(w, r, status, resp)
}

// Write пишет готовый ErrorResponse.
func Write(w http.ResponseWriter, r *http.Request, status int, resp ErrorResponse) {
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func mapError(err error) (int, APIError) {
	if err == nil {
		return http.StatusInternalServerError, APIError{Code: "internal", Message: "internal error"}
	}

	var ae *identity.AuthError
	if errors.As(err, &ae) {
		return fromAuth(ae)
	}

	var ve *modal.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, APIError{Code: "validation_failed", Message: ve.Message, Field: ve.Field}
	}

	switch {
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, modal.ErrInvalidMode),
		errors.Is(err, media.ErrInvalidPosition),
		errors.Is(err, media.ErrEmptyObjectPath),
		errors.Is(err, progress.ErrInvalidID),
		errors.Is(err, browser.ErrInvalidID),
		errors.Is(err, guard.ErrInvalidPath):
		return http.StatusBadRequest, APIError{Code: "invalid_argument", Message: "invalid argument"}
	case errors.Is(err, modal.ErrBusy):
		return http.StatusConflict, APIError{Code: "busy", Message: "Please wait, your request is being processed."}
	case errors.Is(err, modal.ErrNotDismissible):
		return http.StatusConflict, APIError{Code: "not_dismissible", Message: "Please sign in to continue."}
	case errors.Is(err, media.ErrMustAuthenticate), errors.Is(err, identity.ErrNoSession):
		return http.StatusUnauthorized, APIError{Code: "must_authenticate", Message: "Please sign in to continue."}
	case errors.Is(err, media.ErrTooManyPlayers):
		return http.StatusConflict, APIError{Code: "too_many_players", Message: "Too many videos are open. Close one and try again."}
	case errors.Is(err, media.ErrPlayerNotFound):
		return http.StatusNotFound, APIError{Code: "not_found", Message: "not found"}
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, APIError{Code: "media_not_found", Message: media.UnavailableMessage}
	case errors.Is(err, browser.ErrClosed):
		return http.StatusServiceUnavailable, APIError{Code: "unavailable", Message: "service unavailable"}
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, APIError{Code: "canceled", Message: "canceled"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, APIError{Code: "deadline_exceeded", Message: "deadline exceeded"}
	default:
		return http.StatusInternalServerError, APIError{Code: "internal", Message: "internal error"}
	}
}

// fromAuth — маппинг категорий ошибок аутентификации:
//   - invalid_credentials, refresh_failed -> 401
//   - unconfirmed_account -> 403
//   - duplicate_registration -> 409
//   - network -> 503
//   - unrecognized -> 502 с исходным текстом провайдера
func fromAuth(ae *identity.AuthError) (int, APIError) {
	out := APIError{Code: string(ae.Kind), Message: ae.Message()}

	switch ae.Kind {
	case identity.KindInvalidCredentials, identity.KindRefreshFailed:
		return http.StatusUnauthorized, out
	case identity.KindUnconfirmedAccount:
		return http.StatusForbidden, out
	case identity.KindDuplicateRegistration:
		return http.StatusConflict, out
	case identity.KindNetwork:
		return http.StatusServiceUnavailable, out
	default:
		return http.StatusBadGateway, out
	}
}
