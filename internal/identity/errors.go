package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Kind — категория ошибки аутентификации.
type Kind string

const (
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindDuplicateRegistration Kind = "duplicate_registration"
	KindUnconfirmedAccount    Kind = "unconfirmed_account"
	KindNetwork               Kind = "network"
	KindRefreshFailed         Kind = "refresh_failed"
	KindUnrecognized          Kind = "unrecognized"
)

var messages = map[Kind]string{
	KindInvalidCredentials:    "Invalid email or password.",
	KindDuplicateRegistration: "An account with this email already exists. Try signing in instead.",
	KindUnconfirmedAccount:    "Please confirm your email address before signing in. Check your inbox for the confirmation link.",
	KindNetwork:               "Network error. Please check your connection and try again.",
	KindRefreshFailed:         "Your session has expired. Please sign in again.",
}

const fallbackMessage = "Something went wrong. Please try again."

// AuthError — закрытый набор ошибок границы с провайдером.
// Raw хранит исходный текст провайдера; Err — исходную ошибку для errors.Is/As.
type AuthError struct {
	Kind Kind
	Raw  string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Raw == "" {
		return string(e.Kind)
	}

	return string(e.Kind) + ": " + e.Raw
}

func (e *AuthError) Unwrap() error { return e.Err }

// Message — короткий текст для пользователя.
// Для нераспознанных ошибок текст провайдера отдаётся как есть.
func (e *AuthError) Message() string {
	if m, ok := messages[e.Kind]; ok {
		return m
	}

	if strings.TrimSpace(e.Raw) != "" {
		return e.Raw
	}

	return fallbackMessage
}

// ProviderError — ошибка, полученная от провайдера (HTTP-статус, код и текст).
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %d (%s): %s", e.Status, e.Code, e.Message)
	}

	return fmt.Sprintf("provider error %d: %s", e.Status, e.Message)
}

// Коды ошибок провайдера (совместимы с GoTrue error_code).
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeUserAlreadyExists  = "user_already_exists"
	CodeEmailExists        = "email_exists"
	CodeRefreshNotFound    = "refresh_token_not_found"
	CodeRefreshReused      = "refresh_token_already_used"
	CodeSessionNotFound    = "session_not_found"
)

var codeKinds = map[string]Kind{
	CodeInvalidCredentials: KindInvalidCredentials,
	CodeEmailNotConfirmed:  KindUnconfirmedAccount,
	CodeUserAlreadyExists:  KindDuplicateRegistration,
	CodeEmailExists:        KindDuplicateRegistration,
	CodeRefreshNotFound:    KindRefreshFailed,
	CodeRefreshReused:      KindRefreshFailed,
	CodeSessionNotFound:    KindRefreshFailed,
}

// messagePatterns — известные фрагменты текста ошибок (в нижнем регистре).
var messagePatterns = []struct {
	fragment string
	kind     Kind
}{
	{"invalid login credentials", KindInvalidCredentials},
	{"invalid email or password", KindInvalidCredentials},
	{"email not confirmed", KindUnconfirmedAccount},
	{"user already registered", KindDuplicateRegistration},
	{"already been registered", KindDuplicateRegistration},
	{"invalid refresh token", KindRefreshFailed},
	{"refresh token not found", KindRefreshFailed},
	{"failed to fetch", KindNetwork},
	{"network request failed", KindNetwork},
}

// Classify переводит ошибку провайдера или транспорта в *AuthError.
// nil остаётся nil; уже классифицированная ошибка возвращается как есть.
func Classify(err error) *AuthError {
	if err == nil {
		return nil
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}

	if isTransport(err) {
		return &AuthError{Kind: KindNetwork, Raw: err.Error(), Err: err}
	}

	raw := err.Error()
	var pe *ProviderError
	if errors.As(err, &pe) {
		raw = pe.Message
		if k, ok := codeKinds[pe.Code]; ok {
			return &AuthError{Kind: k, Raw: raw, Err: err}
		}
	}

	lower := strings.ToLower(raw)
	for _, p := range messagePatterns {
		if strings.Contains(lower, p.fragment) {
			return &AuthError{Kind: p.kind, Raw: raw, Err: err}
		}
	}

	return &AuthError{Kind: KindUnrecognized, Raw: raw, Err: err}
}

// IsKind сообщает, является ли err *AuthError указанной категории.
func IsKind(err error, k Kind) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == k
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne)
}
