package http

// Сквозные тесты JSON API поверх настоящего реестра контекстов:
//   - выдача cookie контекста и начальное состояние сессии;
//   - защищённые маршруты отвечают 401 с состоянием модалки;
//   - guard запоминает путь, вход через модалку возвращает на него;
//     пути вне приложения не запоминаются;
//   - локальная валидация формы не доходит до провайдера;
//   - плееры: монтирование, перемотка, ошибка воспроизведения, размонтирование;
//   - прогресс пользователя сессии;
//   - выход: навигация на публичный путь и повторный отказ guard;
//   - служебные /livez и /healthz.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/authstate"
	"github.com/pribylovaa/module-mind/internal/browser"
	"github.com/pribylovaa/module-mind/internal/http/handlers"
	"github.com/pribylovaa/module-mind/internal/http/middleware"
	"github.com/pribylovaa/module-mind/internal/media"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/progress"
	"github.com/pribylovaa/module-mind/internal/storage/memory"
	"github.com/pribylovaa/module-mind/mocks"
	"github.com/stretchr/testify/require"
)

const signedURL = "https://media.example/course/intro.mp4?X-Amz-Signature=abc"

type env struct {
	t        *testing.T
	handler  http.Handler
	provider *mocks.MockProvider
	signer   *mocks.MockSignedURLStorage
	cookie   *http.Cookie
}

func newEnv(t *testing.T) *env {
	t.Helper()

	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	signer := mocks.NewMockSignedURLStorage(ctrl)

	reg := browser.NewRegistry(browser.Deps{
		Provider: provider,
		Store:    memory.NewContextStore(),
		Signer:   signer,
	}, browser.Config{
		Auth: authstate.Config{
			SafetyWindow:  5 * time.Minute,
			DefaultPath:   "/course",
			SignedOutPath: "/",
			RecoveryPath:  "/account/recover",
		},
		Media: media.Config{Validity: 15 * time.Minute, RefreshInterval: time.Hour, Margin: time.Minute},
	})
	t.Cleanup(reg.Close)

	h := NewRouter(reg, handlers.New(progress.New(memory.NewProgressStore())), Options{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout: 5 * time.Second,
		Cookie:  middleware.CookieOptions{Name: "mm_ctx"},
	})

	return &env{t: t, handler: h, provider: provider, signer: signer}
}

// do выполняет запрос от имени одного браузера: cookie из первого ответа
// переиспользуется дальше.
func (e *env) do(method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	e.t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, rd)
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	for _, c := range rr.Result().Cookies() {
		if c.Name == "mm_ctx" {
			e.cookie = c
		}
	}

	var out map[string]any
	if rr.Body.Len() > 0 && rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(e.t, json.Unmarshal(rr.Body.Bytes(), &out))
	}

	return rr, out
}

func testSession() *models.Session {
	return &models.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
		User: models.User{
			ID:          uuid.MustParse("6f1d7c52-4a8e-4c39-9b1e-0b7b0a1f2c3d"),
			Email:       "ada@example.com",
			DisplayName: "Ada",
		},
	}
}

func (e *env) signIn() {
	e.t.Helper()

	e.provider.EXPECT().
		SignInWithPassword(gomock.Any(), "ada@example.com", "secret123").
		Return(testSession(), nil)

	rr, out := e.do(http.MethodPost, "/api/auth/modal/submit", map[string]string{
		"email":    "ada@example.com",
		"password": "secret123",
	})
	require.Equal(e.t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(e.t, "signed_in", out["outcome"])
}

func errorCode(t *testing.T, out map[string]any) string {
	t.Helper()

	e, ok := out["error"].(map[string]any)
	require.True(t, ok, "error envelope expected: %v", out)

	code, _ := e["code"].(string)
	return code
}

func TestSession_IssuesCookie_AndStartsSignedOut(t *testing.T) {
	e := newEnv(t)

	rr, out := e.do(http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, e.cookie)
	require.True(t, e.cookie.HttpOnly)

	require.Equal(t, true, out["resolved"])
	require.Equal(t, false, out["authenticated"])
	require.NotContains(t, out, "user")
}

func TestProtectedRoute_Unauthenticated_Returns401WithModal(t *testing.T) {
	e := newEnv(t)

	rr, out := e.do(http.MethodGet, "/api/progress/go-101", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "must_authenticate", errorCode(t, out))

	m, ok := out["modal"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, m["visible"])
	require.Equal(t, false, m["dismissible"])
}

func TestGuard_DeniedThenSignIn_ReturnsToPendingPath(t *testing.T) {
	e := newEnv(t)

	rr, out := e.do(http.MethodGet, "/api/guard?path=/course/lesson-2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "denied", out["state"])

	// Второй отказ перезаписывает сохранённый путь.
	_, out = e.do(http.MethodGet, "/api/guard?path=/course/lesson-3", nil)
	require.Equal(t, "denied", out["state"])

	e.provider.EXPECT().
		SignInWithPassword(gomock.Any(), "ada@example.com", "secret123").
		Return(testSession(), nil)

	rr, out = e.do(http.MethodPost, "/api/auth/modal/submit", map[string]string{
		"email":    " ada@example.com ",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "/course/lesson-3", out["navigate_to"])

	m := out["modal"].(map[string]any)
	require.Equal(t, false, m["visible"])
	require.NotContains(t, rr.Body.String(), "secret123")

	// Сигнал навигации отдаётся один раз.
	_, out = e.do(http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, true, out["authenticated"])
	require.NotContains(t, out, "navigate_to")
	require.NotContains(t, rr.Body.String(), "access-1")

	_, out = e.do(http.MethodGet, "/api/guard?path=/course/lesson-3", nil)
	require.Equal(t, "granted", out["state"])
}

func TestGuard_RejectsOffsitePaths(t *testing.T) {
	e := newEnv(t)

	for _, path := range []string{
		"//evil.example/phish",
		"/\\evil.example/phish",
		"https://evil.example/phish",
		"course/lesson-1",
		"/course/lesson-1\nSet-Cookie: x=1",
	} {
		rr, out := e.do(http.MethodGet, "/api/guard?path="+url.QueryEscape(path), nil)
		require.Equal(t, http.StatusBadRequest, rr.Code, path)
		require.Equal(t, "invalid_argument", errorCode(t, out))
	}

	e.provider.EXPECT().
		SignInWithPassword(gomock.Any(), "ada@example.com", "secret123").
		Return(testSession(), nil)

	rr, out := e.do(http.MethodPost, "/api/auth/modal/submit", map[string]string{
		"email":    "ada@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "/course", out["navigate_to"])
}

func TestModalSubmit_ValidationFailsBeforeProvider(t *testing.T) {
	e := newEnv(t)

	rr, out := e.do(http.MethodPost, "/api/auth/modal/submit", map[string]string{
		"email":    "not-an-email",
		"password": "secret123",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "validation_failed", errorCode(t, out))

	m := out["modal"].(map[string]any)
	require.Equal(t, "Please enter a valid email address.", m["error"])
	require.Equal(t, "not-an-email", m["email"])
}

func TestModalSubmit_InvalidCredentials_Returns401WithMessage(t *testing.T) {
	e := newEnv(t)

	e.provider.EXPECT().
		SignInWithPassword(gomock.Any(), "ada@example.com", "wrong-pass").
		Return(nil, errors.New("Invalid login credentials"))

	rr, out := e.do(http.MethodPost, "/api/auth/modal/submit", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong-pass",
	})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "invalid_credentials", errorCode(t, out))

	m := out["modal"].(map[string]any)
	require.Equal(t, "Invalid email or password.", m["error"])
	require.Equal(t, true, m["visible"])
}

func TestModal_DismissBlockedWhileSignedOut(t *testing.T) {
	e := newEnv(t)

	rr, out := e.do(http.MethodPost, "/api/auth/modal/dismiss", map[string]string{"reason": "escape"})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "not_dismissible", errorCode(t, out))

	rr, out = e.do(http.MethodPut, "/api/auth/modal/mode", map[string]string{"mode": "register", "email": "ada@example.com"})
	require.Equal(t, http.StatusOK, rr.Code)

	m := out["modal"].(map[string]any)
	require.Equal(t, "register", m["mode"])
	require.Equal(t, "ada@example.com", m["email"])

	rr, _ = e.do(http.MethodPut, "/api/auth/modal/mode", map[string]string{"mode": "magic_link"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlayers_Lifecycle(t *testing.T) {
	e := newEnv(t)
	e.signIn()

	e.signer.EXPECT().
		SignedURL(gomock.Any(), "course/intro.mp4", 15*time.Minute).
		Return(signedURL, nil).
		Times(2)

	rr, out := e.do(http.MethodPost, "/api/players", map[string]string{"object_path": "course/intro.mp4"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "ready", out["status"])
	require.Equal(t, signedURL, out["url"])

	id, _ := out["id"].(string)
	require.NotEmpty(t, id)

	rr, out = e.do(http.MethodPost, "/api/players/"+id+"/seek", map[string]float64{"position": 42.5})
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 42.5, out["position"])

	rr, _ = e.do(http.MethodPost, "/api/players/"+id+"/seek", map[string]float64{"position": -1})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// MEDIA_ERR_SRC_NOT_SUPPORTED: немедленный повторный обмен.
	rr, out = e.do(http.MethodPost, "/api/players/"+id+"/errors", map[string]int{"code": 4})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, true, out["refreshed"])

	// MEDIA_ERR_DECODE обмен не вызывает.
	_, out = e.do(http.MethodPost, "/api/players/"+id+"/errors", map[string]int{"code": 3})
	require.Equal(t, false, out["refreshed"])

	rr, _ = e.do(http.MethodDelete, "/api/players/"+id, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr, out = e.do(http.MethodGet, "/api/players/"+id, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", errorCode(t, out))
}

func TestPlayers_SignerFailure_MountsWithUnavailableMessage(t *testing.T) {
	e := newEnv(t)
	e.signIn()

	e.signer.EXPECT().
		SignedURL(gomock.Any(), "course/missing.mp4", 15*time.Minute).
		Return("", errors.New("bucket unreachable"))

	rr, out := e.do(http.MethodPost, "/api/players", map[string]string{"object_path": "course/missing.mp4"})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "failed", out["status"])
	require.Equal(t, media.UnavailableMessage, out["error"])
	require.NotContains(t, out, "url")
}

func TestProgress_KeyedBySessionUser(t *testing.T) {
	e := newEnv(t)
	e.signIn()

	rr, out := e.do(http.MethodGet, "/api/progress/go-101", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "go-101", out["course_id"])
	require.Empty(t, out["completed_lessons"])

	_, _ = e.do(http.MethodPost, "/api/progress/go-101/lessons/l1", nil)
	_, _ = e.do(http.MethodPost, "/api/progress/go-101/lessons/l1/checklist/item-a", nil)
	_, out = e.do(http.MethodPost, "/api/progress/go-101/lessons/l2/access", nil)

	require.Equal(t, []any{"l1"}, out["completed_lessons"])
	require.Equal(t, map[string]any{"l1": []any{"item-a"}}, out["checklist"])
	require.Equal(t, "l2", out["last_lesson_id"])

	_, out = e.do(http.MethodDelete, "/api/progress/go-101/lessons/l1", nil)
	require.Empty(t, out["completed_lessons"])
}

func TestSignOut_NavigatesToPublicPath_AndDeniesAgain(t *testing.T) {
	e := newEnv(t)
	e.signIn()

	e.provider.EXPECT().SignOut(gomock.Any(), "access-1").Return(nil)

	rr, out := e.do(http.MethodPost, "/api/auth/signout", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "/", out["navigate_to"])

	rr, _ = e.do(http.MethodGet, "/api/progress/go-101", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	_, out = e.do(http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, false, out["authenticated"])
}

func TestUpdateUser_ChangesDisplayName(t *testing.T) {
	e := newEnv(t)
	e.signIn()

	updated := testSession().User
	updated.DisplayName = "Ada L."
	e.provider.EXPECT().UpdateUser(gomock.Any(), "access-1", "Ada L.").Return(&updated, nil)

	rr, out := e.do(http.MethodPatch, "/api/auth/user", map[string]string{"display_name": "Ada L."})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Ada L.", out["display_name"])

	_, out = e.do(http.MethodGet, "/api/auth/session", nil)
	user := out["user"].(map[string]any)
	require.Equal(t, "Ada L.", user["display_name"])
}

func TestRecoverPassword_NavigatesToRecoveryPath(t *testing.T) {
	e := newEnv(t)

	e.provider.EXPECT().RecoverPassword(gomock.Any(), "ada@example.com").Return(nil)

	rr, out := e.do(http.MethodPost, "/api/auth/recover", map[string]string{"email": "ada@example.com"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, "/account/recover", out["navigate_to"])
}

func TestStrictDecode_RejectsUnknownFields(t *testing.T) {
	e := newEnv(t)

	rr, out := e.do(http.MethodPost, "/api/auth/modal/submit", map[string]string{"email": "a@b", "remember": "yes"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_argument", errorCode(t, out))
}

func TestOps_LivezHealthz(t *testing.T) {
	h := NewRouter(nil, handlers.New(nil), Options{
		Ready: func(context.Context) error { return errors.New("redis down") },
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Empty(t, rr.Result().Cookies())
}
