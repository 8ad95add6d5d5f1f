package gotrue

// Тесты HTTP-клиента GoTrue на httptest.Server:
//  - заголовки apikey/Authorization и тела запросов;
//  - вычисление expiry: expires_at, expires_in, claim exp;
//  - SignUp с сессией и без неё (требуется подтверждение);
//  - декодирование ошибок в identity.ProviderError и их классификация.

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const anonKey = "anon-key"

var userID = uuid.MustParse("7d7f4b49-0f3e-4c53-9b9e-3a1c9f1a2b10")

func userJSON(name string) map[string]any {
	return map[string]any{
		"id":            userID.String(),
		"email":         "a@b.com",
		"user_metadata": map[string]any{"display_name": name},
		"created_at":    "2026-01-01T00:00:00Z",
		"updated_at":    "2026-01-02T00:00:00Z",
	}
}

func newServer(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, anonKey, r.Header.Get("apikey"))
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	return New(Config{BaseURL: srv.URL + "/", PublicKey: anonKey, Timeout: time.Second}, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSignInWithPassword_ExpiresAt(t *testing.T) {
	t.Parallel()

	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body["email"])
		assert.Equal(t, "abcdef", body["password"])

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "at",
			"refresh_token": "rt",
			"expires_at":    1_900_000_000,
			"expires_in":    3600,
			"user":          userJSON("Ann"),
		})
	})

	sess, err := p.SignInWithPassword(context.Background(), "a@b.com", "abcdef")
	require.NoError(t, err)
	require.Equal(t, "at", sess.AccessToken)
	require.Equal(t, "rt", sess.RefreshToken)
	require.Equal(t, time.Unix(1_900_000_000, 0).UTC(), sess.ExpiresAt)
	require.Equal(t, userID, sess.User.ID)
	require.Equal(t, "Ann", sess.User.DisplayName)
}

func TestRefreshSession_ExpiresIn(t *testing.T) {
	t.Parallel()

	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "at2", "refresh_token": "rt2", "expires_in": 3600, "user": userJSON(""),
		})
	})
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	sess, err := p.RefreshSession(context.Background(), "rt")
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), sess.ExpiresAt)
}

func TestRefreshSession_ExpiryFromJWT(t *testing.T) {
	t.Parallel()

	exp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)

	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": tok, "refresh_token": "rt", "user": userJSON("")})
	})

	sess, err := p.RefreshSession(context.Background(), "rt")
	require.NoError(t, err)
	require.Equal(t, exp, sess.ExpiresAt)
}

func TestSignUp_ConfirmationRequired(t *testing.T) {
	t.Parallel()

	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)

		var body struct {
			Data map[string]string `json:"data"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ann", body.Data["display_name"])

		writeJSON(w, http.StatusOK, userJSON("Ann"))
	})

	user, sess, err := p.SignUp(context.Background(), "a@b.com", "abcdef", "Ann")
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Equal(t, userID, user.ID)
}

func TestSignUp_AutoConfirmed(t *testing.T) {
	t.Parallel()

	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "at", "refresh_token": "rt", "expires_in": 60, "user": userJSON("Ann"),
		})
	})

	user, sess, err := p.SignUp(context.Background(), "a@b.com", "abcdef", "Ann")
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "Ann", user.DisplayName)
}

func TestUserEndpoints_BearerAuth(t *testing.T) {
	t.Parallel()

	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/auth/v1/user":
			writeJSON(w, http.StatusOK, userJSON("Ann"))
		case r.Method == http.MethodPut && r.URL.Path == "/auth/v1/user":
			writeJSON(w, http.StatusOK, userJSON("Anna"))
		case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	u, err := p.User(ctx, "at")
	require.NoError(t, err)
	require.Equal(t, "Ann", u.DisplayName)

	u, err = p.UpdateUser(ctx, "at", "Anna")
	require.NoError(t, err)
	require.Equal(t, "Anna", u.DisplayName)

	require.NoError(t, p.SignOut(ctx, "at"))
}

func TestErrors_DecodedAndClassified(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   any
		want   identity.Kind
	}{
		{"error_code", 400, map[string]any{"code": 400, "error_code": "invalid_credentials", "msg": "Invalid login credentials"}, identity.KindInvalidCredentials},
		{"legacy", 400, map[string]any{"error": "invalid_grant", "error_description": "Email not confirmed"}, identity.KindUnconfirmedAccount},
		{"duplicate", 422, map[string]any{"code": 422, "msg": "User already registered"}, identity.KindDuplicateRegistration},
		{"unknown", 429, map[string]any{"msg": "Request rate limit reached"}, identity.KindUnrecognized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})

			_, err := p.SignInWithPassword(context.Background(), "a@b.com", "abcdef")
			require.Error(t, err)

			var pe *identity.ProviderError
			require.ErrorAs(t, err, &pe)
			require.Equal(t, tc.status, pe.Status)
			require.Equal(t, tc.want, identity.Classify(err).Kind)
		})
	}
}

func TestTransportFailure_IsNetwork(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	p := New(Config{BaseURL: srv.URL, PublicKey: anonKey, Timeout: time.Second}, nil)
	err := p.RecoverPassword(context.Background(), "a@b.com")
	require.Equal(t, identity.KindNetwork, identity.Classify(err).Kind)
}
