package local

// Тесты локального провайдера на моке AuthStorage:
//  - SignUp: нормализация email, слабый и слишком длинный пароль, дубликат,
//    режим подтверждения;
//  - ConfirmEmail: подтверждение из командной строки, неизвестный email;
//  - SignInWithPassword: неверный пароль, неподтверждённая учётная запись, успех;
//  - RefreshSession: ротация, повторное использование, истечение;
//  - SignOut/User/UpdateUser по access-токену, чужая подпись → bad_jwt;
//  - RecoverPassword не раскрывает существование учётной записи;
//  - классификация всех ошибок через identity.Classify.

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/storage"
	"github.com/pribylovaa/module-mind/mocks"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		JWTSecret:       "test-secret",
		Issuer:          "http://localhost:50090",
		Audience:        "public-key",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func newProvider(t *testing.T, cfg Config) (*Provider, *mocks.MockAuthStorage) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockAuthStorage(ctrl)
	p := New(st, cfg)
	p.now = func() time.Time { return fixedNow }

	return p, st
}

func confirmedAccount(t *testing.T, password string) *models.Account {
	t.Helper()
	hash, err := hashPassword(password)
	require.NoError(t, err)
	confirmed := fixedNow.Add(-time.Hour)

	return &models.Account{
		User: models.User{
			ID:          uuid.New(),
			Email:       "a@b.com",
			DisplayName: "Ann",
			CreatedAt:   confirmed,
			UpdatedAt:   confirmed,
		},
		PasswordHash: hash,
		ConfirmedAt:  &confirmed,
	}
}

func requireKind(t *testing.T, err error, k identity.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, k, identity.Classify(err).Kind)
}

func TestSignUp_AutoConfirmed(t *testing.T) {
	t.Parallel()

	p, st := newProvider(t, testConfig())
	ctx := context.Background()

	st.EXPECT().AccountByEmail(gomock.Any(), "a@b.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveAccount(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, acc *models.Account) error {
			require.Equal(t, "a@b.com", acc.Email)
			require.Equal(t, "Ann", acc.DisplayName)
			require.True(t, acc.Confirmed())
			require.True(t, checkPassword(acc.PasswordHash, "abcdef"))
			return nil
		})
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	user, sess, err := p.SignUp(ctx, " A@B.com", "abcdef", " Ann ")
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, user.ID, sess.User.ID)
	require.Equal(t, fixedNow.Add(15*time.Minute), sess.ExpiresAt)
	require.NotEmpty(t, sess.RefreshToken)

	uid, err := p.validateAccessToken(sess.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)
}

func TestSignUp_RequireConfirmation(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RequireConfirmation = true
	p, st := newProvider(t, cfg)

	st.EXPECT().AccountByEmail(gomock.Any(), "a@b.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveAccount(gomock.Any(), gomock.Any()).Return(nil)

	user, sess, err := p.SignUp(context.Background(), "a@b.com", "abcdef", "Ann")
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Equal(t, "a@b.com", user.Email)
}

func TestSignUp_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		st.EXPECT().AccountByEmail(gomock.Any(), "a@b.com").Return(confirmedAccount(t, "abcdef"), nil)

		_, _, err := p.SignUp(context.Background(), "a@b.com", "abcdef", "Ann")
		requireKind(t, err, identity.KindDuplicateRegistration)
	})

	t.Run("duplicate_race", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		st.EXPECT().AccountByEmail(gomock.Any(), "a@b.com").Return(nil, storage.ErrNotFound)
		st.EXPECT().SaveAccount(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)

		_, _, err := p.SignUp(context.Background(), "a@b.com", "abcdef", "Ann")
		requireKind(t, err, identity.KindDuplicateRegistration)
	})

	t.Run("weak_password", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t, testConfig())

		_, _, err := p.SignUp(context.Background(), "a@b.com", "12345", "Ann")
		var pe *identity.ProviderError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "weak_password", pe.Code)
	})

	t.Run("password_over_bcrypt_limit", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t, testConfig())

		_, _, err := p.SignUp(context.Background(), "a@b.com", strings.Repeat("x", MaxPasswordBytes+1), "Ann")
		var pe *identity.ProviderError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "weak_password", pe.Code)

		ae := identity.Classify(err)
		require.Equal(t, "Password should be at most 72 bytes.", ae.Raw)
		require.NotContains(t, ae.Message(), "bcrypt")
	})

	t.Run("invalid_email", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t, testConfig())

		_, _, err := p.SignUp(context.Background(), "bad", "abcdef", "Ann")
		var pe *identity.ProviderError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "validation_failed", pe.Code)
	})
}

func TestSignIn(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		acc := confirmedAccount(t, "abcdef")
		st.EXPECT().AccountByEmail(gomock.Any(), "a@b.com").Return(acc, nil)
		st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

		sess, err := p.SignInWithPassword(context.Background(), "a@b.com", "abcdef")
		require.NoError(t, err)
		require.Equal(t, acc.ID, sess.User.ID)
	})

	t.Run("unknown_email", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		st.EXPECT().AccountByEmail(gomock.Any(), "a@b.com").Return(nil, storage.ErrNotFound)

		_, err := p.SignInWithPassword(context.Background(), "a@b.com", "abcdef")
		requireKind(t, err, identity.KindInvalidCredentials)
	})

	t.Run("wrong_password", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		st.EXPECT().AccountByEmail(gomock.Any(), "a@b.com").Return(confirmedAccount(t, "abcdef"), nil)

		_, err := p.SignInWithPassword(context.Background(), "a@b.com", "zzzzzz")
		requireKind(t, err, identity.KindInvalidCredentials)
	})

	t.Run("unconfirmed", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		acc := confirmedAccount(t, "abcdef")
		acc.ConfirmedAt = nil
		st.EXPECT().AccountByEmail(gomock.Any(), "a@b.com").Return(acc, nil)

		_, err := p.SignInWithPassword(context.Background(), "a@b.com", "abcdef")
		requireKind(t, err, identity.KindUnconfirmedAccount)
	})

	t.Run("storage_failure", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		st.EXPECT().AccountByEmail(gomock.Any(), "a@b.com").Return(nil, errors.New("db down"))

		_, err := p.SignInWithPassword(context.Background(), "a@b.com", "abcdef")
		require.Error(t, err)
		require.Contains(t, err.Error(), "db down")
	})
}

func TestRefreshSession(t *testing.T) {
	t.Parallel()

	const plain = "refresh-plain"
	acc := confirmedAccount(t, "abcdef")
	active := &models.RefreshToken{
		TokenHash: hashToken(plain),
		UserID:    acc.ID,
		CreatedAt: fixedNow.Add(-time.Hour),
		ExpiresAt: fixedNow.Add(time.Hour),
	}

	t.Run("rotation", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		gomock.InOrder(
			st.EXPECT().RefreshTokenByHash(gomock.Any(), hashToken(plain)).Return(active, nil),
			st.EXPECT().AccountByID(gomock.Any(), acc.ID).Return(acc, nil),
			st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), hashToken(plain)).Return(true, nil),
			st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil),
		)

		sess, err := p.RefreshSession(context.Background(), plain)
		require.NoError(t, err)
		require.NotEqual(t, plain, sess.RefreshToken)
	})

	t.Run("reused_concurrently", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		st.EXPECT().RefreshTokenByHash(gomock.Any(), hashToken(plain)).Return(active, nil)
		st.EXPECT().AccountByID(gomock.Any(), acc.ID).Return(acc, nil)
		st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), hashToken(plain)).Return(false, nil)

		_, err := p.RefreshSession(context.Background(), plain)
		requireKind(t, err, identity.KindRefreshFailed)
	})

	t.Run("revoked", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		revoked := *active
		revoked.Revoked = true
		st.EXPECT().RefreshTokenByHash(gomock.Any(), hashToken(plain)).Return(&revoked, nil)

		_, err := p.RefreshSession(context.Background(), plain)
		requireKind(t, err, identity.KindRefreshFailed)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		expired := *active
		expired.ExpiresAt = fixedNow
		st.EXPECT().RefreshTokenByHash(gomock.Any(), hashToken(plain)).Return(&expired, nil)

		_, err := p.RefreshSession(context.Background(), plain)
		requireKind(t, err, identity.KindRefreshFailed)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		st.EXPECT().RefreshTokenByHash(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)

		_, err := p.RefreshSession(context.Background(), "nope")
		requireKind(t, err, identity.KindRefreshFailed)
	})
}

func TestAccessTokenOperations(t *testing.T) {
	t.Parallel()

	acc := confirmedAccount(t, "abcdef")

	issue := func(t *testing.T, p *Provider) string {
		t.Helper()
		tok, err := p.generateAccessToken(context.Background(), &acc.User, fixedNow)
		require.NoError(t, err)
		return tok
	}

	t.Run("user", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		st.EXPECT().AccountByID(gomock.Any(), acc.ID).Return(acc, nil)

		user, err := p.User(context.Background(), issue(t, p))
		require.NoError(t, err)
		require.Equal(t, acc.Email, user.Email)
	})

	t.Run("update_user", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		updated := acc.User
		updated.DisplayName = "Bob"
		st.EXPECT().UpdateDisplayName(gomock.Any(), acc.ID, "Bob", fixedNow).Return(&updated, nil)

		user, err := p.UpdateUser(context.Background(), issue(t, p), " Bob ")
		require.NoError(t, err)
		require.Equal(t, "Bob", user.DisplayName)
	})

	t.Run("sign_out_revokes_all", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		st.EXPECT().RevokeUserTokens(gomock.Any(), acc.ID).Return(nil)

		require.NoError(t, p.SignOut(context.Background(), issue(t, p)))
	})

	t.Run("foreign_signature", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t, testConfig())
		other := testConfig()
		other.JWTSecret = "other-secret"
		foreign, _ := newProvider(t, other)

		_, err := p.User(context.Background(), issue(t, foreign))
		var pe *identity.ProviderError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "bad_jwt", pe.Code)
	})

	t.Run("wrong_audience", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t, testConfig())
		other := testConfig()
		other.Audience = "someone-else"
		foreign, _ := newProvider(t, other)

		err := p.SignOut(context.Background(), issue(t, foreign))
		require.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		p, _ := newProvider(t, testConfig())
		tok := issue(t, p)
		p.now = func() time.Time { return fixedNow.Add(time.Hour) }

		_, err := p.validateAccessToken(tok)
		require.Error(t, err)
	})
}

func TestRecoverPassword_DoesNotRevealAccount(t *testing.T) {
	t.Parallel()

	p, st := newProvider(t, testConfig())
	st.EXPECT().AccountByEmail(gomock.Any(), "a@b.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().AccountByEmail(gomock.Any(), "c@d.com").Return(confirmedAccount(t, "abcdef"), nil)

	require.NoError(t, p.RecoverPassword(context.Background(), "a@b.com"))
	require.NoError(t, p.RecoverPassword(context.Background(), "c@d.com"))
}

func TestGenerateRefreshToken_CollisionRetry(t *testing.T) {
	t.Parallel()

	p, st := newProvider(t, testConfig())
	gomock.InOrder(
		st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists),
		st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil),
	)

	tok, err := p.generateRefreshToken(context.Background(), uuid.New())
	require.NoError(t, err)
	require.NotEmpty(t, tok)
}

func TestGenerateRefreshToken_CollisionExceeded(t *testing.T) {
	t.Parallel()

	p, st := newProvider(t, testConfig())
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists).Times(5)

	_, err := p.generateRefreshToken(context.Background(), uuid.New())
	require.ErrorIs(t, err, errRefreshCollision)
}

func TestConfirmEmail(t *testing.T) {
	t.Parallel()

	t.Run("confirms_then_sign_in", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.RequireConfirmation = true
		p, st := newProvider(t, cfg)
		ctx := context.Background()

		acc := confirmedAccount(t, "abcdef")
		acc.ConfirmedAt = nil
		st.EXPECT().ConfirmAccount(gomock.Any(), "a@b.com", fixedNow).DoAndReturn(
			func(context.Context, string, time.Time) (*models.User, error) {
				confirmed := fixedNow
				acc.ConfirmedAt = &confirmed
				return &acc.User, nil
			})

		u, err := p.ConfirmEmail(ctx, " A@B.com ")
		require.NoError(t, err)
		require.Equal(t, acc.ID, u.ID)
		require.True(t, acc.Confirmed())
	})

	t.Run("unknown_email", func(t *testing.T) {
		t.Parallel()
		p, st := newProvider(t, testConfig())
		st.EXPECT().ConfirmAccount(gomock.Any(), "x@b.com", fixedNow).Return(nil, storage.ErrNotFound)

		_, err := p.ConfirmEmail(context.Background(), "x@b.com")
		var pe *identity.ProviderError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "user_not_found", pe.Code)
	})
}
