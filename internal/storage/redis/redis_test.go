package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/storage"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты пакета redis:
// - поднимают Redis через testcontainers-go (redis:7-alpine);
// - проверяют хранение сессии (Hash + TTL), GETDEL для Pending Redirect
//   и очистку эфемерных данных контекста, срок жизни состояния вкладки.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/redis -v -race -count=1

func startRedis(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")

	st, err := New(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), "test:", time.Hour)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = st.Close()
		_ = c.Terminate(context.Background())
	})

	return st
}

func TestIntegration_SessionRoundTrip(t *testing.T) {
	st := startRedis(t)
	ctx := context.Background()

	_, err := st.LoadSession(ctx, "c1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	exp := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
	sess := &models.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    exp,
		User:         models.User{ID: uuid.New(), Email: "a@b.com", DisplayName: "Ann"},
	}
	require.NoError(t, st.SaveSession(ctx, "c1", sess, time.Hour))

	got, err := st.LoadSession(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, sess.AccessToken, got.AccessToken)
	require.Equal(t, sess.User.ID, got.User.ID)
	require.True(t, exp.Equal(got.ExpiresAt))
	require.True(t, got.User.CreatedAt.IsZero())

	ttl, err := st.rdb.TTL(ctx, st.sessionKey("c1")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	require.NoError(t, st.DeleteSession(ctx, "c1"))
	_, err = st.LoadSession(ctx, "c1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_PendingRedirect(t *testing.T) {
	st := startRedis(t)
	ctx := context.Background()

	require.NoError(t, st.SetPendingRedirect(ctx, "c1", "/a"))
	require.NoError(t, st.SetPendingRedirect(ctx, "c1", "/b"))

	ttl, err := st.rdb.TTL(ctx, st.redirectKey("c1")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Hour)

	path, err := st.ConsumePendingRedirect(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "/b", path)

	_, err = st.ConsumePendingRedirect(ctx, "c1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_Ephemeral(t *testing.T) {
	st := startRedis(t)
	ctx := context.Background()

	require.NoError(t, st.SetEphemeral(ctx, "c1", "seek:p1", "12.5"))
	v, err := st.Ephemeral(ctx, "c1", "seek:p1")
	require.NoError(t, err)
	require.Equal(t, "12.5", v)

	require.NoError(t, st.PurgeEphemeral(ctx, "c1"))
	_, err = st.Ephemeral(ctx, "c1", "seek:p1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_EphemeralExpiresAndEvict(t *testing.T) {
	st := startRedis(t)
	ctx := context.Background()

	require.NoError(t, st.SetEphemeral(ctx, "c1", "seek:p1", "3"))
	ttl, err := st.rdb.TTL(ctx, st.ephemeralKey("c1")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	sess := &models.Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour), User: models.User{ID: uuid.New()}}
	require.NoError(t, st.SaveSession(ctx, "c1", sess, time.Hour))
	require.NoError(t, st.SetPendingRedirect(ctx, "c1", "/a"))

	require.NoError(t, st.Evict(ctx, "c1"))

	_, err = st.Ephemeral(ctx, "c1", "seek:p1")
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = st.ConsumePendingRedirect(ctx, "c1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.LoadSession(ctx, "c1")
	require.NoError(t, err)
}
