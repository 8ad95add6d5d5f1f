// redis реализует storage.ContextStorage поверх Redis.
//
// Раскладка ключей (prefix по умолчанию "mm:"):
//   - <prefix>sess:<ctx>     — Hash с полями at, rt, exp, uid, email, name, cat, uat;
//   - <prefix>redirect:<ctx> — строка Pending Redirect, читается через GETDEL;
//   - <prefix>eph:<ctx>      — Hash эфемерных данных контекста.
//
// Pending Redirect и эфемерные данные живут не дольше stateTTL с последней записи.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store — хранилище состояния браузерных контекстов в Redis.
type Store struct {
	rdb      *redis.Client
	prefix   string
	stateTTL time.Duration
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "mm:"; stateTTL <= 0 — 12 часов.
func New(ctx context.Context, redisURL, prefix string, stateTTL time.Duration) (*Store, error) {
	const op = "storage.redis.New"

	if prefix == "" {
		prefix = "mm:"
	}
	if stateTTL <= 0 {
		stateTTL = defaultStateTTL
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{rdb: rdb, prefix: prefix, stateTTL: stateTTL}, nil
}

const defaultStateTTL = 12 * time.Hour

func (s *Store) sessionKey(id string) string  { return s.prefix + "sess:" + id }
func (s *Store) redirectKey(id string) string { return s.prefix + "redirect:" + id }
func (s *Store) ephemeralKey(id string) string { return s.prefix + "eph:" + id }

// LoadSession читает сессию контекста.
func (s *Store) LoadSession(ctx context.Context, contextID string) (*models.Session, error) {
	const op = "storage.redis.LoadSession"

	m, err := s.rdb.HGetAll(ctx, s.sessionKey(contextID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(m) == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	sess, err := decodeSession(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// SaveSession заменяет сессию контекста целиком.
func (s *Store) SaveSession(ctx context.Context, contextID string, sess *models.Session, ttl time.Duration) error {
	const op = "storage.redis.SaveSession"

	key := s.sessionKey(contextID)

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, encodeSession(sess))
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteSession удаляет сессию контекста.
func (s *Store) DeleteSession(ctx context.Context, contextID string) error {
	const op = "storage.redis.DeleteSession"

	if err := s.rdb.Del(ctx, s.sessionKey(contextID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SetPendingRedirect перезаписывает Pending Redirect.
func (s *Store) SetPendingRedirect(ctx context.Context, contextID, path string) error {
	const op = "storage.redis.SetPendingRedirect"

	if err := s.rdb.Set(ctx, s.redirectKey(contextID), path, s.stateTTL).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ConsumePendingRedirect атомарно читает и удаляет Pending Redirect.
func (s *Store) ConsumePendingRedirect(ctx context.Context, contextID string) (string, error) {
	const op = "storage.redis.ConsumePendingRedirect"

	path, err := s.rdb.GetDel(ctx, s.redirectKey(contextID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return path, nil
}

func (s *Store) SetEphemeral(ctx context.Context, contextID, key, value string) error {
	const op = "storage.redis.SetEphemeral"

	k := s.ephemeralKey(contextID)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, k, key, value)
	pipe.Expire(ctx, k, s.stateTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) Ephemeral(ctx context.Context, contextID, key string) (string, error) {
	const op = "storage.redis.Ephemeral"

	v, err := s.rdb.HGet(ctx, s.ephemeralKey(contextID), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

func (s *Store) PurgeEphemeral(ctx context.Context, contextID string) error {
	const op = "storage.redis.PurgeEphemeral"

	if err := s.rdb.Del(ctx, s.ephemeralKey(contextID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) Evict(ctx context.Context, contextID string) error {
	const op = "storage.redis.Evict"

	if err := s.rdb.Del(ctx, s.redirectKey(contextID), s.ephemeralKey(contextID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Ping проверяет доступность Redis (используется /healthz).
func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Close() error { return s.rdb.Close() }

func encodeSession(sess *models.Session) map[string]string {
	return map[string]string{
		"at":    sess.AccessToken,
		"rt":    sess.RefreshToken,
		"exp":   strconv.FormatInt(sess.ExpiresAt.Unix(), 10),
		"uid":   sess.User.ID.String(),
		"email": sess.User.Email,
		"name":  sess.User.DisplayName,
		"cat":   strconv.FormatInt(sess.User.CreatedAt.Unix(), 10),
		"uat":   strconv.FormatInt(sess.User.UpdatedAt.Unix(), 10),
	}
}

func decodeSession(m map[string]string) (*models.Session, error) {
	uid, err := uuid.Parse(m["uid"])
	if err != nil {
		return nil, err
	}

	exp, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return nil, err
	}

	// cat/uat необязательны: отсутствие даёт нулевое время.
	cat, _ := strconv.ParseInt(m["cat"], 10, 64)
	uat, _ := strconv.ParseInt(m["uat"], 10, 64)

	return &models.Session{
		AccessToken:  m["at"],
		RefreshToken: m["rt"],
		ExpiresAt:    time.Unix(exp, 0).UTC(),
		User: models.User{
			ID:          uid,
			Email:       m["email"],
			DisplayName: m["name"],
			CreatedAt:   unixOrZero(cat),
			UpdatedAt:   unixOrZero(uat),
		},
	}, nil
}

func unixOrZero(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}

	return time.Unix(sec, 0).UTC()
}

var _ storage.ContextStorage = (*Store)(nil)
