// memory реализует хранилища module-mind в памяти процесса.
// Используется, когда Redis/MongoDB не сконфигурированы (env=local), и в тестах.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/storage"
)

type sessionEntry struct {
	session   *models.Session
	expiresAt time.Time // zero — без срока
}

type redirectEntry struct {
	path      string
	expiresAt time.Time
}

type ephemeralEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// Option настраивает ContextStore.
type Option func(*ContextStore)

// WithStateTTL задаёт срок жизни Pending Redirect и эфемерных данных
// с последней записи. 0 — без срока.
func WithStateTTL(ttl time.Duration) Option {
	return func(s *ContextStore) { s.stateTTL = ttl }
}

// ContextStore хранит сессии, Pending Redirect и эфемерные данные браузерных контекстов.
// Потокобезопасен; возвращает и сохраняет копии сессий.
// Истёкшие записи не видны при чтении и удаляются PruneExpired.
type ContextStore struct {
	mu        sync.RWMutex
	sessions  map[string]sessionEntry
	redirects map[string]redirectEntry
	ephemeral map[string]ephemeralEntry
	stateTTL  time.Duration
	now       func() time.Time
}

// NewContextStore создаёт пустое хранилище.
func NewContextStore(opts ...Option) *ContextStore {
	s := &ContextStore{
		sessions:  make(map[string]sessionEntry),
		redirects: make(map[string]redirectEntry),
		ephemeral: make(map[string]ephemeralEntry),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func expired(at, now time.Time) bool {
	return !at.IsZero() && !now.Before(at)
}

func (s *ContextStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}

	return s.now().Add(ttl)
}

func (s *ContextStore) LoadSession(_ context.Context, contextID string) (*models.Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[contextID]
	s.mu.RUnlock()

	if !ok || expired(e.expiresAt, s.now()) {
		return nil, storage.ErrNotFound
	}

	return e.session.Clone(), nil
}

func (s *ContextStore) SaveSession(_ context.Context, contextID string, sess *models.Session, ttl time.Duration) error {
	e := sessionEntry{session: sess.Clone(), expiresAt: s.deadline(ttl)}

	s.mu.Lock()
	s.sessions[contextID] = e
	s.mu.Unlock()

	return nil
}

func (s *ContextStore) DeleteSession(_ context.Context, contextID string) error {
	s.mu.Lock()
	delete(s.sessions, contextID)
	s.mu.Unlock()

	return nil
}

func (s *ContextStore) SetPendingRedirect(_ context.Context, contextID, path string) error {
	e := redirectEntry{path: path, expiresAt: s.deadline(s.stateTTL)}

	s.mu.Lock()
	s.redirects[contextID] = e
	s.mu.Unlock()

	return nil
}

func (s *ContextStore) ConsumePendingRedirect(_ context.Context, contextID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.redirects[contextID]
	if !ok {
		return "", storage.ErrNotFound
	}

	delete(s.redirects, contextID)

	if expired(e.expiresAt, s.now()) {
		return "", storage.ErrNotFound
	}

	return e.path, nil
}

func (s *ContextStore) SetEphemeral(_ context.Context, contextID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.ephemeral[contextID]
	if !ok || expired(e.expiresAt, s.now()) {
		e = ephemeralEntry{values: make(map[string]string)}
	}
	e.values[key] = value
	e.expiresAt = s.deadline(s.stateTTL)
	s.ephemeral[contextID] = e

	return nil
}

func (s *ContextStore) Ephemeral(_ context.Context, contextID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.ephemeral[contextID]
	if !ok || expired(e.expiresAt, s.now()) {
		return "", storage.ErrNotFound
	}

	v, ok := e.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}

	return v, nil
}

func (s *ContextStore) PurgeEphemeral(_ context.Context, contextID string) error {
	s.mu.Lock()
	delete(s.ephemeral, contextID)
	s.mu.Unlock()

	return nil
}

func (s *ContextStore) Evict(_ context.Context, contextID string) error {
	s.mu.Lock()
	delete(s.redirects, contextID)
	delete(s.ephemeral, contextID)
	s.mu.Unlock()

	return nil
}

// PruneExpired удаляет истёкшие сессии, Pending Redirect и эфемерные данные
// всех контекстов и возвращает число удалённых записей.
func (s *ContextStore) PruneExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.sessions {
		if expired(e.expiresAt, now) {
			delete(s.sessions, id)
			n++
		}
	}
	for id, e := range s.redirects {
		if expired(e.expiresAt, now) {
			delete(s.redirects, id)
			n++
		}
	}
	for id, e := range s.ephemeral {
		if expired(e.expiresAt, now) {
			delete(s.ephemeral, id)
			n++
		}
	}

	return n
}

// Close ничего не освобождает; нужен для соответствия storage.ContextStorage.
func (s *ContextStore) Close() error { return nil }

var _ storage.ContextStorage = (*ContextStore)(nil)
