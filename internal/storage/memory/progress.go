package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/storage"
)

type progressKey struct {
	userID   uuid.UUID
	courseID string
}

// ProgressStore хранит прогресс в памяти по ключу (пользователь, курс).
type ProgressStore struct {
	mu   sync.RWMutex
	data map[progressKey]*models.Progress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{data: make(map[progressKey]*models.Progress)}
}

func (s *ProgressStore) Progress(_ context.Context, userID uuid.UUID, courseID string) (*models.Progress, error) {
	s.mu.RLock()
	p, ok := s.data[progressKey{userID, courseID}]
	s.mu.RUnlock()

	if !ok {
		return nil, storage.ErrNotFound
	}

	return copyProgress(p), nil
}

func (s *ProgressStore) SaveProgress(_ context.Context, p *models.Progress) error {
	s.mu.Lock()
	s.data[progressKey{p.UserID, p.CourseID}] = copyProgress(p)
	s.mu.Unlock()

	return nil
}

func copyProgress(p *models.Progress) *models.Progress {
	c := *p
	c.CompletedLessons = slices.Clone(p.CompletedLessons)
	c.History = slices.Clone(p.History)
	c.Checklist = make(map[string][]string, len(p.Checklist))
	for k, v := range p.Checklist {
		c.Checklist[k] = slices.Clone(v)
	}

	return &c
}

var _ storage.ProgressStorage = (*ProgressStore)(nil)
