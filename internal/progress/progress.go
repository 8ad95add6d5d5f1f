// progress — прогресс пользователя по курсу.
//
// Запись ключуется парой (ID пользователя, курс); прогресс разных
// пользователей одного браузера не смешивается.
package progress

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
	"github.com/pribylovaa/module-mind/internal/storage"
)

// HistoryLimit — длина истории навигации.
const HistoryLimit = 20

// ErrInvalidID — пустой идентификатор пользователя, курса, урока или пункта.
var ErrInvalidID = errors.New("invalid id")

const lockStripes = 32

// Service изменяет записи прогресса через чтение-изменение-запись;
// изменения одной записи сериализуются.
type Service struct {
	storage storage.ProgressStorage
	now     func() time.Time
	locks   [lockStripes]sync.Mutex
}

// New создаёт сервис поверх хранилища.
func New(st storage.ProgressStorage) *Service {
	return &Service{
		storage: st,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get возвращает прогресс; отсутствие записи даёт пустой прогресс.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, courseID string) (*models.Progress, error) {
	const op = "progress.Service.Get"

	if err := validIDs(userID, courseID); err != nil {
		return nil, err
	}

	p, err := s.load(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// CompleteLesson отмечает урок пройденным. Повторная отметка ничего не меняет.
func (s *Service) CompleteLesson(ctx context.Context, userID uuid.UUID, courseID, lessonID string) (*models.Progress, error) {
	return s.update(ctx, "progress.Service.CompleteLesson", userID, courseID, []string{lessonID}, func(p *models.Progress) {
		if !p.LessonCompleted(lessonID) {
			p.CompletedLessons = append(p.CompletedLessons, lessonID)
		}
	})
}

// UncompleteLesson снимает отметку урока; чек-лист урока сохраняется.
func (s *Service) UncompleteLesson(ctx context.Context, userID uuid.UUID, courseID, lessonID string) (*models.Progress, error) {
	return s.update(ctx, "progress.Service.UncompleteLesson", userID, courseID, []string{lessonID}, func(p *models.Progress) {
		p.CompletedLessons = slices.DeleteFunc(p.CompletedLessons, func(id string) bool { return id == lessonID })
	})
}

// ToggleChecklistItem отмечает пункт чек-листа урока или снимает отметку.
func (s *Service) ToggleChecklistItem(ctx context.Context, userID uuid.UUID, courseID, lessonID, itemID string) (*models.Progress, error) {
	return s.update(ctx, "progress.Service.ToggleChecklistItem", userID, courseID, []string{lessonID, itemID}, func(p *models.Progress) {
		items := p.Checklist[lessonID]
		if i := slices.Index(items, itemID); i >= 0 {
			items = slices.Delete(items, i, i+1)
		} else {
			items = append(items, itemID)
		}

		if len(items) == 0 {
			delete(p.Checklist, lessonID)
			return
		}
		p.Checklist[lessonID] = items
	})
}

// RecordAccess запоминает последний открытый урок и ставит его в начало
// истории навигации без повторов, обрезая историю до HistoryLimit.
func (s *Service) RecordAccess(ctx context.Context, userID uuid.UUID, courseID, lessonID string) (*models.Progress, error) {
	return s.update(ctx, "progress.Service.RecordAccess", userID, courseID, []string{lessonID}, func(p *models.Progress) {
		p.LastLessonID = lessonID

		history := make([]string, 0, HistoryLimit)
		history = append(history, lessonID)
		for _, id := range p.History {
			if id != lessonID && len(history) < HistoryLimit {
				history = append(history, id)
			}
		}
		p.History = history
	})
}

func (s *Service) update(ctx context.Context, op string, userID uuid.UUID, courseID string, ids []string, mutate func(*models.Progress)) (*models.Progress, error) {
	if err := validIDs(userID, courseID, ids...); err != nil {
		return nil, err
	}

	mu := s.lockFor(userID, courseID)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mutate(p)
	p.UpdatedAt = s.now()

	if err := s.storage.SaveProgress(ctx, p); err != nil {
		log.From(ctx).Error("progress_save_failed",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
			slog.String("course_id", courseID),
			slog.String("err", err.Error()),
		)

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (s *Service) load(ctx context.Context, userID uuid.UUID, courseID string) (*models.Progress, error) {
	p, err := s.storage.Progress(ctx, userID, courseID)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.Progress{
			UserID:           userID,
			CourseID:         courseID,
			CompletedLessons: []string{},
			Checklist:        map[string][]string{},
			History:          []string{},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if p.Checklist == nil {
		p.Checklist = map[string][]string{}
	}

	return p, nil
}

func (s *Service) lockFor(userID uuid.UUID, courseID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write(userID[:])
	_, _ = h.Write([]byte(courseID))

	return &s.locks[h.Sum32()%lockStripes]
}

func validIDs(userID uuid.UUID, courseID string, ids ...string) error {
	if userID == uuid.Nil || strings.TrimSpace(courseID) == "" {
		return ErrInvalidID
	}

	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return ErrInvalidID
		}
	}

	return nil
}
