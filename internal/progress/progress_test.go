package progress

// Тесты сервиса прогресса:
//  - ключ записи — пара (пользователь, курс);
//  - отметка/снятие урока идемпотентны;
//  - переключение пункта чек-листа;
//  - история навигации: свежий урок первым, без повторов, не длиннее HistoryLimit;
//  - пустые идентификаторы отклоняются;
//  - ошибка хранилища пробрасывается (мок ProgressStorage).

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/storage"
	"github.com/pribylovaa/module-mind/internal/storage/memory"
	"github.com/pribylovaa/module-mind/mocks"
	"github.com/stretchr/testify/require"
)

const course = "ai-course"

func TestProgress_KeyedByUser(t *testing.T) {
	t.Parallel()

	s := New(memory.NewProgressStore())
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	_, err := s.CompleteLesson(ctx, alice, course, "w1-l1")
	require.NoError(t, err)

	p, err := s.Get(ctx, bob, course)
	require.NoError(t, err)
	require.Empty(t, p.CompletedLessons)

	p, err = s.Get(ctx, alice, course)
	require.NoError(t, err)
	require.Equal(t, []string{"w1-l1"}, p.CompletedLessons)

	p, err = s.Get(ctx, alice, "other-course")
	require.NoError(t, err)
	require.Empty(t, p.CompletedLessons)
}

func TestProgress_CompleteUncomplete(t *testing.T) {
	t.Parallel()

	s := New(memory.NewProgressStore())
	ctx := context.Background()
	user := uuid.New()

	_, err := s.CompleteLesson(ctx, user, course, "w1-l1")
	require.NoError(t, err)
	p, err := s.CompleteLesson(ctx, user, course, "w1-l1")
	require.NoError(t, err)
	require.Equal(t, []string{"w1-l1"}, p.CompletedLessons)
	require.False(t, p.UpdatedAt.IsZero())

	p, err = s.UncompleteLesson(ctx, user, course, "w1-l1")
	require.NoError(t, err)
	require.Empty(t, p.CompletedLessons)

	p, err = s.UncompleteLesson(ctx, user, course, "w1-l1")
	require.NoError(t, err)
	require.Empty(t, p.CompletedLessons)
}

func TestProgress_ToggleChecklistItem(t *testing.T) {
	t.Parallel()

	s := New(memory.NewProgressStore())
	ctx := context.Background()
	user := uuid.New()

	p, err := s.ToggleChecklistItem(ctx, user, course, "w1-l1", "item-a")
	require.NoError(t, err)
	require.Equal(t, []string{"item-a"}, p.Checklist["w1-l1"])

	p, err = s.ToggleChecklistItem(ctx, user, course, "w1-l1", "item-b")
	require.NoError(t, err)
	require.Equal(t, []string{"item-a", "item-b"}, p.Checklist["w1-l1"])

	p, err = s.ToggleChecklistItem(ctx, user, course, "w1-l1", "item-a")
	require.NoError(t, err)
	require.Equal(t, []string{"item-b"}, p.Checklist["w1-l1"])

	p, err = s.ToggleChecklistItem(ctx, user, course, "w1-l1", "item-b")
	require.NoError(t, err)
	require.NotContains(t, p.Checklist, "w1-l1")
}

func TestProgress_RecordAccessHistory(t *testing.T) {
	t.Parallel()

	s := New(memory.NewProgressStore())
	ctx := context.Background()
	user := uuid.New()

	for i := range HistoryLimit + 5 {
		_, err := s.RecordAccess(ctx, user, course, fmt.Sprintf("l%d", i))
		require.NoError(t, err)
	}

	p, err := s.RecordAccess(ctx, user, course, "l10")
	require.NoError(t, err)

	require.Equal(t, "l10", p.LastLessonID)
	require.Len(t, p.History, HistoryLimit)
	require.Equal(t, "l10", p.History[0])
	require.Equal(t, "l24", p.History[1])

	seen := map[string]bool{}
	for _, id := range p.History {
		require.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestProgress_InvalidIDs(t *testing.T) {
	t.Parallel()

	s := New(memory.NewProgressStore())
	ctx := context.Background()

	_, err := s.Get(ctx, uuid.Nil, course)
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = s.CompleteLesson(ctx, uuid.New(), " ", "l1")
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = s.ToggleChecklistItem(ctx, uuid.New(), course, "l1", "")
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestProgress_StorageFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockProgressStorage(ctrl)
	s := New(st)
	user := uuid.New()

	st.EXPECT().Progress(gomock.Any(), user, course).Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveProgress(gomock.Any(), gomock.Any()).Return(errors.New("mongo down"))

	_, err := s.CompleteLesson(context.Background(), user, course, "l1")
	require.ErrorContains(t, err, "mongo down")

	st.EXPECT().Progress(gomock.Any(), user, course).Return(nil, errors.New("timeout"))
	_, err = s.Get(context.Background(), user, course)
	require.ErrorContains(t, err, "timeout")
}
