package models

import (
	"time"

	"github.com/google/uuid"
)

// Progress — прогресс пользователя по курсу.
// Ключ записи — пара (UserID, CourseID), а не фиксированная константа.
type Progress struct {
	UserID           uuid.UUID
	CourseID         string
	CompletedLessons []string
	// Checklist — отмеченные пункты чек-листа по урокам: lessonID -> itemIDs.
	Checklist    map[string][]string
	LastLessonID string
	// History — последние открытые уроки, самый свежий первым.
	History   []string
	UpdatedAt time.Time
}

// LessonCompleted сообщает, отмечен ли урок пройденным.
func (p *Progress) LessonCompleted(lessonID string) bool {
	for _, id := range p.CompletedLessons {
		if id == lessonID {
			return true
		}
	}

	return false
}
