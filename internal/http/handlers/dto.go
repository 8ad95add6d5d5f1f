package handlers

import (
	"time"

	"github.com/pribylovaa/module-mind/internal/guard"
	"github.com/pribylovaa/module-mind/internal/media"
	"github.com/pribylovaa/module-mind/internal/modal"
	"github.com/pribylovaa/module-mind/internal/models"
)

// Транспортные DTO. Токены сессии наружу не отдаются никогда.

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func userFromModel(u *models.User) *userResponse {
	if u == nil {
		return nil
	}

	return &userResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type sessionResponse struct {
	Resolved      bool          `json:"resolved"`
	Authenticated bool          `json:"authenticated"`
	User          *userResponse `json:"user,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	NavigateTo    string        `json:"navigate_to,omitempty"`
}

type modalResponse struct {
	Modal      modal.View `json:"modal"`
	Outcome    string     `json:"outcome,omitempty"`
	NavigateTo string     `json:"navigate_to,omitempty"`
}

type modeRequest struct {
	Mode        string `json:"mode"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type submitRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type dismissRequest struct {
	Reason string `json:"reason"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

type updateUserRequest struct {
	DisplayName string `json:"display_name"`
}

type navigationResponse struct {
	NavigateTo string `json:"navigate_to,omitempty"`
}

type guardResponse struct {
	State      guard.State `json:"state"`
	Modal      *modal.View `json:"modal,omitempty"`
	NavigateTo string      `json:"navigate_to,omitempty"`
}

type mountRequest struct {
	ObjectPath string `json:"object_path"`
}

type playbackErrorRequest struct {
	Code int `json:"code"`
}

type playbackErrorResponse struct {
	Refreshed bool       `json:"refreshed"`
	Player    media.View `json:"player"`
}

type seekRequest struct {
	Position float64 `json:"position"`
}

type progressResponse struct {
	CourseID         string              `json:"course_id"`
	CompletedLessons []string            `json:"completed_lessons"`
	Checklist        map[string][]string `json:"checklist"`
	LastLessonID     string              `json:"last_lesson_id,omitempty"`
	History          []string            `json:"history"`
	UpdatedAt        *time.Time          `json:"updated_at,omitempty"`
}

func progressFromModel(p *models.Progress) progressResponse {
	out := progressResponse{
		CourseID:         p.CourseID,
		CompletedLessons: p.CompletedLessons,
		Checklist:        p.Checklist,
		LastLessonID:     p.LastLessonID,
		History:          p.History,
	}

	if out.CompletedLessons == nil {
		out.CompletedLessons = []string{}
	}
	if out.Checklist == nil {
		out.Checklist = map[string][]string{}
	}
	if out.History == nil {
		out.History = []string{}
	}
	if !p.UpdatedAt.IsZero() {
		ts := p.UpdatedAt
		out.UpdatedAt = &ts
	}

	return out
}
