package models

import "time"

// MediaHandle — подписанная ссылка на объект хранилища.
//
// ObjectPath стабилен, URL эфемерен. Хэндл не мутируется:
// новый хэндл целиком заменяет предыдущий.
type MediaHandle struct {
	ObjectPath string
	URL        string
	ExpiresAt  time.Time
}

// ExpiresWithin сообщает, истекает ли ссылка не позднее чем через margin от now.
func (h *MediaHandle) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return !h.ExpiresAt.After(now.Add(margin))
}
