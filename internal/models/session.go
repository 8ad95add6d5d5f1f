// models содержит доменные сущности module-mind.
// Эти типы используются слоями identity, authstate, media, progress и storage;
// транспортные DTO живут отдельно в internal/http/handlers.
package models

import "time"

// Session — выданное провайдером подтверждение личности.
//
// Описание:
//   - AccessToken — короткоживущий токен доступа;
//   - RefreshToken — долгоживущий секрет для продления сессии;
//   - ExpiresAt — момент истечения AccessToken (UTC);
//   - User — владелец сессии.
//
// Сессией владеет провайдер; менеджер состояния держит только read-only копию.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// ExpiresWithin сообщает, истекает ли сессия не позднее чем через window от now.
// Граница включительна: expiry - now == window считается попаданием в окно.
func (s *Session) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !s.ExpiresAt.After(now.Add(window))
}

// Expired сообщает, истекла ли сессия к моменту now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Clone возвращает независимую копию сессии.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	c := *s
	return &c
}
