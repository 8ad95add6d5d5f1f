// browser — жизненный цикл браузерных контекстов.
//
// Браузерный контекст соответствует одной вкладке/сессии браузера,
// опознаётся непрозрачным cookie и владеет своими Auth State Manager,
// Route Guard, Credential Modal и плеерами.
package browser

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/pribylovaa/module-mind/internal/authstate"
	"github.com/pribylovaa/module-mind/internal/guard"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/media"
	"github.com/pribylovaa/module-mind/internal/modal"
)

const idBytes = 32

// Context — состояние одного браузерного контекста.
type Context struct {
	ID      string
	Client  *identity.Client
	Auth    *authstate.Manager
	Guard   *guard.Guard
	Modal   *modal.Modal
	Players *media.Players

	mu       sync.Mutex
	navigate string
	lastSeen time.Time
}

// TakeNavigation возвращает и сбрасывает ожидающий сигнал навигации.
// Пустая строка — навигации нет.
func (c *Context) TakeNavigation() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.navigate
	c.navigate = ""

	return p
}

// navigateTo запоминает сигнал навигации; более новый заменяет старый.
func (c *Context) navigateTo(path string) {
	c.mu.Lock()
	c.navigate = path
	c.mu.Unlock()
}

func (c *Context) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Context) seenAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastSeen
}

func (c *Context) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return now.Sub(c.lastSeen)
}

// close останавливает таймеры плееров и цикл продления.
func (c *Context) close() {
	c.Players.Close()
	c.Auth.Close()
}

// NewID генерирует идентификатор контекста: 32 случайных байта в base64url.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidID проверяет формат идентификатора из cookie.
func ValidID(id string) bool {
	if len(id) != base64.RawURLEncoding.EncodedLen(idBytes) {
		return false
	}

	b, err := base64.RawURLEncoding.DecodeString(id)

	return err == nil && len(b) == idBytes
}

type ctxKey struct{}

// Into кладёт браузерный контекст в context.Context запроса.
func Into(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// From достаёт браузерный контекст запроса.
func From(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Context)
	return c, ok && c != nil
}
