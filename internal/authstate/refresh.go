package authstate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/metrics"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
)

// Start запускает цикл проактивного продления с периодом RefreshInterval.
// Цикл живёт до Close или отмены ctx.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		if m.cfg.RefreshInterval <= 0 {
			return
		}

		m.wg.Add(1)
		go m.loop(ctx)
	})
}

// Close останавливает цикл продления, дожидается его завершения
// и отписывает менеджера от событий клиента.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
		m.wg.Wait()
		m.unsubscribe()
	})
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	t := time.NewTicker(m.cfg.RefreshInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-t.C:
			m.tick(ctx)
		}
	}
}

// tick — один такт цикла: продление только если до истечения
// осталось не больше окна безопасности.
func (m *Manager) tick(ctx context.Context) {
	if m.Session() == nil {
		return
	}

	m.refreshIfDue(ctx)
}

// Revalidate — защитная проверка при навигации. Действительная сессия вне
// окна безопасности подтверждается без сетевого вызова; внутри окна
// выполняется продление, отказ которого ведёт к принудительному выходу.
func (m *Manager) Revalidate(ctx context.Context) bool {
	return m.refreshIfDue(ctx)
}

// refreshIfDue продлевает сессию, если она в окне безопасности.
// Возвращает, аутентифицирован ли контекст после решения.
func (m *Manager) refreshIfDue(ctx context.Context) bool {
	const op = "authstate.Manager.refreshIfDue"

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	sess := m.Session()
	if sess == nil {
		return false
	}

	if !sess.ExpiresWithin(m.now(), m.cfg.SafetyWindow) {
		m.metrics.RefreshTick(metrics.ResultSkipped)
		return true
	}

	_, err := m.client.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrNoSession):
		// Контекст вышел, пока шло продление: локальное состояние уже очищено.
		m.metrics.RefreshTick(metrics.ResultSkipped)
		return false
	default:
		m.metrics.RefreshTick(metrics.ResultFailed)
		m.metrics.ForcedSignOut()
		log.From(ctx).Warn("token_refresh_failed",
			slog.String("op", op),
			slog.String("user_id", sess.User.ID.String()),
			slog.String("err", err.Error()),
		)
		m.forceSignOut(ctx)

		return false
	}

	m.metrics.RefreshTick(metrics.ResultOK)

	return true
}

// forceSignOut — выход после неустранимого отказа продления.
func (m *Manager) forceSignOut(ctx context.Context) {
	const op = "authstate.Manager.forceSignOut"

	if err := m.SignOut(ctx); err != nil {
		log.From(ctx).Debug("forced_sign_out_remote_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
	}
}
