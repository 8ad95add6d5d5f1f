// metrics — счётчики Prometheus module-mind.
//
// Методы безопасны для nil-получателя: компоненты и тесты
// могут работать без метрик.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "module_mind"

// Значения меток result.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
	ResultDenied  = "denied"
)

// Metrics — набор метрик сервиса.
type Metrics struct {
	RefreshTicks       *prometheus.CounterVec
	SignedURLs         *prometheus.CounterVec
	PlaybackErrors     *prometheus.CounterVec
	GuardDecisions     *prometheus.CounterVec
	AuthAttempts       *prometheus.CounterVec
	BrowserContexts    prometheus.Gauge
	MountedPlayers     prometheus.Gauge
	ForcedSignOutTotal prometheus.Counter
}

// New создаёт и регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RefreshTicks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refresh_ticks_total",
				Help:      "Proactive token refresh ticks by outcome",
			},
			[]string{"result"}, // ok/failed/skipped
		),
		SignedURLs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signed_url_resolutions_total",
				Help:      "Signed media URL resolutions by trigger and outcome",
			},
			[]string{"trigger", "result"},
		),
		PlaybackErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "playback_errors_total",
				Help:      "Playback errors reported by players",
			},
			[]string{"code"},
		),
		GuardDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_decisions_total",
				Help:      "Route guard decisions by state",
			},
			[]string{"state"},
		),
		AuthAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Sign-in and sign-up attempts by outcome kind",
			},
			[]string{"op", "kind"},
		),
		BrowserContexts: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "browser_contexts",
				Help:      "Live browser contexts",
			},
		),
		MountedPlayers: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "mounted_players",
				Help:      "Mounted media players across all browser contexts",
			},
		),
		ForcedSignOutTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forced_sign_outs_total",
				Help:      "Sign-outs forced by a failed session refresh",
			},
		),
	}
}

func (m *Metrics) RefreshTick(result string) {
	if m == nil {
		return
	}
	m.RefreshTicks.WithLabelValues(result).Inc()
}

func (m *Metrics) SignedURL(trigger, result string) {
	if m == nil {
		return
	}
	m.SignedURLs.WithLabelValues(trigger, result).Inc()
}

func (m *Metrics) PlaybackError(code string) {
	if m == nil {
		return
	}
	m.PlaybackErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) GuardDecision(state string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(state).Inc()
}

func (m *Metrics) AuthAttempt(op, kind string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) ForcedSignOut() {
	if m == nil {
		return
	}
	m.ForcedSignOutTotal.Inc()
}

// ContextOpened/ContextClosed ведут gauge живых браузерных контекстов.
func (m *Metrics) ContextOpened() {
	if m == nil {
		return
	}
	m.BrowserContexts.Inc()
}

func (m *Metrics) ContextClosed() {
	if m == nil {
		return
	}
	m.BrowserContexts.Dec()
}

func (m *Metrics) PlayerMounted() {
	if m == nil {
		return
	}
	m.MountedPlayers.Inc()
}

func (m *Metrics) PlayerUnmounted() {
	if m == nil {
		return
	}
	m.MountedPlayers.Dec()
}
