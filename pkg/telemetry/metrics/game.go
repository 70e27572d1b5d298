package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lycan-hq/arbiter/pkg/config"
)

// SeatMetrics tracks seat health and circuit state.
//
// Metrics:
//   - arbiter_seat_healthy: last probe result (1=healthy, 0=unhealthy)
//   - arbiter_seat_entrusted: 1 while the seat is played by the fallback policy
//   - arbiter_seat_registrations_total: registrations and hot swaps per seat
type SeatMetrics struct {
	healthy       *prometheus.GaugeVec
	entrusted     *prometheus.GaugeVec
	registrations *prometheus.CounterVec
}

// NewSeatMetrics creates and registers seat metrics.
func NewSeatMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *SeatMetrics {
	sm := &SeatMetrics{
		healthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "seat_healthy",
				Help:      "Seat health probe result (1=healthy, 0=unhealthy)",
			},
			[]string{"seat"},
		),
		entrusted: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "seat_entrusted",
				Help:      "Whether the seat is played by the fallback policy",
			},
			[]string{"seat"},
		),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "seat_registrations_total",
				Help:      "Total number of seat registrations including hot swaps",
			},
			[]string{"seat"},
		),
	}
	registry.MustRegister(sm.healthy, sm.entrusted, sm.registrations)
	return sm
}

// SetHealth records a probe result.
func (sm *SeatMetrics) SetHealth(seatID string, healthy bool) {
	sm.healthy.WithLabelValues(seatID).Set(boolGauge(healthy))
}

// SetEntrusted records the seat's entrusted flag.
func (sm *SeatMetrics) SetEntrusted(seatID string, entrusted bool) {
	sm.entrusted.WithLabelValues(seatID).Set(boolGauge(entrusted))
}

// GameMetrics tracks finished games and phase timing.
//
// Metrics:
//   - arbiter_games_total: finished games by winning side
//   - arbiter_game_rounds: rounds played per game
//   - arbiter_game_duration_seconds: wall time per game
//   - arbiter_phase_duration_seconds: wall time per phase
type GameMetrics struct {
	games         *prometheus.CounterVec
	rounds        prometheus.Histogram
	duration      prometheus.Histogram
	phaseDuration *prometheus.HistogramVec
}

// NewGameMetrics creates and registers game metrics.
func NewGameMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *GameMetrics {
	gm := &GameMetrics{
		games: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "games_total",
				Help:      "Total number of finished games by winner",
			},
			[]string{"winner"},
		),
		rounds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "game_rounds",
				Help:      "Rounds played per finished game",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "game_duration_seconds",
				Help:      "Wall time per finished game in seconds",
				Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
			},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "phase_duration_seconds",
				Help:      "Wall time per phase in seconds",
				Buckets:   cfg.DispatchDurationBuckets,
			},
			[]string{"phase"},
		),
	}
	registry.MustRegister(gm.games, gm.rounds, gm.duration, gm.phaseDuration)
	return gm
}

// Record records a finished game. An unfinished game is counted as "none".
func (gm *GameMetrics) Record(winner string, rounds int, duration time.Duration) {
	if winner == "" {
		winner = "none"
	}
	gm.games.WithLabelValues(winner).Inc()
	gm.rounds.Observe(float64(rounds))
	gm.duration.Observe(duration.Seconds())
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
