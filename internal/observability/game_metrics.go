package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GameStates are the label values of riderunner_game_state.
var GameStates = []string{"ready", "playing", "paused", "game_over"}

// GameCollector exposes the engine's gameplay metrics. A nil *GameCollector
// is valid and records nothing.
type GameCollector struct {
	gatherer prometheus.Gatherer

	State        *prometheus.GaugeVec
	Countdown    prometheus.Gauge
	Score        prometheus.Gauge
	ActiveRiders prometheus.Gauge
	Fatigue      prometheus.Gauge

	Pickups         *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	GameOvers       prometheus.Counter
	StalePlacements prometheus.Counter
	SpeedWarnings   prometheus.Counter

	Rewards           prometheus.Histogram
	PlacementDuration *prometheus.HistogramVec
	PlacedRiders      *prometheus.CounterVec
}

// NewGameCollector registers gameplay metrics against reg, defaulting to the
// global registry when nil.
func NewGameCollector(reg prometheus.Registerer) (*GameCollector, error) {
	reg, gatherer := gathererFor(reg)
	c := &GameCollector{gatherer: gatherer}
	var err error

	if c.State, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "riderunner_game_state",
		Help: "1 for the engine's current lifecycle state, 0 otherwise.",
	}, []string{"state"}), "riderunner_game_state"); err != nil {
		return nil, err
	}
	if c.Countdown, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "riderunner_countdown_seconds",
		Help: "Seconds left on the countdown.",
	}), "riderunner_countdown_seconds"); err != nil {
		return nil, err
	}
	if c.Score, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "riderunner_score",
		Help: "Completed deliveries in the current session.",
	}), "riderunner_score"); err != nil {
		return nil, err
	}
	if c.ActiveRiders, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "riderunner_active_riders",
		Help: "Riders currently waiting in the zone.",
	}), "riderunner_active_riders"); err != nil {
		return nil, err
	}
	if c.Fatigue, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "riderunner_fatigue",
		Help: "Current reward fatigue scalar.",
	}), "riderunner_fatigue"); err != nil {
		return nil, err
	}
	if c.Pickups, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "riderunner_pickups_total",
		Help: "Riders picked up, labeled by tier.",
	}, []string{"tier"}), "riderunner_pickups_total"); err != nil {
		return nil, err
	}
	if c.Deliveries, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "riderunner_deliveries_total",
		Help: "Deliveries completed, labeled by tier.",
	}, []string{"tier"}), "riderunner_deliveries_total"); err != nil {
		return nil, err
	}
	if c.GameOvers, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "riderunner_game_overs_total",
		Help: "Games that ran out of time.",
	}), "riderunner_game_overs_total"); err != nil {
		return nil, err
	}
	if c.StalePlacements, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "riderunner_stale_placements_total",
		Help: "Placement results discarded because the game was reset while they were in flight.",
	}), "riderunner_stale_placements_total"); err != nil {
		return nil, err
	}
	if c.SpeedWarnings, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "riderunner_speed_warnings_total",
		Help: "Speed warnings issued to the player.",
	}), "riderunner_speed_warnings_total"); err != nil {
		return nil, err
	}
	if c.Rewards, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "riderunner_delivery_reward_seconds",
		Help:    "Countdown seconds awarded per delivery.",
		Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 180},
	}), "riderunner_delivery_reward_seconds"); err != nil {
		return nil, err
	}
	if c.PlacementDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riderunner_placement_duration_seconds",
		Help:    "Time taken by a placement strategy to select riders.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"mode"}), "riderunner_placement_duration_seconds"); err != nil {
		return nil, err
	}
	if c.PlacedRiders, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "riderunner_placed_riders_total",
		Help: "Riders produced by placement strategies, labeled by mode.",
	}, []string{"mode"}), "riderunner_placed_riders_total"); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *GameCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetGameState marks state as current.
func (c *GameCollector) SetGameState(state string) {
	if c == nil {
		return
	}
	for _, s := range GameStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.State.WithLabelValues(s).Set(v)
	}
}

func (c *GameCollector) SetCountdown(seconds float64) {
	if c != nil {
		c.Countdown.Set(seconds)
	}
}

func (c *GameCollector) SetScore(score int) {
	if c != nil {
		c.Score.Set(float64(score))
	}
}

func (c *GameCollector) SetActiveRiders(n int) {
	if c != nil {
		c.ActiveRiders.Set(float64(n))
	}
}

func (c *GameCollector) SetFatigue(f float64) {
	if c != nil {
		c.Fatigue.Set(f)
	}
}

func (c *GameCollector) RecordPickup(tier string) {
	if c != nil {
		c.Pickups.WithLabelValues(tier).Inc()
	}
}

func (c *GameCollector) RecordDelivery(tier string, reward float64) {
	if c == nil {
		return
	}
	c.Deliveries.WithLabelValues(tier).Inc()
	c.Rewards.Observe(reward)
}

func (c *GameCollector) RecordGameOver() {
	if c != nil {
		c.GameOvers.Inc()
	}
}

func (c *GameCollector) RecordStalePlacement() {
	if c != nil {
		c.StalePlacements.Inc()
	}
}

func (c *GameCollector) RecordSpeedWarning() {
	if c != nil {
		c.SpeedWarnings.Inc()
	}
}

// ObservePlacement records how long a strategy took and how many riders it produced.
func (c *GameCollector) ObservePlacement(mode string, d time.Duration, riders int) {
	if c == nil {
		return
	}
	c.PlacementDuration.WithLabelValues(mode).Observe(d.Seconds())
	c.PlacedRiders.WithLabelValues(mode).Add(float64(riders))
}
