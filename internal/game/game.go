// Package game implements the delivery game simulation: a countdown-driven
// state machine (Game) and the single-threaded runner that feeds it ticks,
// location samples and asynchronous rider placements (Engine).
package game

import (
	"context"
	"math"
	"time"

	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/internal/config"
	"github.com/signalsfoundry/riderunner/internal/feedback"
	"github.com/signalsfoundry/riderunner/internal/location"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/internal/store"
	"github.com/signalsfoundry/riderunner/model"
	"github.com/signalsfoundry/riderunner/timectrl"
)

const (
	// destinationPointAttempts bounds rejection sampling for one candidate
	// destination before the polygon centroid is used instead.
	destinationPointAttempts = 1000
	// destinationAttempts bounds the search for a destination whose trip
	// length falls inside the configured range.
	destinationAttempts = 100
	// tenSecondMark is the countdown value that triggers the warning cue.
	tenSecondMark = 10.0
)

// State is the engine lifecycle state.
type State int

const (
	Ready State = iota
	Playing
	Paused
	GameOver
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case GameOver:
		return "game_over"
	default:
		return "ready"
	}
}

// MarshalText renders the state by name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PlacementRequest asks for Count new riders on behalf of generation
// Generation. Initial marks the spawn issued when a game starts.
type PlacementRequest struct {
	Generation uint64
	Count      int
	Existing   []model.Rider
	Near       *geo.Coordinate
	Initial    bool
}

// PlacementResult carries the riders produced for a request back to the Game.
type PlacementResult struct {
	Request PlacementRequest
	Riders  []model.Rider
}

// Placer dispatches a placement request. It must not block; the result is
// delivered later through Game.ApplyPlacement.
type Placer func(PlacementRequest)

// LocationSource is the device-location collaborator.
type LocationSource interface {
	SetMode(location.Mode)
	Current() (geo.Coordinate, bool)
}

// MetricsRecorder receives engine gauges and counters.
type MetricsRecorder interface {
	SetGameState(state string)
	SetCountdown(seconds float64)
	SetScore(score int)
	SetActiveRiders(n int)
	SetFatigue(f float64)
	RecordPickup(tier string)
	RecordDelivery(tier string, reward float64)
	RecordGameOver()
	RecordStalePlacement()
	RecordSpeedWarning()
}

// Snapshot is a consistent copy of the observable game state.
type Snapshot struct {
	State         State             `json:"state"`
	Countdown     float64           `json:"countdown"`
	Score         int               `json:"score"`
	Fatigue       float64           `json:"fatigue"`
	Riders        []model.Rider     `json:"riders"`
	Delivery      *model.Delivery   `json:"delivery,omitempty"`
	Session       model.GameSession `json:"session"`
	Generation    uint64            `json:"generation"`
	TargetRiders  int               `json:"targetRiders"`
	PendingRiders int               `json:"pendingRiders"`
}

// Game is the simulation state machine. It is not safe for concurrent use;
// Engine serialises every call onto one goroutine.
type Game struct {
	cfg   config.Game
	zone  model.Zone
	poly  geo.Polygon
	clock timectrl.Clock
	rnd   *geo.Rand

	baseLog  logging.Logger
	log      logging.Logger
	feedback feedback.Sink
	sessions store.Sessions
	location LocationSource
	metrics  MetricsRecorder
	place    Placer

	state     State
	countdown float64
	score     int
	fatigue   float64
	riders    []model.Rider
	delivery  *model.Delivery
	dwell     dwellTracker
	session   model.GameSession

	generation uint64
	pending    int

	speed          location.SpeedGuard
	lastSpeedAlert time.Time
}

// Option customises Game construction.
type Option func(*Game)

// WithFeedback attaches the feedback sink.
func WithFeedback(s feedback.Sink) Option {
	return func(g *Game) { g.feedback = s }
}

// WithSessionStore attaches best-effort session persistence.
func WithSessionStore(s store.Sessions) Option {
	return func(g *Game) { g.sessions = s }
}

// WithLocation attaches the location collaborator whose mode follows the
// game state.
func WithLocation(l LocationSource) Option {
	return func(g *Game) { g.location = l }
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(g *Game) { g.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(l logging.Logger) Option {
	return func(g *Game) { g.baseLog = l }
}

// WithRand fixes the random source used for destinations.
func WithRand(r *geo.Rand) Option {
	return func(g *Game) { g.rnd = r }
}

// WithPlacer sets the placement dispatcher. Without one, requests are dropped.
func WithPlacer(p Placer) Option {
	return func(g *Game) { g.place = p }
}

// New builds a Ready game on zone.
func New(zone model.Zone, cfg config.Game, clock timectrl.Clock, opts ...Option) *Game {
	if clock == nil {
		clock = timectrl.WallClock{}
	}
	g := &Game{
		cfg:   cfg,
		zone:  zone,
		poly:  zone.Polygon(),
		clock: clock,
		dwell: dwellTracker{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.baseLog == nil {
		g.baseLog = logging.Noop()
	}
	if g.feedback == nil {
		g.feedback = feedback.Nop{}
	}
	if g.rnd == nil {
		g.rnd = geo.NewRand(cfg.Seed)
	}
	g.resetState()
	return g
}

// Config returns the tunables in effect.
func (g *Game) Config() config.Game { return g.cfg }

// SetConfig swaps the tunables. Values already applied (the current
// countdown, a delivery in progress) are left alone.
func (g *Game) SetConfig(cfg config.Game) {
	g.cfg = cfg
}

// Zone returns the zone being played.
func (g *Game) Zone() model.Zone { return g.zone }

// State returns the lifecycle state.
func (g *Game) State() State { return g.state }

// Countdown returns the remaining time in seconds.
func (g *Game) Countdown() float64 { return g.countdown }

// Generation identifies the current session for placement results.
func (g *Game) Generation() uint64 { return g.generation }

// TargetRiders is the rider population the zone should carry.
func (g *Game) TargetRiders() int {
	return g.zone.InitialRiderCount(g.cfg.AreaPerRider)
}

// Snapshot copies the observable state.
func (g *Game) Snapshot() Snapshot {
	snap := Snapshot{
		State:         g.state,
		Countdown:     g.countdown,
		Score:         g.score,
		Fatigue:       g.fatigue,
		Riders:        append([]model.Rider{}, g.riders...),
		Session:       g.session.Clone(),
		Generation:    g.generation,
		TargetRiders:  g.TargetRiders(),
		PendingRiders: g.pending,
	}
	if g.delivery != nil {
		d := g.delivery.Clone()
		snap.Delivery = &d
	}
	return snap
}

// Start begins play from Ready or continues it from Paused. It reports
// whether the call changed anything.
func (g *Game) Start(ctx context.Context) bool {
	switch g.state {
	case Ready:
		g.session = model.NewSession(g.zone, g.clock.Now())
		g.session.MaxCountdown = g.countdown
		g.log = logging.ForSession(g.baseLog, g.session.ID)
		g.feedback.GameStarted()
		g.persist(ctx)
		g.requestRiders(g.TargetRiders()-g.pending, nil, true)
	case Paused:
		g.feedback.Resumed()
	default:
		return false
	}
	g.state = Playing
	g.setLocationMode(location.Follow)
	g.log.Info(ctx, "game playing", logging.Float("countdown", g.countdown))
	g.publish()
	return true
}

// Pause freezes the countdown. Only valid while Playing.
func (g *Game) Pause(ctx context.Context) bool {
	if g.state != Playing {
		return false
	}
	g.state = Paused
	g.setLocationMode(location.Idle)
	g.feedback.Paused()
	g.log.Info(ctx, "game paused", logging.Float("countdown", g.countdown))
	g.publish()
	return true
}

// Resume continues a paused game. Only valid while Paused.
func (g *Game) Resume(ctx context.Context) bool {
	if g.state != Paused {
		return false
	}
	return g.Start(ctx)
}

// Reset abandons the current game and returns to Ready with a fresh
// session. Placement results issued before the reset are discarded.
func (g *Game) Reset(ctx context.Context) {
	g.setLocationMode(location.Idle)
	g.resetState()
	if g.sessions != nil {
		if err := g.sessions.ClearCurrent(ctx); err != nil {
			g.log.Warn(ctx, "failed to clear current session", logging.Err(err))
		}
	}
	g.log.Info(ctx, "game reset")
	g.publish()
}

func (g *Game) resetState() {
	now := g.clock.Now()
	g.state = Ready
	g.countdown = g.cfg.StartTime
	g.score = 0
	g.fatigue = 1
	g.riders = nil
	g.delivery = nil
	g.dwell.reset()
	g.speed.Reset()
	g.lastSpeedAlert = time.Time{}
	g.generation++
	g.pending = 0
	g.session = model.NewSession(g.zone, now)
	g.session.MaxCountdown = g.countdown
	g.log = logging.ForSession(g.baseLog, g.session.ID)
}

// Tick advances the countdown by one tick interval. It does nothing unless
// the game is Playing with time left.
func (g *Game) Tick(ctx context.Context) {
	if g.state != Playing || g.countdown <= 0 {
		return
	}
	g.countdown = math.Max(0, g.countdown-g.cfg.TickInterval.Seconds())
	if g.countdown <= 0 {
		g.gameOver(ctx)
		return
	}

	now := g.clock.Now()
	g.despawn(now)
	g.topUp()
	g.persist(ctx)

	if g.countdown <= tenSecondMark && g.countdown > tenSecondMark-g.cfg.TickInterval.Seconds() {
		g.feedback.TenSecondsRemaining()
	}
	g.publish()
}

func (g *Game) gameOver(ctx context.Context) {
	now := g.clock.Now()
	g.state = GameOver
	g.setLocationMode(location.Idle)
	g.session.EndTime = &now
	g.session.Score = g.score
	g.persist(ctx)
	g.feedback.GameOver(g.score)
	if g.metrics != nil {
		g.metrics.RecordGameOver()
	}
	g.log.Info(ctx, "game over",
		logging.Int("score", g.score),
		logging.Int("deliveries", len(g.session.Deliveries)),
		logging.Float("max_countdown", g.session.MaxCountdown),
	)
	g.publish()
}

// HandleLocation processes one location sample. Every sample feeds the
// speed guard; pickups and drop-offs are only detected while Playing.
func (g *Game) HandleLocation(ctx context.Context, s model.Sample) {
	now := g.clock.Now()
	if g.cfg.SpeedGuardEnabled && g.speed.Observe(s, g.cfg.MaxSpeed) && g.state == Playing {
		if now.Sub(g.lastSpeedAlert) > g.cfg.SpeedWarningCooldown {
			g.lastSpeedAlert = now
			g.feedback.SpeedWarning()
			if g.metrics != nil {
				g.metrics.RecordSpeedWarning()
			}
			g.log.Debug(ctx, "speed warning", logging.Float("avg_speed", g.speed.Average()))
		}
	}
	if g.state != Playing {
		return
	}

	if g.delivery != nil {
		if s.Coordinate.DistanceTo(g.delivery.Destination) <= g.cfg.DropRadiusM() {
			g.complete(ctx, now)
		}
		return
	}

	var picked *model.Rider
	for i := range g.riders {
		r := g.riders[i]
		if s.Coordinate.DistanceTo(r.Coordinate) > g.cfg.PickupRadius {
			g.dwell.leave(r.ID)
			continue
		}
		if since, ok := g.dwell.since(r.ID); ok {
			if now.Sub(since) >= g.cfg.PickupDwellTime {
				picked = &r
				break
			}
			continue
		}
		g.dwell.enter(r.ID, now)
	}
	if picked != nil {
		g.pickup(ctx, *picked, now)
	}
}

func (g *Game) pickup(ctx context.Context, r model.Rider, now time.Time) {
	g.removeRider(r.ID)
	g.addTime(g.cfg.PickupBonus)
	g.feedback.Pickup(r)

	d := model.NewDelivery(r, g.destination(ctx, r.Coordinate), now)
	g.delivery = &d
	g.dwell.reset()

	if g.metrics != nil {
		g.metrics.RecordPickup(string(r.Tier))
	}
	g.log.Info(ctx, "rider picked up",
		logging.String("rider_id", r.ID),
		logging.String("tier", string(r.Tier)),
		logging.Float("trip_m", d.TripDistance()),
	)
	g.publish()
}

func (g *Game) complete(ctx context.Context, now time.Time) {
	d := *g.delivery
	d.DropoffTime = &now
	d.Reward = ComputeReward(g.cfg, d, g.fatigue)

	g.score++
	g.addTime(d.Reward)
	g.fatigue *= g.cfg.FatigueRate
	g.delivery = nil
	g.session.Deliveries = append(g.session.Deliveries, d)
	g.session.Score = g.score

	g.feedback.Dropoff(int(d.Reward))
	if g.metrics != nil {
		g.metrics.RecordDelivery(string(d.Rider.Tier), d.Reward)
	}
	g.log.Info(ctx, "delivery complete",
		logging.String("delivery_id", d.ID),
		logging.Float("reward", d.Reward),
		logging.Float("fatigue", g.fatigue),
		logging.Int("score", g.score),
	)
	g.topUp()
	g.publish()
}

// ComputeReward prices a completed delivery in countdown seconds:
// (base + travel + buffer) x fatigue x tier multiplier, where travel is the
// trip time at AvgBikeSpeed and buffer is a quarter of it, at least 5s.
func ComputeReward(cfg config.Game, d model.Delivery, fatigue float64) float64 {
	travel := d.EstimatedTravelTime(cfg.AvgBikeSpeed)
	buffer := math.Max(5, travel*0.25)
	return (cfg.TierRewards.For(d.Rider.Tier) + travel + buffer) * fatigue * d.Rider.Tier.Multiplier()
}

// destination picks a drop-off point inside the zone whose distance from
// start lies within the trip range, settling for the last candidate when
// none qualifies.
func (g *Game) destination(ctx context.Context, start geo.Coordinate) geo.Coordinate {
	var c geo.Coordinate
	for attempt := 0; attempt < destinationAttempts; attempt++ {
		var ok bool
		c, ok = geo.RandomPointIn(g.poly, g.rnd, destinationPointAttempts)
		if !ok {
			c = g.poly.Centroid()
		}
		if d := start.DistanceTo(c); d >= g.cfg.MinTripDistance && d <= g.cfg.MaxTripDistance {
			return c
		}
	}
	g.log.Warn(ctx, "no destination within trip range",
		logging.Int("attempts", destinationAttempts),
		logging.Float("min_m", g.cfg.MinTripDistance),
		logging.Float("max_m", g.cfg.MaxTripDistance),
	)
	return c
}

// ApplyPlacement adds the riders produced for an earlier request and
// returns how many joined the active set. Results from a previous
// generation are dropped, and a result never adds more riders than its
// request asked for.
func (g *Game) ApplyPlacement(ctx context.Context, res PlacementResult) int {
	if res.Request.Generation != g.generation {
		if g.metrics != nil {
			g.metrics.RecordStalePlacement()
		}
		g.log.Debug(ctx, "discarding stale placement",
			logging.Int("riders", len(res.Riders)),
			logging.Any("generation", res.Request.Generation),
		)
		return 0
	}
	g.pending = max(0, g.pending-res.Request.Count)
	if g.state == GameOver {
		return 0
	}

	added := 0
	for _, r := range res.Riders {
		if added >= res.Request.Count {
			break
		}
		if g.hasRider(r.ID) {
			continue
		}
		g.riders = append(g.riders, r)
		added++
	}
	g.log.Debug(ctx, "riders placed", logging.Int("added", added), logging.Int("active", len(g.riders)))
	g.publish()
	return added
}

// topUp requests enough riders to bring the active set, plus requests
// still in flight, up to the target.
func (g *Game) topUp() {
	deficit := g.TargetRiders() - len(g.riders) - g.pending
	if deficit > 0 {
		g.requestRiders(deficit, append([]model.Rider(nil), g.riders...), false)
	}
}

func (g *Game) requestRiders(count int, existing []model.Rider, initial bool) {
	if count <= 0 || g.place == nil {
		return
	}
	req := PlacementRequest{
		Generation: g.generation,
		Count:      count,
		Existing:   existing,
		Initial:    initial,
	}
	if g.location != nil {
		if c, ok := g.location.Current(); ok {
			req.Near = &c
		}
	}
	g.pending += count
	g.place(req)
}

func (g *Game) despawn(now time.Time) {
	kept := g.riders[:0]
	for _, r := range g.riders {
		if r.ShouldDespawn(now, g.cfg.RiderLifetime) {
			g.dwell.leave(r.ID)
			continue
		}
		kept = append(kept, r)
	}
	clear(g.riders[len(kept):])
	g.riders = kept
}

func (g *Game) hasRider(id string) bool {
	for _, r := range g.riders {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (g *Game) removeRider(id string) {
	for i, r := range g.riders {
		if r.ID == id {
			g.riders = append(g.riders[:i], g.riders[i+1:]...)
			return
		}
	}
}

func (g *Game) addTime(seconds float64) {
	g.countdown += seconds
	g.session.MaxCountdown = math.Max(g.session.MaxCountdown, g.countdown)
}

func (g *Game) setLocationMode(m location.Mode) {
	if g.location != nil {
		g.location.SetMode(m)
	}
}

func (g *Game) persist(ctx context.Context) {
	if g.sessions == nil {
		return
	}
	if err := g.sessions.Save(ctx, g.session.Clone()); err != nil {
		g.log.Warn(ctx, "failed to save session", logging.Err(err))
	}
}

func (g *Game) publish() {
	if g.metrics == nil {
		return
	}
	g.metrics.SetGameState(g.state.String())
	g.metrics.SetCountdown(g.countdown)
	g.metrics.SetScore(g.score)
	g.metrics.SetActiveRiders(len(g.riders))
	g.metrics.SetFatigue(g.fatigue)
}

// dwellTracker remembers when the player entered each rider's pickup
// radius. A missing entry means the player is not touching that rider.
type dwellTracker map[string]time.Time

func (d dwellTracker) enter(id string, now time.Time) { d[id] = now }

func (d dwellTracker) leave(id string) { delete(d, id) }

func (d dwellTracker) since(id string) (time.Time, bool) {
	t, ok := d[id]
	return t, ok
}

func (d dwellTracker) reset() { clear(d) }
