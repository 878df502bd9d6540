package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/riderunner/internal/config"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/internal/placement"
	"github.com/signalsfoundry/riderunner/model"
	"github.com/signalsfoundry/riderunner/timectrl"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/signalsfoundry/riderunner/internal/game")

var (
	// ErrEngineStopped is returned by commands issued after Run has exited.
	ErrEngineStopped = errors.New("engine stopped")
	// ErrEngineRunning is returned when Run is called twice.
	ErrEngineRunning = errors.New("engine already running")
)

const eventQueueSize = 64

// Ticker drives the periodic game tick. *timectrl.TimeController satisfies it.
type Ticker interface {
	AddListener(fn func(time.Time))
	Start(duration time.Duration) <-chan struct{}
	Stop()
}

// PlacementObserver receives the latency and yield of placement requests.
type PlacementObserver interface {
	ObservePlacement(mode string, d time.Duration, riders int)
}

// Engine runs a Game on a single event loop. Commands, ticks, location
// samples and placement results are all applied in arrival order by the
// goroutine executing Run, so the Game never sees concurrent calls.
type Engine struct {
	game    *Game
	env     placement.Env
	ticker  Ticker
	samples <-chan model.Sample
	observe PlacementObserver
	log     logging.Logger

	events  chan func()
	done    chan struct{}
	running atomic.Bool
	// tickEpoch counts ticker starts. Ticks carry the epoch they fired in.
	tickEpoch atomic.Uint64

	// Owned by the loop goroutine.
	runCtx   context.Context
	strategy placement.Strategy
	ticking  bool

	placements sync.WaitGroup
}

// EngineOption customises Engine construction.
type EngineOption func(*Engine)

// WithTicker replaces the default real-time ticker.
func WithTicker(t Ticker) EngineOption {
	return func(e *Engine) { e.ticker = t }
}

// WithSamples connects the location stream consumed by Run.
func WithSamples(ch <-chan model.Sample) EngineOption {
	return func(e *Engine) { e.samples = ch }
}

// WithPlacementObserver attaches placement metrics.
func WithPlacementObserver(o PlacementObserver) EngineOption {
	return func(e *Engine) { e.observe = o }
}

// WithEngineLogger sets the logger used for engine-level events.
func WithEngineLogger(l logging.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine wraps g. env supplies the collaborators used to build placement
// strategies; its zone and tunables are refreshed from the game config.
func NewEngine(g *Game, env placement.Env, opts ...EngineOption) *Engine {
	e := &Engine{
		game:   g,
		env:    env,
		events: make(chan func(), eventQueueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.Noop()
	}
	if e.env.Places == nil {
		e.env.Places = placement.NewPlaceCache()
	}
	if e.ticker == nil {
		tick := g.cfg.TickInterval
		if tick <= 0 {
			tick = config.Default().TickInterval
		}
		e.ticker = timectrl.NewTimeController(g.clock.Now(), tick, timectrl.RealTime)
	}
	e.strategy = e.buildStrategy(g.cfg)
	g.place = e.dispatch
	e.ticker.AddListener(func(time.Time) {
		e.post(e.tickFor(e.tickEpoch.Load()))
	})
	return e
}

// tickFor returns the loop event for a tick fired during epoch. A tick that
// fired before the ticker was stopped and restarted is dropped.
func (e *Engine) tickFor(epoch uint64) func() {
	return func() {
		if !e.ticking || epoch != e.tickEpoch.Load() {
			return
		}
		e.game.Tick(e.runCtx)
		e.syncTicker()
	}
}

// Run executes the event loop until ctx is cancelled. Commands queued before
// Run starts are applied once it does.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrEngineRunning
	}
	e.runCtx = ctx
	defer func() {
		e.ticker.Stop()
		close(e.done)
		e.placements.Wait()
	}()

	e.log.Info(ctx, "engine started",
		logging.String("zone", e.game.zone.Name),
		logging.String("placement", string(e.strategy.Mode())),
		logging.Int("target_riders", e.game.TargetRiders()),
	)
	samples := e.samples
	for {
		select {
		case <-ctx.Done():
			e.log.Info(context.Background(), "engine stopped")
			return ctx.Err()
		case fn := <-e.events:
			fn()
		case s, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			e.game.HandleLocation(ctx, s)
		}
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} { return e.done }

// post queues fn on the loop. It gives up once the loop has exited.
func (e *Engine) post(fn func()) bool {
	select {
	case e.events <- fn:
		return true
	case <-e.done:
		return false
	}
}

// do runs fn on the loop and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case e.events <- func() { fn(); close(finished) }:
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) command(ctx context.Context, fn func(context.Context)) (Snapshot, error) {
	var snap Snapshot
	err := e.do(ctx, func() {
		fn(e.runCtx)
		e.syncTicker()
		snap = e.game.Snapshot()
	})
	return snap, err
}

// Start begins or continues play. Calls in the wrong state return the
// unchanged snapshot.
func (e *Engine) Start(ctx context.Context) (Snapshot, error) {
	return e.command(ctx, func(c context.Context) { e.game.Start(c) })
}

// Pause freezes the countdown.
func (e *Engine) Pause(ctx context.Context) (Snapshot, error) {
	return e.command(ctx, func(c context.Context) { e.game.Pause(c) })
}

// Resume continues a paused game.
func (e *Engine) Resume(ctx context.Context) (Snapshot, error) {
	return e.command(ctx, func(c context.Context) { e.game.Resume(c) })
}

// Reset returns to Ready with a fresh session.
func (e *Engine) Reset(ctx context.Context) (Snapshot, error) {
	return e.command(ctx, e.game.Reset)
}

// HandleLocation applies one sample directly, bypassing the stream.
func (e *Engine) HandleLocation(ctx context.Context, s model.Sample) (Snapshot, error) {
	return e.command(ctx, func(c context.Context) { e.game.HandleLocation(c, s) })
}

// Snapshot returns the current observable state.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	return e.command(ctx, func(context.Context) {})
}

// PlacementMode reports the active strategy.
func (e *Engine) PlacementMode(ctx context.Context) (placement.Mode, error) {
	var mode placement.Mode
	err := e.do(ctx, func() { mode = e.strategy.Mode() })
	return mode, err
}

// SetStrategy swaps the placement strategy. Requests already in flight
// finish with the strategy they started with.
func (e *Engine) SetStrategy(ctx context.Context, s placement.Strategy) error {
	if s == nil {
		return fmt.Errorf("set strategy: nil strategy")
	}
	return e.do(ctx, func() {
		e.strategy = s
		e.log.Info(e.runCtx, "placement strategy changed", logging.String("mode", string(s.Mode())))
	})
}

// SetPlacementMode rebuilds the strategy for mode and records it in the
// game config.
func (e *Engine) SetPlacementMode(ctx context.Context, mode placement.Mode) (Snapshot, error) {
	var snap Snapshot
	err := e.do(ctx, func() {
		cfg := e.game.Config()
		cfg.PlacementMode = string(mode)
		e.applyConfig(cfg)
		snap = e.game.Snapshot()
	})
	return snap, err
}

// ApplyConfig validates cfg, hands it to the game and rebuilds the
// placement strategy from it. The tick interval is fixed for the life of the
// engine; a config that changes it is rejected.
func (e *Engine) ApplyConfig(ctx context.Context, cfg config.Game) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	var rejected error
	err := e.do(ctx, func() {
		if running := e.game.cfg.TickInterval; cfg.TickInterval != running {
			rejected = fmt.Errorf("%w: tickInterval cannot change from %v to %v", config.ErrInvalidConfig, running, cfg.TickInterval)
			return
		}
		e.applyConfig(cfg)
	})
	if err != nil {
		return err
	}
	return rejected
}

func (e *Engine) applyConfig(cfg config.Game) {
	e.game.SetConfig(cfg)
	e.strategy = e.buildStrategy(cfg)
	e.log.Info(e.runCtx, "config applied", logging.String("placement", string(e.strategy.Mode())))
}

// Settle waits until every placement requested for the current generation
// has been applied. Tests and the headless simulator use it to make runs
// reproducible.
func (e *Engine) Settle(ctx context.Context) error {
	poll := time.NewTicker(2 * time.Millisecond)
	defer poll.Stop()
	for {
		var pending int
		if err := e.do(ctx, func() { pending = e.game.pending }); err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		select {
		case <-poll.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) buildStrategy(cfg config.Game) placement.Strategy {
	env := e.env
	env.Zone = e.game.zone
	env.Chances = cfg.TierChances
	env.MinPlayerDistance = cfg.MinSpawnDistanceFromPlayer
	env.CacheTTL = cfg.POICacheTTL
	env.Catalog = cfg.Curated
	return placement.New(placement.ParseMode(cfg.PlacementMode), env)
}

// syncTicker starts or stops the ticker to match the game state.
func (e *Engine) syncTicker() {
	playing := e.game.State() == Playing
	switch {
	case playing && !e.ticking:
		e.tickEpoch.Add(1)
		e.ticker.Start(0)
		e.ticking = true
	case !playing && e.ticking:
		e.ticker.Stop()
		e.ticking = false
	}
}

// dispatch runs a placement request off the loop and posts the result back.
// It is installed as the game's Placer and only called from the loop.
func (e *Engine) dispatch(req PlacementRequest) {
	strategy := e.strategy
	ctx := e.runCtx
	e.placements.Add(1)
	go func() {
		defer e.placements.Done()
		started := time.Now()
		ctx, span := tracer.Start(ctx, "game.placement", trace.WithAttributes(
			attribute.String("placement.mode", string(strategy.Mode())),
			attribute.Int("placement.count", req.Count),
			attribute.Int64("placement.generation", int64(req.Generation)),
			attribute.Bool("placement.initial", req.Initial),
		))
		riders := strategy.SelectRiders(ctx, placement.Request{
			Count:    req.Count,
			Existing: req.Existing,
			Near:     req.Near,
		})
		span.SetAttributes(attribute.Int("placement.riders", len(riders)))
		if len(riders) < req.Count {
			span.SetStatus(codes.Error, "placement returned fewer riders than requested")
		}
		span.End()
		if e.observe != nil {
			e.observe.ObservePlacement(string(strategy.Mode()), time.Since(started), len(riders))
		}

		e.post(func() {
			e.game.ApplyPlacement(e.runCtx, PlacementResult{Request: req, Riders: riders})
			e.syncTicker()
		})
	}()
}
