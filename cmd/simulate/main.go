// Command simulate plays a headless game in accelerated time: a scripted
// courier walks to the nearest rider, carries them to their destination and
// repeats until the countdown runs out.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/internal/config"
	"github.com/signalsfoundry/riderunner/internal/feedback"
	"github.com/signalsfoundry/riderunner/internal/game"
	"github.com/signalsfoundry/riderunner/internal/location"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/internal/placement"
	"github.com/signalsfoundry/riderunner/internal/poi"
	"github.com/signalsfoundry/riderunner/model"
	"github.com/signalsfoundry/riderunner/timectrl"
)

// Options controls one simulated run.
type Options struct {
	Config   config.Game
	Duration time.Duration
	Speedup  float64
	// Speed is the courier's walking pace in m/s.
	Speed      float64
	PrintEvery time.Duration
	Searcher   poi.Searcher
	Log        logging.Logger
}

// Result summarises a finished run.
type Result struct {
	State      game.State
	Score      int
	Countdown  float64
	Deliveries int
	Ticks      int
	SimTime    time.Duration
}

func main() {
	duration := flag.Duration("duration", 15*time.Minute, "maximum simulated time")
	speedup := flag.Float64("speedup", 100, "how much faster than wall-clock to run")
	speed := flag.Float64("speed", 4, "courier speed in m/s")
	mode := flag.String("placement", "random", "rider placement mode: random, curated or smart")
	seed := flag.Uint64("seed", 1, "random seed; 0 seeds from the clock")
	printEvery := flag.Duration("print-every", 10*time.Second, "simulated interval between status lines")
	cfgPath := flag.String("config", "", "YAML or JSON file overriding the game tuning")
	flag.Parse()

	log := logging.NewFromEnv()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.PlacementMode = *mode
	cfg.Seed = *seed

	res, err := simulate(context.Background(), Options{
		Config:     cfg,
		Duration:   *duration,
		Speedup:    *speedup,
		Speed:      *speed,
		PrintEvery: *printEvery,
		Searcher:   poi.NewOverpass("", poi.WithLogger(log)),
		Log:        log,
	}, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Simulation complete: state=%s score=%d deliveries=%d countdown=%.1fs after %s (%d ticks)\n",
		res.State, res.Score, res.Deliveries, res.Countdown, res.SimTime, res.Ticks)
}

// courier is the scripted player. It doubles as the game's location source.
type courier struct {
	pos  geo.Coordinate
	mode location.Mode
}

func (c *courier) SetMode(m location.Mode)          { c.mode = m }
func (c *courier) Current() (geo.Coordinate, bool) { return c.pos, true }

// walk moves up to step metres towards target.
func (c *courier) walk(target geo.Coordinate, step float64) {
	d := c.pos.DistanceTo(target)
	if d <= step || d == 0 {
		c.pos = target
		return
	}
	f := step / d
	c.pos = geo.Coordinate{
		Lat: c.pos.Lat + (target.Lat-c.pos.Lat)*f,
		Lon: c.pos.Lon + (target.Lon-c.pos.Lon)*f,
	}
}

// target picks the destination of the active delivery, else the nearest rider.
func (c *courier) target(snap game.Snapshot) (geo.Coordinate, bool) {
	if snap.Delivery != nil {
		return snap.Delivery.Destination, true
	}
	best, found := geo.Coordinate{}, false
	bestDist := 0.0
	for _, r := range snap.Riders {
		if d := c.pos.DistanceTo(r.Coordinate); !found || d < bestDist {
			best, bestDist, found = r.Coordinate, d, true
		}
	}
	return best, found
}

// simulate runs one game to completion, or until opts.Duration of simulated
// time has passed. Placement runs inline between ticks.
func simulate(ctx context.Context, opts Options, out io.Writer) (Result, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if opts.Log == nil {
		opts.Log = logging.Noop()
	}
	if opts.Speed <= 0 {
		opts.Speed = 4
	}

	start := time.Date(2025, time.June, 14, 9, 0, 0, 0, time.UTC)
	tc := timectrl.NewTimeController(start, cfg.TickInterval, timectrl.Accelerated)
	if opts.Speedup > 0 {
		tc.Speedup = opts.Speedup
	}

	zone, err := model.NewZone("Fort Mason", config.FortMasonZone(), cfg.MinZoneAreaKm2, start)
	if err != nil {
		return Result{}, err
	}
	rnd := geo.NewRand(cfg.Seed)
	strategy := placement.New(placement.ParseMode(cfg.PlacementMode),
		placement.EnvFromConfig(zone, cfg, opts.Searcher, rnd, tc, opts.Log))

	bot := &courier{pos: zone.Polygon().Centroid()}
	events := &feedback.Recorder{}
	var queue []game.PlacementRequest
	g := game.New(zone, cfg, tc,
		game.WithFeedback(feedback.Multi{events, feedback.NewLog(opts.Log)}),
		game.WithLocation(bot),
		game.WithRand(rnd),
		game.WithLogger(opts.Log),
		game.WithPlacer(func(req game.PlacementRequest) { queue = append(queue, req) }),
	)
	drain := func() {
		for len(queue) > 0 {
			req := queue[0]
			queue = queue[1:]
			riders := strategy.SelectRiders(ctx, placement.Request{Count: req.Count, Existing: req.Existing, Near: req.Near})
			g.ApplyPlacement(ctx, game.PlacementResult{Request: req, Riders: riders})
		}
	}

	fmt.Fprintf(out, "Starting simulation: zone=%q area=%.3fkm² riders=%d placement=%s tick=%s speedup=%.0fx\n",
		zone.Name, zone.AreaKm2(), g.TargetRiders(), strategy.Mode(), cfg.TickInterval, tc.Speedup)
	g.Start(ctx)
	drain()

	res := Result{}
	step := opts.Speed * cfg.TickInterval.Seconds()
	lastPrint := start
	tc.AddListener(func(now time.Time) {
		res.Ticks++
		if target, ok := bot.target(g.Snapshot()); ok {
			bot.walk(target, step)
		}
		g.HandleLocation(ctx, model.Sample{
			Coordinate:         bot.pos,
			Speed:              opts.Speed,
			HorizontalAccuracy: 5,
			Timestamp:          now,
		})
		g.Tick(ctx)
		drain()

		snap := g.Snapshot()
		if opts.PrintEvery > 0 && now.Sub(lastPrint) >= opts.PrintEvery {
			lastPrint = now
			carrying := "-"
			if snap.Delivery != nil {
				carrying = fmt.Sprintf("%s %.0fm", snap.Delivery.Rider.Tier, bot.pos.DistanceTo(snap.Delivery.Destination))
			}
			fmt.Fprintf(out, "[%s] %-8s countdown=%6.1fs score=%3d riders=%2d fatigue=%.3f carrying=%s\n",
				now.Sub(start), snap.State, snap.Countdown, snap.Score, len(snap.Riders), snap.Fatigue, carrying)
		}
		if snap.State == game.GameOver || ctx.Err() != nil {
			tc.Stop()
		}
	})

	done := tc.Start(opts.Duration)
	select {
	case <-done:
	case <-ctx.Done():
		tc.Stop()
		<-done
	}

	snap := g.Snapshot()
	res.State = snap.State
	res.Score = snap.Score
	res.Countdown = snap.Countdown
	res.Deliveries = events.Count("dropoff")
	res.SimTime = tc.Now().Sub(start)
	return res, ctx.Err()
}
