package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/internal/config"
	"github.com/signalsfoundry/riderunner/internal/control"
	"github.com/signalsfoundry/riderunner/internal/feedback"
	"github.com/signalsfoundry/riderunner/internal/game"
	"github.com/signalsfoundry/riderunner/internal/httpapi"
	"github.com/signalsfoundry/riderunner/internal/location"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/internal/observability"
	"github.com/signalsfoundry/riderunner/internal/placement"
	"github.com/signalsfoundry/riderunner/internal/poi"
	"github.com/signalsfoundry/riderunner/internal/store"
	"github.com/signalsfoundry/riderunner/model"
	"github.com/signalsfoundry/riderunner/timectrl"
	"google.golang.org/grpc"
)

func main() {
	srvCfg := config.DefaultServer()
	srvCfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srvCfg.Validate(); err != nil {
		log.Error(ctx, "invalid flags", logging.Err(err))
		os.Exit(2)
	}
	gameCfg, err := config.Load(srvCfg.ConfigPath)
	if err != nil {
		log.Error(ctx, "failed to load game config", logging.String("path", srvCfg.ConfigPath), logging.Err(err))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	var grpcLis, httpLis net.Listener
	if srvCfg.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", srvCfg.GRPCAddr); err != nil {
			log.Error(ctx, "failed to listen for gRPC", logging.String("addr", srvCfg.GRPCAddr), logging.Err(err))
			os.Exit(1)
		}
	}
	if srvCfg.HTTPAddr != "" {
		if httpLis, err = net.Listen("tcp", srvCfg.HTTPAddr); err != nil {
			log.Error(ctx, "failed to listen for HTTP", logging.String("addr", srvCfg.HTTPAddr), logging.Err(err))
			os.Exit(1)
		}
	}

	if err := run(ctx, srvCfg, gameCfg, log, grpcLis, httpLis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. A nil listener disables that surface.
func run(ctx context.Context, srvCfg config.Server, gameCfg config.Game, log logging.Logger, grpcLis, httpLis net.Listener) error {
	if srvCfg.PlacementMode != "" {
		gameCfg.PlacementMode = srvCfg.PlacementMode
	}
	clock := timectrl.WallClock{}

	reg := prometheus.NewRegistry()
	gameMetrics, err := observability.NewGameCollector(reg)
	if err != nil {
		return fmt.Errorf("game metrics: %w", err)
	}
	controlMetrics, err := observability.NewControlCollector(reg)
	if err != nil {
		return fmt.Errorf("control metrics: %w", err)
	}

	st, err := store.OpenSQLite(srvCfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	zone, err := selectZone(ctx, st, srvCfg.ZoneID, gameCfg, clock)
	if err != nil {
		return err
	}
	if prev, err := st.LoadCurrent(ctx); err == nil && prev.IsActive() {
		log.Warn(ctx, "previous session was left open", logging.String("session_id", prev.ID), logging.Int("score", prev.Score))
	}

	feed := location.NewFeed(clock, 64)
	defer feed.Close()

	sinks := feedback.Multi{feedback.NewLog(log)}
	if srvCfg.Speaker {
		player, err := openSpeaker()
		if err != nil {
			log.Warn(ctx, "audio cues disabled", logging.Err(err))
		} else {
			sinks = append(sinks, feedback.NewTones(player, srvCfg.Volume))
		}
	}

	rnd := geo.NewRand(gameCfg.Seed)
	searcher := poi.NewOverpass(srvCfg.OverpassURL, poi.WithLogger(log))
	g := game.New(zone, gameCfg, clock,
		game.WithFeedback(sinks),
		game.WithSessionStore(st),
		game.WithLocation(feed),
		game.WithMetricsRecorder(gameMetrics),
		game.WithLogger(log),
		game.WithRand(rnd),
	)
	engine := game.NewEngine(g, placement.EnvFromConfig(zone, gameCfg, searcher, rnd, clock, log),
		game.WithSamples(feed.Samples()),
		game.WithPlacementObserver(gameMetrics),
		game.WithEngineLogger(log),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 3)
	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("engine: %w", err)
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := reloadConfig(ctx, engine, srvCfg); err != nil {
					log.Warn(ctx, "config reload rejected", logging.Err(err))
					continue
				}
				log.Info(ctx, "config reloaded", logging.String("path", srvCfg.ConfigPath))
			}
		}
	}()

	log.Info(ctx, "playing zone",
		logging.String("zone_id", zone.ID),
		logging.String("name", zone.Name),
		logging.Float("area_km2", zone.AreaKm2()),
		logging.Int("target_riders", g.TargetRiders()),
		logging.String("placement", gameCfg.PlacementMode),
	)

	var grpcSrv *grpc.Server
	if grpcLis != nil {
		grpcSrv = control.NewServer(control.NewService(engine, feed, log), log, controlMetrics)
		log.Info(ctx, "starting control gRPC server", logging.String("addr", grpcLis.Addr().String()))
		go func() {
			if err := grpcSrv.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	var httpSrv *http.Server
	if httpLis != nil {
		api := httpapi.NewServer(engine, st,
			httpapi.WithLocationFeed(feed),
			httpapi.WithMetricsHandler(gameMetrics.Handler()),
			httpapi.WithControlMetrics(controlMetrics),
			httpapi.WithLogger(log),
			httpapi.WithClock(clock),
			httpapi.WithMinZoneArea(gameCfg.MinZoneAreaKm2),
		)
		httpSrv = &http.Server{Handler: api.Routes(), ReadHeaderTimeout: 10 * time.Second}
		log.Info(ctx, "starting HTTP server", logging.String("addr", httpLis.Addr().String()))
		go func() {
			if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	log.Info(context.Background(), "shutting down")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer stop()
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "HTTP shutdown incomplete", logging.Err(err))
		}
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	select {
	case <-engine.Done():
	case <-shutdownCtx.Done():
		log.Warn(shutdownCtx, "engine did not stop in time")
	}
	return runErr
}

// reloadConfig rereads the game config file and applies it to the running
// engine.
func reloadConfig(ctx context.Context, engine *game.Engine, srvCfg config.Server) error {
	cfg, err := config.Load(srvCfg.ConfigPath)
	if err != nil {
		return err
	}
	if srvCfg.PlacementMode != "" {
		cfg.PlacementMode = srvCfg.PlacementMode
	}
	return engine.ApplyConfig(ctx, cfg)
}

// selectZone loads the zone named by id, or falls back to the built-in Fort
// Mason zone, which is saved to the catalog on first use.
func selectZone(ctx context.Context, zones store.Zones, id string, cfg config.Game, clock timectrl.Clock) (model.Zone, error) {
	if id != "" {
		z, err := zones.GetZone(ctx, id)
		if err != nil {
			return model.Zone{}, fmt.Errorf("select zone: %w", err)
		}
		return z, nil
	}

	saved, err := zones.ListZones(ctx)
	if err != nil {
		return model.Zone{}, fmt.Errorf("list zones: %w", err)
	}
	for _, z := range saved {
		if z.Name == defaultZoneName {
			return z, nil
		}
	}
	z, err := model.NewZone(defaultZoneName, config.FortMasonZone(), cfg.MinZoneAreaKm2, clock.Now())
	if err != nil {
		return model.Zone{}, fmt.Errorf("default zone: %w", err)
	}
	if err := zones.SaveZone(ctx, z); err != nil {
		return model.Zone{}, fmt.Errorf("save default zone: %w", err)
	}
	return z, nil
}

const defaultZoneName = "Fort Mason"
