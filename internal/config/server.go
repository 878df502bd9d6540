package config

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// Server holds process settings for cmd/riderunner. They come from flags,
// unlike Game which is loaded from a file.
type Server struct {
	GRPCAddr   string
	HTTPAddr   string
	ConfigPath string
	// DBPath is a SQLite file, or ":memory:" for a throwaway store.
	DBPath string
	// ZoneID picks a saved zone; empty plays the built-in Fort Mason zone.
	ZoneID string
	// PlacementMode overrides the mode in the game config when set.
	PlacementMode   string
	OverpassURL     string
	Speaker         bool
	Volume          float64
	ShutdownTimeout time.Duration
}

// DefaultServer returns the stock process settings.
func DefaultServer() Server {
	return Server{
		GRPCAddr:        ":50051",
		HTTPAddr:        ":8080",
		DBPath:          "riderunner.db",
		Volume:          0.4,
		ShutdownTimeout: 5 * time.Second,
	}
}

// RegisterFlags binds s to fs, using the current values as defaults.
func (s *Server) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&s.GRPCAddr, "grpc-addr", s.GRPCAddr, "TCP address the control gRPC server listens on")
	fs.StringVar(&s.HTTPAddr, "http-addr", s.HTTPAddr, "HTTP address for the API, websocket and /metrics")
	fs.StringVar(&s.ConfigPath, "config", s.ConfigPath, "YAML or JSON file overriding the game tuning")
	fs.StringVar(&s.DBPath, "db", s.DBPath, "SQLite database for sessions and zones")
	fs.StringVar(&s.ZoneID, "zone", s.ZoneID, "ID of a saved zone to play")
	fs.StringVar(&s.PlacementMode, "placement", s.PlacementMode, "rider placement mode: random, curated or smart")
	fs.StringVar(&s.OverpassURL, "overpass-url", s.OverpassURL, "Overpass API endpoint for smart placement")
	fs.BoolVar(&s.Speaker, "speaker", s.Speaker, "play audio cues on the default output device")
	fs.Float64Var(&s.Volume, "volume", s.Volume, "audio cue volume in [0,1]")
	fs.DurationVar(&s.ShutdownTimeout, "shutdown-timeout", s.ShutdownTimeout, "grace period for in-flight requests on shutdown")
}

// Validate reports unusable process settings.
func (s Server) Validate() error {
	var errs []error
	if s.GRPCAddr == "" && s.HTTPAddr == "" {
		errs = append(errs, errors.New("at least one of grpc-addr and http-addr is required"))
	}
	if s.DBPath == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if s.Volume < 0 || s.Volume > 1 {
		errs = append(errs, fmt.Errorf("volume must be in [0,1], got %v", s.Volume))
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must be positive, got %v", s.ShutdownTimeout))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
