package config

import (
	"errors"
	"flag"
	"io"
	"testing"
	"time"
)

func TestServerFlags(t *testing.T) {
	s := DefaultServer()
	fs := flag.NewFlagSet("riderunner", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	s.RegisterFlags(fs)

	err := fs.Parse([]string{"-grpc-addr", "127.0.0.1:6000", "-db", ":memory:", "-placement", "curated", "-shutdown-timeout", "2s"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.GRPCAddr != "127.0.0.1:6000" || s.DBPath != ":memory:" || s.PlacementMode != "curated" {
		t.Fatalf("flags not bound: %+v", s)
	}
	if s.HTTPAddr != ":8080" || s.ShutdownTimeout != 2*time.Second {
		t.Fatalf("defaults lost: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestServerValidate(t *testing.T) {
	s := DefaultServer()
	s.GRPCAddr, s.HTTPAddr = "", ""
	s.Volume = 2
	err := s.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate = %v, want ErrInvalidConfig", err)
	}
}
