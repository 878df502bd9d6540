// Package store persists game sessions and the zone catalog. Two backends are
// provided: an in-memory store for tests and headless runs, and a SQLite
// store for the server.
package store

import (
	"context"
	"errors"

	"github.com/signalsfoundry/riderunner/model"
)

// ErrNotFound is returned when a requested zone or session does not exist,
// including LoadCurrent with no current session.
var ErrNotFound = errors.New("not found")

// Sessions is the session persistence collaborator. Save upserts a session
// and marks it current; ClearCurrent drops the current marker but keeps the
// session in history.
type Sessions interface {
	Save(ctx context.Context, s model.GameSession) error
	LoadCurrent(ctx context.Context) (model.GameSession, error)
	ClearCurrent(ctx context.Context) error
	ListSessions(ctx context.Context, limit int) ([]model.GameSession, error)
}

// Zones is the zone catalog.
type Zones interface {
	SaveZone(ctx context.Context, z model.Zone) error
	GetZone(ctx context.Context, id string) (model.Zone, error)
	ListZones(ctx context.Context) ([]model.Zone, error)
}

// Store combines both concerns.
type Store interface {
	Sessions
	Zones
	Close() error
}
