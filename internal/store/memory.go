package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/riderunner/model"
)

// Memory is a thread-safe in-process Store.
type Memory struct {
	mu sync.RWMutex

	zones    map[string]model.Zone
	sessions map[string]model.GameSession
	current  string
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		zones:    make(map[string]model.Zone),
		sessions: make(map[string]model.GameSession),
	}
}

func (m *Memory) Save(_ context.Context, s model.GameSession) error {
	if s.ID == "" {
		return fmt.Errorf("save session: missing id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	m.current = s.ID
	return nil
}

func (m *Memory) LoadCurrent(_ context.Context) (model.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[m.current]
	if m.current == "" || !ok {
		return model.GameSession{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) ClearCurrent(_ context.Context) error {
	m.mu.Lock()
	m.current = ""
	m.mu.Unlock()
	return nil
}

// ListSessions returns sessions newest first. A non-positive limit returns all.
func (m *Memory) ListSessions(_ context.Context, limit int) ([]model.GameSession, error) {
	m.mu.RLock()
	out := make([]model.GameSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SaveZone(_ context.Context, z model.Zone) error {
	if z.ID == "" {
		return fmt.Errorf("save zone: missing id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	z.Coordinates = append(z.Coordinates[:0:0], z.Coordinates...)
	m.zones[z.ID] = z
	return nil
}

func (m *Memory) GetZone(_ context.Context, id string) (model.Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[id]
	if !ok {
		return model.Zone{}, fmt.Errorf("zone %q: %w", id, ErrNotFound)
	}
	return z, nil
}

// ListZones returns zones oldest first.
func (m *Memory) ListZones(_ context.Context) ([]model.Zone, error) {
	m.mu.RLock()
	out := make([]model.Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

func (m *Memory) Close() error { return nil }
