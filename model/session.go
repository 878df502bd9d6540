package model

import (
	"time"

	"github.com/google/uuid"
)

// GameSession records one play-through of a zone.
type GameSession struct {
	ID           string     `json:"id"`
	Zone         Zone       `json:"zone"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Score        int        `json:"score"`
	Deliveries   []Delivery `json:"deliveries"`
	MaxCountdown float64    `json:"maxCountdown"`
}

// NewSession begins a session on zone.
func NewSession(zone Zone, start time.Time) GameSession {
	return GameSession{
		ID:         uuid.NewString(),
		Zone:       zone,
		StartTime:  start,
		Deliveries: []Delivery{},
	}
}

// IsActive reports whether the session has not ended yet.
func (s GameSession) IsActive() bool {
	return s.EndTime == nil
}

// Duration is the elapsed play time, measured to now while still active.
func (s GameSession) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

// Clone returns a copy that shares no slices or pointers with s.
func (s GameSession) Clone() GameSession {
	out := s
	out.Deliveries = make([]Delivery, len(s.Deliveries))
	for i, d := range s.Deliveries {
		out.Deliveries[i] = d.Clone()
	}
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	out.Zone.Coordinates = append(out.Zone.Coordinates[:0:0], s.Zone.Coordinates...)
	return out
}

// Clone returns a copy with its own dropoff timestamp.
func (d Delivery) Clone() Delivery {
	out := d
	if d.DropoffTime != nil {
		t := *d.DropoffTime
		out.DropoffTime = &t
	}
	return out
}
