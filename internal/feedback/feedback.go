// Package feedback turns engine events into player-facing cues. Every sink is
// fire-and-forget: methods return nothing and must not block the engine.
package feedback

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/model"
)

// Sink receives game events.
type Sink interface {
	GameStarted()
	Paused()
	Resumed()
	Pickup(r model.Rider)
	Dropoff(rewardSeconds int)
	SpeedWarning()
	TenSecondsRemaining()
	GameOver(score int)
}

// Phrases spoken or logged for each cue.
const (
	PhraseGameStarted = "Game started"
	PhrasePickup      = "Rider on board!"
	PhraseSpeed       = "Slow down!"
	PhraseTenSeconds  = "Ten seconds!"
	PhraseGameOver    = "Game over"
)

// DropoffPhrase announces a reward.
func DropoffPhrase(rewardSeconds int) string {
	return fmt.Sprintf("+ %d seconds", rewardSeconds)
}

// Nop discards every event.
type Nop struct{}

func (Nop) GameStarted()         {}
func (Nop) Paused()              {}
func (Nop) Resumed()             {}
func (Nop) Pickup(model.Rider)   {}
func (Nop) Dropoff(int)          {}
func (Nop) SpeedWarning()        {}
func (Nop) TenSecondsRemaining() {}
func (Nop) GameOver(int)         {}

// Log writes each cue as a structured log line.
type Log struct {
	log logging.Logger
}

// NewLog returns a sink that announces cues through l.
func NewLog(l logging.Logger) *Log {
	if l == nil {
		l = logging.Noop()
	}
	return &Log{log: l.With(logging.String("component", "feedback"))}
}

func (s *Log) say(phrase, event string, fields ...logging.Field) {
	fields = append([]logging.Field{logging.String("event", event)}, fields...)
	s.log.Info(context.Background(), phrase, fields...)
}

func (s *Log) GameStarted() { s.say(PhraseGameStarted, "game_started") }
func (s *Log) Paused()      { s.say("Paused", "paused") }
func (s *Log) Resumed()     { s.say("Resumed", "resumed") }
func (s *Log) Pickup(r model.Rider) {
	s.say(PhrasePickup, "pickup",
		logging.String("rider_id", r.ID),
		logging.String("tier", string(r.Tier)),
		logging.String("poi", r.POIName),
	)
}
func (s *Log) Dropoff(reward int) {
	s.say(DropoffPhrase(reward), "dropoff", logging.Int("reward_seconds", reward))
}
func (s *Log) SpeedWarning()        { s.say(PhraseSpeed, "speed_warning") }
func (s *Log) TenSecondsRemaining() { s.say(PhraseTenSeconds, "ten_seconds") }
func (s *Log) GameOver(score int)   { s.say(PhraseGameOver, "game_over", logging.Int("score", score)) }

// Multi fans each event out to several sinks in order.
type Multi []Sink

func (m Multi) GameStarted() {
	for _, s := range m {
		s.GameStarted()
	}
}

func (m Multi) Paused() {
	for _, s := range m {
		s.Paused()
	}
}

func (m Multi) Resumed() {
	for _, s := range m {
		s.Resumed()
	}
}

func (m Multi) Pickup(r model.Rider) {
	for _, s := range m {
		s.Pickup(r)
	}
}

func (m Multi) Dropoff(reward int) {
	for _, s := range m {
		s.Dropoff(reward)
	}
}

func (m Multi) SpeedWarning() {
	for _, s := range m {
		s.SpeedWarning()
	}
}

func (m Multi) TenSecondsRemaining() {
	for _, s := range m {
		s.TenSecondsRemaining()
	}
}

func (m Multi) GameOver(score int) {
	for _, s := range m {
		s.GameOver(score)
	}
}

// Event is one call captured by Recorder.
type Event struct {
	Name  string
	Value int
}

// Recorder keeps every event it receives. It is meant for tests and replay
// tooling.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(name string, v int) {
	r.mu.Lock()
	r.events = append(r.events, Event{Name: name, Value: v})
	r.mu.Unlock()
}

// Events returns a copy of the captured events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events named name were captured.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (r *Recorder) GameStarted()         { r.add("game_started", 0) }
func (r *Recorder) Paused()              { r.add("paused", 0) }
func (r *Recorder) Resumed()             { r.add("resumed", 0) }
func (r *Recorder) Pickup(model.Rider)   { r.add("pickup", 0) }
func (r *Recorder) Dropoff(reward int)   { r.add("dropoff", reward) }
func (r *Recorder) SpeedWarning()        { r.add("speed_warning", 0) }
func (r *Recorder) TenSecondsRemaining() { r.add("ten_seconds", 0) }
func (r *Recorder) GameOver(score int)   { r.add("game_over", score) }
