// Package location is the device-position side of the game. A Feed filters
// raw fixes according to the current accuracy mode and hands the survivors
// to the engine as a single, non-restartable stream.
package location

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/riderunner/geo"
	"github.com/signalsfoundry/riderunner/model"
	"github.com/signalsfoundry/riderunner/timectrl"
)

var (
	// ErrInvalidSample is returned for fixes with out-of-range coordinates or
	// a negative accuracy radius.
	ErrInvalidSample = errors.New("invalid location sample")
	// ErrClosed is returned by Push after Close.
	ErrClosed = errors.New("location feed closed")
)

// Mode trades accuracy for battery.
type Mode int

const (
	// Idle is the power-saving mode used outside active play.
	Idle Mode = iota
	// Follow is the high-accuracy mode used while playing.
	Follow
)

func (m Mode) String() string {
	if m == Follow {
		return "follow"
	}
	return "idle"
}

// DistanceFilter is the movement, in metres, needed before a new fix is delivered.
func (m Mode) DistanceFilter() float64 {
	if m == Follow {
		return 5
	}
	return 50
}

// Interval is the longest a stationary device goes without a delivered fix.
func (m Mode) Interval() time.Duration {
	if m == Follow {
		return time.Second
	}
	return 30 * time.Second
}

// Validate checks a fix before it enters the feed.
func Validate(s model.Sample) error {
	if !s.Coordinate.Valid() {
		return fmt.Errorf("%w: coordinate %v out of range", ErrInvalidSample, s.Coordinate)
	}
	if s.HorizontalAccuracy < 0 {
		return fmt.Errorf("%w: negative horizontal accuracy %v", ErrInvalidSample, s.HorizontalAccuracy)
	}
	return nil
}

// Feed is the location collaborator consumed by the engine.
type Feed struct {
	clock timectrl.Clock
	out   chan model.Sample

	mu      sync.Mutex
	mode    Mode
	current *model.Sample
	last    *model.Sample
	closed  bool
	dropped int
}

// NewFeed returns an idle feed whose stream buffers up to buffer samples.
func NewFeed(clock timectrl.Clock, buffer int) *Feed {
	if clock == nil {
		clock = timectrl.WallClock{}
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Feed{clock: clock, out: make(chan model.Sample, buffer), mode: Idle}
}

// Samples is the filtered stream. It is closed by Close and never reopened.
func (f *Feed) Samples() <-chan model.Sample {
	return f.out
}

// SetMode switches between follow and idle filtering.
func (f *Feed) SetMode(m Mode) {
	f.mu.Lock()
	f.mode = m
	f.mu.Unlock()
}

// Mode returns the active mode.
func (f *Feed) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Current returns the most recent delivered fix, if any.
func (f *Feed) Current() (geo.Coordinate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return geo.Coordinate{}, false
	}
	return f.current.Coordinate, true
}

// Dropped counts fixes discarded because the stream buffer was full.
func (f *Feed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Push offers a raw fix. It reports whether the fix passed the mode's
// filters and was queued. A zero timestamp is replaced by the clock's time.
func (f *Feed) Push(s model.Sample) (bool, error) {
	if err := Validate(s); err != nil {
		return false, err
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = f.clock.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, ErrClosed
	}
	if f.last != nil {
		moved := f.last.Coordinate.DistanceTo(s.Coordinate)
		waited := s.Timestamp.Sub(f.last.Timestamp)
		if moved < f.mode.DistanceFilter() && waited < f.mode.Interval() {
			return false, nil
		}
	}

	select {
	case f.out <- s:
	default:
		f.dropped++
		return false, nil
	}
	f.last = &s
	f.current = &s
	return true, nil
}

// Close ends the stream. Further pushes fail with ErrClosed.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.out)
}
