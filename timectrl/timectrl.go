package timectrl

import (
	"sync"
	"time"
)

// Clock is the time source the game reads. Keeping it behind an interface
// lets tests and accelerated simulations drive time explicitly.
type Clock interface {
	Now() time.Time
}

// WallClock reads the system clock.
type WallClock struct{}

// Now returns time.Now().
func (WallClock) Now() time.Time { return time.Now() }

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Mode describes how the TimeController advances time.
type Mode int

const (
	// RealTime fires once per Tick of wall-clock time and reports wall-clock Now.
	RealTime Mode = iota
	// Accelerated fires Speedup times faster than wall-clock and reports
	// simulated time, advanced by Tick per fire.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// TimeController drives the periodic game tick and notifies registered
// listeners. It can be stopped and started again; simulated time does not
// advance while stopped.
type TimeController struct {
	mu      sync.RWMutex
	Tick    time.Duration
	Mode    Mode
	Speedup float64

	currentTime time.Time
	listeners   []func(time.Time)
	stop        chan struct{}
	done        chan struct{}
}

// NewTimeController constructs a stopped controller whose simulated time
// begins at start.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		Tick:        tick,
		Mode:        mode,
		Speedup:     1,
		currentTime: start,
	}
}

// Now implements Clock.
func (tc *TimeController) Now() time.Time {
	if tc.Mode == RealTime {
		return time.Now()
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps simulated time to t.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Running reports whether the tick loop is active.
func (tc *TimeController) Running() bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.stop != nil
}

// Start runs the tick loop in a separate goroutine for the given duration
// of simulated time (zero means until Stop). It returns a channel closed
// when the loop exits. Starting a running controller returns the existing
// loop's channel.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	tc.mu.Lock()
	if tc.stop != nil {
		done := tc.done
		tc.mu.Unlock()
		return done
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	tc.stop, tc.done = stop, done
	tc.mu.Unlock()

	interval := tc.Tick
	if tc.Mode == Accelerated && tc.Speedup > 1 {
		interval = time.Duration(float64(tc.Tick) / tc.Speedup)
	}
	if interval < time.Millisecond {
		interval = time.Millisecond
	}

	go func() {
		defer close(done)
		defer func() {
			tc.mu.Lock()
			if tc.stop == stop {
				tc.stop, tc.done = nil, nil
			}
			tc.mu.Unlock()
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			select {
			case <-stop:
				return
			default:
			}
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = tc.currentTime.Add(tc.Tick)
			now := tc.currentTime
			listeners := append([]func(time.Time){}, tc.listeners...)
			tc.mu.Unlock()

			if tc.Mode == RealTime {
				now = time.Now()
			}
			for _, fn := range listeners {
				fn(now)
			}
		}
	}()
	return done
}

// Stop halts the tick loop. It is a no-op when the controller is stopped.
// Ticks still pending when Stop is called are not delivered, but Stop does
// not wait for a listener call already in progress.
func (tc *TimeController) Stop() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.stop == nil {
		return
	}
	close(tc.stop)
	tc.stop, tc.done = nil, nil
}
