package location

import "github.com/signalsfoundry/riderunner/model"

const (
	speedHistoryLen = 10
	speedWindow     = 5
	// maxGuardAccuracy is the worst accuracy, in metres, a fix may have and
	// still count as evidence of speeding.
	maxGuardAccuracy = 20
)

// SpeedGuard keeps a short history of measured speeds and flags sustained
// speeding. It is not safe for concurrent use.
type SpeedGuard struct {
	history []float64
}

// Observe records s and reports whether the average of the last five
// measured speeds exceeds maxSpeed on an accurate fix. Fixes without a
// speed measurement are ignored.
func (g *SpeedGuard) Observe(s model.Sample, maxSpeed float64) bool {
	if s.Speed < 0 {
		return false
	}
	g.history = append(g.history, s.Speed)
	if len(g.history) > speedHistoryLen {
		g.history = g.history[len(g.history)-speedHistoryLen:]
	}
	return g.Average() > maxSpeed && s.HorizontalAccuracy < maxGuardAccuracy
}

// Average returns the mean of the recent speed window, or zero when empty.
func (g *SpeedGuard) Average() float64 {
	if len(g.history) == 0 {
		return 0
	}
	recent := g.history[max(0, len(g.history)-speedWindow):]
	var sum float64
	for _, v := range recent {
		sum += v
	}
	return sum / float64(len(recent))
}

// Reset forgets the history.
func (g *SpeedGuard) Reset() {
	g.history = g.history[:0]
}
