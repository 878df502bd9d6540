package feedback

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/signalsfoundry/riderunner/model"
)

// SampleRate is the rate cues are synthesised at.
const SampleRate = beep.SampleRate(44100)

// Wave selects an oscillator shape.
type Wave int

const (
	Sine Wave = iota
	Square
)

// Note is one pitched tone, or a rest when Freq is zero.
type Note struct {
	Freq float64
	Dur  time.Duration
	Wave Wave
}

// Cue is a short melody.
type Cue []Note

// Duration is the total length of the cue.
func (c Cue) Duration() time.Duration {
	var d time.Duration
	for _, n := range c {
		d += n.Dur
	}
	return d
}

const (
	noteC5 = 523.25
	noteE5 = 659.25
	noteG5 = 783.99
	noteC6 = 1046.50
	noteA3 = 220.00
	noteE4 = 329.63
	noteG4 = 392.00
	noteC4 = 261.63
)

var (
	cueStart      = Cue{{noteC5, 120 * time.Millisecond, Sine}, {noteE5, 120 * time.Millisecond, Sine}, {noteG5, 200 * time.Millisecond, Sine}}
	cuePause      = Cue{{noteG4, 150 * time.Millisecond, Sine}}
	cueResume     = Cue{{noteG4, 100 * time.Millisecond, Sine}, {noteC5, 150 * time.Millisecond, Sine}}
	cuePickup     = Cue{{noteE5, 80 * time.Millisecond, Sine}, {noteC6, 120 * time.Millisecond, Sine}}
	cueSpeed      = Cue{{noteA3, 120 * time.Millisecond, Square}, {0, 60 * time.Millisecond, Sine}, {noteA3, 120 * time.Millisecond, Square}, {0, 60 * time.Millisecond, Sine}, {noteA3, 120 * time.Millisecond, Square}}
	cueTenSeconds = Cue{{0, 100 * time.Millisecond, Sine}, {noteC6, 50 * time.Millisecond, Sine}, {0, 150 * time.Millisecond, Sine}, {noteC6, 50 * time.Millisecond, Sine}, {0, 150 * time.Millisecond, Sine}, {noteC6, 50 * time.Millisecond, Sine}}
	cueGameOver   = Cue{{noteG4, 200 * time.Millisecond, Sine}, {noteE4, 200 * time.Millisecond, Sine}, {noteC4, 400 * time.Millisecond, Sine}}
)

// PickupCue returns the pickup jingle; high-tier riders get an extra note.
func PickupCue(t model.Tier) Cue {
	if t == model.TierHigh {
		return append(append(Cue(nil), cuePickup...), Note{noteG5 * 2, 120 * time.Millisecond, Sine})
	}
	return cuePickup
}

// DropoffCue plays one rising note per twenty seconds earned, between one and five.
func DropoffCue(reward int) Cue {
	steps := min(5, max(1, 1+reward/20))
	scale := []float64{noteC5, noteE5, noteG5, noteC6, noteE5 * 2}
	cue := make(Cue, 0, steps)
	for i := range steps {
		cue = append(cue, Note{scale[i], 90 * time.Millisecond, Sine})
	}
	return cue
}

// Player outputs audio. Play must return promptly.
type Player interface {
	Play(s beep.Streamer)
}

// Tones renders each event as a synthesised cue.
type Tones struct {
	player Player
	rate   beep.SampleRate
	volume float64
}

// NewTones returns a sink playing through p. Volume is linear, 0 to 1.
func NewTones(p Player, volume float64) *Tones {
	return &Tones{player: p, rate: SampleRate, volume: volume}
}

func (t *Tones) play(c Cue) {
	if t.player == nil {
		return
	}
	t.player.Play(Render(c, t.rate, t.volume))
}

func (t *Tones) GameStarted()         { t.play(cueStart) }
func (t *Tones) Paused()              { t.play(cuePause) }
func (t *Tones) Resumed()             { t.play(cueResume) }
func (t *Tones) Pickup(r model.Rider) { t.play(PickupCue(r.Tier)) }
func (t *Tones) Dropoff(reward int)   { t.play(DropoffCue(reward)) }
func (t *Tones) SpeedWarning()        { t.play(cueSpeed) }
func (t *Tones) TenSecondsRemaining() { t.play(cueTenSeconds) }
func (t *Tones) GameOver(int)         { t.play(cueGameOver) }

// Render turns a cue into a finite stream at rate.
func Render(c Cue, rate beep.SampleRate, volume float64) beep.Streamer {
	parts := make([]beep.Streamer, 0, len(c))
	for _, n := range c {
		samples := rate.N(n.Dur)
		if n.Freq <= 0 {
			parts = append(parts, beep.Silence(samples))
			continue
		}
		parts = append(parts, &tone{freq: n.Freq, wave: n.Wave, rate: rate, total: samples})
	}
	s := beep.Seq(parts...)
	if volume <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(math.Min(volume, 1))}
}

// tone is a fixed-length oscillator with a short linear fade at both ends
// to avoid clicks.
type tone struct {
	freq  float64
	wave  Wave
	rate  beep.SampleRate
	phase float64
	pos   int
	total int
}

func (o *tone) Stream(samples [][2]float64) (int, bool) {
	if o.pos >= o.total {
		return 0, false
	}
	fade := max(1, o.rate.N(5*time.Millisecond))
	for i := range samples {
		if o.pos >= o.total {
			return i, true
		}
		var v float64
		switch o.wave {
		case Square:
			v = 1
			if o.phase >= 0.5 {
				v = -1
			}
		default:
			v = math.Sin(2 * math.Pi * o.phase)
		}
		gain := math.Min(1, math.Min(float64(o.pos)/float64(fade), float64(o.total-o.pos)/float64(fade)))
		samples[i][0] = v * gain
		samples[i][1] = v * gain

		o.phase += o.freq / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.pos++
	}
	return len(samples), true
}

func (o *tone) Err() error { return nil }
