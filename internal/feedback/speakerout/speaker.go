// Package speakerout plays feedback cues on the host's audio device.
package speakerout

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/signalsfoundry/riderunner/internal/feedback"
)

var (
	initOnce sync.Once
	initErr  error
	mixer    = &beep.Mixer{}
)

// Speaker is a feedback.Player backed by the system speaker. All Speakers
// share one device and mixer.
type Speaker struct{}

// Open initialises the audio device on first use.
func Open() (*Speaker, error) {
	initOnce.Do(func() {
		if err := speaker.Init(feedback.SampleRate, feedback.SampleRate.N(100*time.Millisecond)); err != nil {
			initErr = fmt.Errorf("init speaker: %w", err)
			return
		}
		speaker.Play(mixer)
	})
	if initErr != nil {
		return nil, initErr
	}
	return &Speaker{}, nil
}

// Play mixes s into the output without waiting for it to finish.
func (*Speaker) Play(s beep.Streamer) {
	speaker.Lock()
	mixer.Add(s)
	speaker.Unlock()
}
