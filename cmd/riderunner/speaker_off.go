//go:build nospeaker

package main

import (
	"errors"

	"github.com/signalsfoundry/riderunner/internal/feedback"
)

func openSpeaker() (feedback.Player, error) {
	return nil, errors.New("built without audio output (nospeaker)")
}
