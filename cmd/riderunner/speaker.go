//go:build !nospeaker

package main

import (
	"github.com/signalsfoundry/riderunner/internal/feedback"
	"github.com/signalsfoundry/riderunner/internal/feedback/speakerout"
)

func openSpeaker() (feedback.Player, error) {
	s, err := speakerout.Open()
	if err != nil {
		return nil, err
	}
	return s, nil
}
