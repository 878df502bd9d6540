package control

import (
	"context"
	"errors"

	"github.com/signalsfoundry/riderunner/internal/config"
	"github.com/signalsfoundry/riderunner/internal/game"
	"github.com/signalsfoundry/riderunner/internal/location"
	"github.com/signalsfoundry/riderunner/internal/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidArgument marks malformed control requests.
var ErrInvalidArgument = errors.New("invalid argument")

// ToStatusError maps engine and collaborator errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, location.ErrInvalidSample),
		errors.Is(err, config.ErrInvalidConfig):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, game.ErrEngineStopped),
		errors.Is(err, location.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
