// Package control exposes the game engine over gRPC. The service is
// described by hand with protobuf well-known types as messages: commands
// take google.protobuf.Empty and every call answers with the engine
// snapshot as a google.protobuf.Struct.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/signalsfoundry/riderunner/internal/game"
	"github.com/signalsfoundry/riderunner/internal/location"
	"github.com/signalsfoundry/riderunner/internal/logging"
	"github.com/signalsfoundry/riderunner/internal/observability"
	"github.com/signalsfoundry/riderunner/internal/placement"
	"github.com/signalsfoundry/riderunner/model"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "riderunner.control.v1.GameControl"

// Engine is the subset of *game.Engine the service drives.
type Engine interface {
	Start(ctx context.Context) (game.Snapshot, error)
	Pause(ctx context.Context) (game.Snapshot, error)
	Resume(ctx context.Context) (game.Snapshot, error)
	Reset(ctx context.Context) (game.Snapshot, error)
	Snapshot(ctx context.Context) (game.Snapshot, error)
	SetPlacementMode(ctx context.Context, mode placement.Mode) (game.Snapshot, error)
}

// LocationSink accepts device fixes; *location.Feed satisfies it.
type LocationSink interface {
	Push(s model.Sample) (bool, error)
}

// GameControlServer is the server API of the control service.
type GameControlServer interface {
	Start(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Pause(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Resume(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ReportLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetPlacementMode(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// Service implements GameControlServer on top of an Engine.
type Service struct {
	engine    Engine
	locations LocationSink
	log       logging.Logger
}

var _ GameControlServer = (*Service)(nil)

// NewService wires the control service. locations may be nil, in which case
// ReportLocation is rejected.
func NewService(engine Engine, locations LocationSink, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{engine: engine, locations: locations, log: log}
}

func (s *Service) Start(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(ctx, "start", s.engine.Start)
}

func (s *Service) Pause(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(ctx, "pause", s.engine.Pause)
}

func (s *Service) Resume(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(ctx, "resume", s.engine.Resume)
}

func (s *Service) Reset(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(ctx, "reset", s.engine.Reset)
}

func (s *Service) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.reply(ctx, "", s.engine.Snapshot)
}

// SetPlacementMode switches the rider placement strategy. Unlike the config
// file, the RPC rejects unknown mode names.
func (s *Service) SetPlacementMode(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	raw := strings.ToLower(strings.TrimSpace(req.GetValue()))
	switch placement.Mode(raw) {
	case placement.ModeRandom, placement.ModeCurated, placement.ModeSmart:
	default:
		return nil, ToStatusError(fmt.Errorf("%w: unknown placement mode %q", ErrInvalidArgument, req.GetValue()))
	}
	return s.reply(ctx, "set placement mode", func(ctx context.Context) (game.Snapshot, error) {
		return s.engine.SetPlacementMode(ctx, placement.Mode(raw))
	})
}

// ReportLocation pushes one fix into the location feed. The request uses
// the websocket field names: lat, lon, speed, heading, accuracy, timestamp.
func (s *Service) ReportLocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.locations == nil {
		return nil, ToStatusError(fmt.Errorf("%w: location reporting is disabled", ErrInvalidArgument))
	}
	raw, err := json.Marshal(req.AsMap())
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	var wire location.WireSample
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, ToStatusError(fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	accepted, err := s.locations.Push(wire.Sample())
	if err != nil {
		logging.FromContext(ctx, s.log).Debug(ctx, "location rejected", logging.Err(err))
		return nil, ToStatusError(err)
	}
	return structpb.NewStruct(map[string]any{"accepted": accepted})
}

func (s *Service) reply(ctx context.Context, action string, call func(context.Context) (game.Snapshot, error)) (*structpb.Struct, error) {
	snap, err := call(ctx)
	if err != nil {
		return nil, ToStatusError(err)
	}
	if action != "" {
		logging.FromContext(ctx, s.log).Info(ctx, "control command",
			logging.String("action", action),
			logging.String("state", snap.State.String()),
		)
	}
	out, err := SnapshotStruct(snap)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

// SnapshotStruct converts a snapshot to its JSON-shaped Struct form.
func SnapshotStruct(snap game.Snapshot) (*structpb.Struct, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return structpb.NewStruct(m)
}

// RegisterGameControlServer registers srv on s.
func RegisterGameControlServer(s grpc.ServiceRegistrar, srv GameControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NewServer builds a gRPC server with the control service registered and
// the request-id, tracing, metrics and status interceptors chained.
func NewServer(svc GameControlServer, log logging.Logger, metrics *observability.ControlCollector, opts ...grpc.ServerOption) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if metrics != nil {
		interceptors = append(interceptors, metrics.UnaryServerInterceptor())
	}
	interceptors = append(interceptors, StatusUnaryServerInterceptor())

	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	}, opts...)
	server := grpc.NewServer(opts...)
	RegisterGameControlServer(server, svc)
	return server
}

// ServiceDesc describes GameControl for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GameControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Start", newEmpty, GameControlServer.Start),
		unary("Pause", newEmpty, GameControlServer.Pause),
		unary("Resume", newEmpty, GameControlServer.Resume),
		unary("Reset", newEmpty, GameControlServer.Reset),
		unary("GetState", newEmpty, GameControlServer.GetState),
		unary("ReportLocation", func() *structpb.Struct { return &structpb.Struct{} }, GameControlServer.ReportLocation),
		unary("SetPlacementMode", func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }, GameControlServer.SetPlacementMode),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "riderunner/control/v1/control.proto",
}

func newEmpty() *emptypb.Empty { return &emptypb.Empty{} }

func unary[Req proto.Message](name string, newReq func() Req, call func(GameControlServer, context.Context, Req) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GameControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(GameControlServer), ctx, req.(Req))
			})
		},
	}
}
