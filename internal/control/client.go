package control

import (
	"context"

	"github.com/signalsfoundry/riderunner/internal/logging"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the GameControl service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to target without transport security and with client-side
// tracing. Close releases the connection.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes a connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Start(ctx context.Context) (*structpb.Struct, error) {
	return c.command(ctx, "Start")
}

func (c *Client) Pause(ctx context.Context) (*structpb.Struct, error) {
	return c.command(ctx, "Pause")
}

func (c *Client) Resume(ctx context.Context) (*structpb.Struct, error) {
	return c.command(ctx, "Resume")
}

func (c *Client) Reset(ctx context.Context) (*structpb.Struct, error) {
	return c.command(ctx, "Reset")
}

func (c *Client) GetState(ctx context.Context) (*structpb.Struct, error) {
	return c.command(ctx, "GetState")
}

// SetPlacementMode asks the engine to switch strategies.
func (c *Client) SetPlacementMode(ctx context.Context, mode string) (*structpb.Struct, error) {
	out := &structpb.Struct{}
	err := c.invoke(ctx, "SetPlacementMode", wrapperspb.String(mode), out)
	return out, err
}

// ReportLocation sends one fix. fields uses the websocket names (lat, lon,
// speed, heading, accuracy, timestamp).
func (c *Client) ReportLocation(ctx context.Context, fields map[string]any) (bool, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return false, err
	}
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "ReportLocation", in, out); err != nil {
		return false, err
	}
	return out.GetFields()["accepted"].GetBoolValue(), nil
}

func (c *Client) command(ctx context.Context, method string) (*structpb.Struct, error) {
	out := &structpb.Struct{}
	err := c.invoke(ctx, method, &emptypb.Empty{}, out)
	return out, err
}

// invoke forwards the caller's request id, if any, as metadata.
func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if id := logging.RequestIDFromContext(ctx); id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, requestIDMetadataKey, id)
	}
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out)
}
