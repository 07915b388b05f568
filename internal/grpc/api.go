package server

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/arec-energy/pumpstream/internal/live"
	"github.com/arec-energy/pumpstream/internal/models"
)

const (
	ServiceName = "pumpstream.v1.Telemetry"

	methodLatest    = "/" + ServiceName + "/Latest"
	methodRealtime  = "/" + ServiceName + "/Realtime"
	methodAggregate = "/" + ServiceName + "/Aggregate"
	methodWatch     = "/" + ServiceName + "/Watch"
)

// LatestRequest asks for the most recent readings. Zero means the default limit.
type LatestRequest struct {
	Limit int `json:"limit"`
}

type LatestResponse struct {
	Readings []models.SensorReading `json:"readings"`
}

type RealtimeRequest struct{}

// RealtimeResponse carries the newest stored reading, or none when the
// store is empty.
type RealtimeResponse struct {
	Reading *models.SensorReading `json:"reading,omitempty"`
}

// AggregateRequest selects a granularity and an optional [start, end)
// range. Missing bounds default per granularity.
type AggregateRequest struct {
	Granularity string     `json:"granularity"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
}

type AggregateResponse struct {
	Granularity string                   `json:"granularity"`
	Start       time.Time                `json:"start"`
	End         time.Time                `json:"end"`
	Buckets     []models.AggregateBucket `json:"buckets"`
}

type WatchRequest struct{}

// TelemetryServer is the server API for the Telemetry service.
type TelemetryServer interface {
	Latest(context.Context, *LatestRequest) (*LatestResponse, error)
	Realtime(context.Context, *RealtimeRequest) (*RealtimeResponse, error)
	Aggregate(context.Context, *AggregateRequest) (*AggregateResponse, error)
	Watch(*WatchRequest, TelemetryWatchServer) error
}

// TelemetryWatchServer is the server side of a Watch stream.
type TelemetryWatchServer interface {
	Send(*live.Snapshot) error
	grpc.ServerStream
}

type telemetryWatchServer struct {
	grpc.ServerStream
}

func (x *telemetryWatchServer) Send(m *live.Snapshot) error {
	return x.ServerStream.SendMsg(m)
}

// TelemetryServiceDesc describes the Telemetry service for grpc.Server.
var TelemetryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TelemetryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Latest", Handler: latestHandler},
		{MethodName: "Realtime", Handler: realtimeHandler},
		{MethodName: "Aggregate", Handler: aggregateHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "pumpstream/v1/telemetry",
}

// RegisterTelemetryServer registers srv on s.
func RegisterTelemetryServer(s grpc.ServiceRegistrar, srv TelemetryServer) {
	s.RegisterService(&TelemetryServiceDesc, srv)
}

func latestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LatestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TelemetryServer).Latest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodLatest}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TelemetryServer).Latest(ctx, req.(*LatestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func realtimeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RealtimeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TelemetryServer).Realtime(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRealtime}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TelemetryServer).Realtime(ctx, req.(*RealtimeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func aggregateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AggregateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TelemetryServer).Aggregate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAggregate}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TelemetryServer).Aggregate(ctx, req.(*AggregateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TelemetryServer).Watch(in, &telemetryWatchServer{stream})
}

// TelemetryClient calls the Telemetry service using the JSON codec.
type TelemetryClient struct {
	cc grpc.ClientConnInterface
}

func NewTelemetryClient(cc grpc.ClientConnInterface) *TelemetryClient {
	return &TelemetryClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

func (c *TelemetryClient) Latest(ctx context.Context, in *LatestRequest, opts ...grpc.CallOption) (*LatestResponse, error) {
	out := new(LatestResponse)
	if err := c.cc.Invoke(ctx, methodLatest, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TelemetryClient) Realtime(ctx context.Context, in *RealtimeRequest, opts ...grpc.CallOption) (*RealtimeResponse, error) {
	out := new(RealtimeResponse)
	if err := c.cc.Invoke(ctx, methodRealtime, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TelemetryClient) Aggregate(ctx context.Context, in *AggregateRequest, opts ...grpc.CallOption) (*AggregateResponse, error) {
	out := new(AggregateResponse)
	if err := c.cc.Invoke(ctx, methodAggregate, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens a snapshot stream. Cancel ctx to end it.
func (c *TelemetryClient) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (*WatchStream, error) {
	stream, err := c.cc.NewStream(ctx, &TelemetryServiceDesc.Streams[0], methodWatch, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchStream{stream: stream}, nil
}

// WatchStream is the client side of a Watch call.
type WatchStream struct {
	stream grpc.ClientStream
}

func (w *WatchStream) Recv() (*live.Snapshot, error) {
	m := new(live.Snapshot)
	if err := w.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
