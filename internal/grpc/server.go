package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/arec-energy/pumpstream/internal/aggregation"
	"github.com/arec-energy/pumpstream/internal/database"
	middleware "github.com/arec-energy/pumpstream/internal/grpc/middlewares"
	"github.com/arec-energy/pumpstream/internal/live"
	"github.com/arec-energy/pumpstream/internal/models"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	RateLimit      float64 // Requests per second
	RateLimitBurst int     // Maximum burst size for rate limiting
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		RateLimit:      5.0, // 5 requests per second
		RateLimitBurst: 10,  // Burst of 10 requests
	}
}

// SessionOpener starts a live session for one Watch stream.
type SessionOpener func(ctx context.Context) (*live.Session, error)

// TelemetryService encapsulates business logic
type TelemetryService struct {
	repository database.TimeSeriesRepository
	open       SessionOpener
	validator  *RequestValidator
	logger     logrus.FieldLogger
	now        func() time.Time
}

// NewTelemetryService creates a new service instance. open may be nil, in
// which case Watch reports Unavailable.
func NewTelemetryService(repo database.TimeSeriesRepository, open SessionOpener, logger logrus.FieldLogger) *TelemetryService {
	return &TelemetryService{
		repository: repo,
		open:       open,
		validator:  NewRequestValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

// Latest returns the most recent readings, newest first.
func (s *TelemetryService) Latest(ctx context.Context, req *LatestRequest) (*LatestResponse, error) {
	limit, err := s.validator.Limit(req.Limit)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	readings, err := s.repository.FindRecent(ctx, limit)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}
	return &LatestResponse{Readings: readings}, nil
}

// Realtime returns the newest stored reading.
func (s *TelemetryService) Realtime(ctx context.Context, _ *RealtimeRequest) (*RealtimeResponse, error) {
	readings, err := s.repository.FindRecent(ctx, 1)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}
	if len(readings) == 0 {
		return &RealtimeResponse{}, nil
	}
	return &RealtimeResponse{Reading: &readings[0]}, nil
}

// Aggregate buckets the requested range. Absent bounds are filled in from
// the granularity's default span ending now.
func (s *TelemetryService) Aggregate(ctx context.Context, req *AggregateRequest) (*AggregateResponse, error) {
	g, err := aggregation.ParseGranularity(req.Granularity)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var start, end time.Time
	if req.Start != nil {
		start = *req.Start
	}
	if req.End != nil {
		end = *req.End
	}
	start, end = aggregation.ResolveRange(g, start, end, s.now())

	if g, err = s.validator.Validate(start, end, req.Granularity); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	buckets, err := s.repository.Aggregate(ctx, start, end, g)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}
	if buckets == nil {
		buckets = []models.AggregateBucket{}
	}

	return &AggregateResponse{
		Granularity: g.String(),
		Start:       start,
		End:         end,
		Buckets:     buckets,
	}, nil
}

// Watch streams live snapshots until the client goes away or the broker
// connection is lost.
func (s *TelemetryService) Watch(_ *WatchRequest, stream TelemetryWatchServer) error {
	if s.open == nil {
		return status.Error(codes.Unavailable, "live feed disabled")
	}

	ctx := stream.Context()
	session, err := s.open(ctx)
	if err != nil {
		return status.Errorf(codes.Unavailable, "live feed unavailable: %v", err)
	}

	err = session.Run(ctx, func(snap live.Snapshot) error {
		return stream.Send(&snap)
	})
	switch {
	case err == nil, errors.Is(err, context.Canceled), ctx.Err() != nil:
		return nil
	default:
		s.logger.WithError(err).Warn("Live session ended")
		return status.Errorf(codes.Unavailable, "live feed interrupted: %v", err)
	}
}

// Server is the configured gRPC server together with its health service.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// Shutdown reports NOT_SERVING to health watchers and then stops accepting
// calls, waiting for in-flight ones to finish.
func (s *Server) Shutdown() {
	s.Health.Shutdown()
	s.Server.GracefulStop()
}

// SetupServer initializes and configures the gRPC server with all middleware
func SetupServer(
	repo database.TimeSeriesRepository,
	open SessionOpener,
	config ServerConfig,
	logger logrus.FieldLogger,
	reg prometheus.Registerer,
) (*Server, error) {
	if config.RateLimit <= 0 || config.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("invalid rate limit %v/s burst %d", config.RateLimit, config.RateLimitBurst)
	}

	metrics, err := middleware.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	// Create server with chained interceptors
	server := grpc.NewServer(
		grpc.UnaryInterceptor(
			chainUnaryInterceptors(
				middleware.ContextMiddleware, // Add request ID first
				middleware.NewRateLimitingInterceptor(config.RateLimit, config.RateLimitBurst), // Rate limit early
				middleware.NewLoggingInterceptor(logger),  // Log all requests (with request ID)
				middleware.NewMetricsInterceptor(metrics), // Collect metrics
			),
		),
		grpc.ChainStreamInterceptor(
			middleware.StreamContextMiddleware,
			middleware.NewStreamRateLimitingInterceptor(config.RateLimit, config.RateLimitBurst),
			middleware.NewStreamLoggingInterceptor(logger),
			middleware.NewStreamMetricsInterceptor(metrics),
		),
	)

	RegisterTelemetryServer(server, NewTelemetryService(repo, open, logger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	return &Server{Server: server, Health: healthServer}, nil
}

// chainUnaryInterceptors creates a single interceptor from multiple interceptors
func chainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			chainedInterceptor := chain
			chain = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, chainedInterceptor)
			}
		}
		return chain(ctx, req)
	}
}

var _ TelemetryServer = (*TelemetryService)(nil)
