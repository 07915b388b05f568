package middleware

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	info       = &grpc.UnaryServerInfo{FullMethod: "/pumpstream.v1.Telemetry/Latest"}
	streamInfo = &grpc.StreamServerInfo{FullMethod: "/pumpstream.v1.Telemetry/Watch", IsServerStream: true}
)

type fakeStream struct {
	grpc.ServerStream
}

func (fakeStream) Context() context.Context {
	return context.Background()
}

func okStream(srv interface{}, ss grpc.ServerStream) error {
	return nil
}

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func TestContextMiddleware_AssignsRequestID(t *testing.T) {
	var seen string
	_, err := ContextMiddleware(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestID(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 36)
	assert.Empty(t, RequestID(context.Background()))
}

func TestRateLimitingInterceptor(t *testing.T) {
	interceptor := NewRateLimitingInterceptor(0.001, 2)

	for i := 0; i < 2; i++ {
		resp, err := interceptor(context.Background(), nil, info, okHandler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	}

	_, err := interceptor(context.Background(), nil, info, okHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestStreamRateLimitingInterceptor(t *testing.T) {
	interceptor := NewStreamRateLimitingInterceptor(0.001, 1)

	require.NoError(t, interceptor(nil, fakeStream{}, streamInfo, okStream))

	err := interceptor(nil, fakeStream{}, streamInfo, func(srv interface{}, ss grpc.ServerStream) error {
		t.Fatal("handler must not run once the limit is exhausted")
		return nil
	})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestStreamMetricsInterceptor(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	interceptor := NewStreamMetricsInterceptor(m)
	require.NoError(t, interceptor(nil, fakeStream{}, streamInfo, okStream))
	err = interceptor(nil, fakeStream{}, streamInfo, func(srv interface{}, ss grpc.ServerStream) error {
		return status.Error(codes.Unavailable, "live feed interrupted")
	})
	assert.Equal(t, codes.Unavailable, status.Code(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("Watch", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("Watch", "Unavailable")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Latency))
}

func TestMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	interceptor := NewMetricsInterceptor(m)
	_, _ = interceptor(context.Background(), nil, info, okHandler)
	_, _ = interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "bad")
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("Latest", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("Latest", "InvalidArgument")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Latency))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestLoggingInterceptor(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetOutput(io.Discard)
	interceptor := NewLoggingInterceptor(logger)

	ctx := context.WithValue(context.Background(), requestIDKey, "req-1")
	_, err := interceptor(ctx, nil, info, okHandler)
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, info.FullMethod, entry.Data["method"])

	_, err = interceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "Unknown", hook.LastEntry().Data["code"])
}
