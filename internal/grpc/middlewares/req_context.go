package middleware

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
)

type contextKey string

const requestIDKey contextKey = "requestID"

func ContextMiddleware(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	ctx = context.WithValue(ctx, requestIDKey, generateRequestID())
	return handler(ctx, req)
}

// StreamContextMiddleware tags a stream with a request ID.
func StreamContextMiddleware(
	srv interface{},
	ss grpc.ServerStream,
	info *grpc.StreamServerInfo,
	handler grpc.StreamHandler,
) error {
	ctx := context.WithValue(ss.Context(), requestIDKey, generateRequestID())
	return handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
}

// RequestID returns the ID assigned to the call, or "" outside one.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context {
	return s.ctx
}

func generateRequestID() string {
	return uuid.NewString()
}
