package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

func NewLoggingInterceptor(logger logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		entry := logger.WithFields(logrus.Fields{
			"request_id": RequestID(ctx),
			"method":     info.FullMethod,
			"duration":   time.Since(start).String(),
			"code":       status.Code(err).String(),
		})
		if err != nil {
			entry.WithError(err).Warn("Request failed")
		} else {
			entry.Info("Request served")
		}

		return resp, err
	}
}

func NewStreamLoggingInterceptor(logger logrus.FieldLogger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		entry := logger.WithFields(logrus.Fields{
			"request_id": RequestID(ss.Context()),
			"method":     info.FullMethod,
		})
		entry.Info("Stream opened")

		err := handler(srv, ss)

		entry.WithFields(logrus.Fields{
			"duration": time.Since(start).String(),
			"code":     status.Code(err).String(),
		}).Info("Stream closed")
		return err
	}
}
