package grpc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnaryInterceptor logs every call and turns handler panics into codes.Internal.
func LoggingUnaryInterceptor() gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("method", info.FullMethod).Errorf("panic in grpc handler: %v", r)
				resp, err = nil, status.Error(codes.Internal, "internal server error")
			}

			fields := logrus.Fields{
				"method":     info.FullMethod,
				"code":       status.Code(err).String(),
				"latency_ms": time.Since(start).Milliseconds(),
			}
			if status.Code(err) == codes.Internal {
				logrus.WithFields(fields).Error("grpc_request")
				return
			}
			logrus.WithFields(fields).Info("grpc_request")
		}()

		return handler(ctx, req)
	}
}
