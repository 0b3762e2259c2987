package interceptor

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/vidlib/internal/logger"
)

// UnaryLoggingInterceptor logs every unary call with its peer, duration and
// resulting status code.
func UnaryLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		start := time.Now()

		resp, err = handler(ctx, req)

		remote := "unknown"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}
		st, _ := status.FromError(err)

		logger.Log.Infoln(
			"gRPC request",
			"method", info.FullMethod,
			"peer", remote,
			"duration", time.Since(start),
			"code", st.Code().String(),
			"message", st.Message(),
		)

		return resp, err
	}
}
