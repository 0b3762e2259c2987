// Package grpcserver serves the catalog and the caller's library over gRPC.
package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/vidlib/internal/grpcserver/interceptor"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

type userResolver interface {
	UserByToken(ctx context.Context, token string) (*user.User, error)
}

// NewGRPCServer listens on addr and registers both services on handler.
// GetLibrary requires the caller's token in the "authorization" metadata.
func NewGRPCServer(
	addr string,
	handler *LibraryHandler,
	resolver userResolver,
) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	authInterceptor := interceptor.NewAuthInterceptor(resolver)

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryLoggingInterceptor(),
			authInterceptor.UnaryAuthInterceptor([]string{
				GetLibraryMethod,
			}),
		),
	)
	RegisterCatalogServer(server, handler)
	RegisterLibraryServer(server, handler)

	return server, lis, nil
}
