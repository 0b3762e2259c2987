package interceptor

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/vidlib/internal/auth"
	"github.com/patric-chuzhbe/vidlib/internal/logger"
	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

type userResolver interface {
	UserByToken(ctx context.Context, token string) (*user.User, error)
}

type AuthInterceptor struct {
	auth userResolver
}

func NewAuthInterceptor(auth userResolver) *AuthInterceptor {
	return &AuthInterceptor{auth: auth}
}

// UnaryAuthInterceptor resolves the caller of the protected methods from the
// raw token in the "authorization" metadata and stores it under auth.UserKey.
// Calls without a known token are rejected with PermissionDenied.
func (a *AuthInterceptor) UnaryAuthInterceptor(protectedMethods []string) grpc.UnaryServerInterceptor {
	protected := make(map[string]struct{}, len(protectedMethods))
	for _, m := range protectedMethods {
		protected[m] = struct{}{}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if _, ok := protected[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		var token string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				token = values[0]
			}
		}

		usr, err := a.auth.UserByToken(ctx, token)
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, status.Error(codes.PermissionDenied, "Unauthorized access")
		}
		if err != nil {
			logger.Log.Debugln("Error calling the `a.auth.UserByToken()`: ", zap.Error(err))
			return nil, status.Error(codes.Internal, "Unable to authorize, please try later!")
		}

		return handler(context.WithValue(ctx, auth.UserKey, usr), req)
	}
}
