package grpc

import (
	"context"
	"strings"

	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/server/guard"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// publicPrefixes lists services callable without a token.
var publicPrefixes = []string{
	"/grpc.health.v1.Health/",
}

func isPublic(fullMethod string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(fullMethod, p) {
			return true
		}
	}
	return false
}

// authenticate runs the guard against the authorization metadata and returns
// ctx carrying the identity.
func (s *GRPCServer) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	if isPublic(fullMethod) {
		return ctx, nil
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationMetadataKey); len(values) > 0 {
			header = strings.TrimSpace(values[0])
		}
	}
	if header == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	token, ok := guard.BearerToken(header)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	res := s.guard.AuthenticateToken(token)
	id, ok := res.Identity()
	if !ok {
		s.logger.Debug(ctx, "rpc rejected", "method", fullMethod, "reason", string(res.Reason()))
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	return guard.WithIdentity(ctx, id), nil
}

func (s *GRPCServer) authUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	ctx, err := s.authenticate(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }

func (s *GRPCServer) authStreamInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authenticate(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
}
