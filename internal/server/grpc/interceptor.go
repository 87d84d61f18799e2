package grpc

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/audit"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// peerHost returns the caller's host without the port.
func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func (s *GRPCServer) sourceInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if host := peerHost(ctx); host != "" {
		ctx = audit.ContextWithSource(ctx, host)
	}
	return handler(ctx, req)
}

func (s *GRPCServer) throttleInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !throttledMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	if !s.limiter.Allow(audit.SourceFromContext(ctx)) {
		var username string
		if st, ok := req.(*structpb.Struct); ok {
			username = st.GetFields()["username"].GetStringValue()
		}
		s.logger.Warn(ctx, "attempt throttled", "method", info.FullMethod, "user", username)
		s.auditor.Record(ctx, username, "throttle:"+info.FullMethod, audit.StatusRateLimited)
		return nil, status.Error(codes.ResourceExhausted, "rate limited")
	}
	return handler(ctx, req)
}

// tokenFromMetadata prefers the authorization header and falls back to the
// session carrier.
func tokenFromMetadata(md metadata.MD) (string, auth.Source) {
	for _, v := range md.Get(common.AuthorizationHeaderName) {
		if t, ok := strings.CutPrefix(v, "Bearer "); ok && strings.TrimSpace(t) != "" {
			return strings.TrimSpace(t), auth.SourceHeader
		}
	}
	for _, v := range md.Get(common.SessionTokenHeaderName) {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), auth.SourceSession
		}
	}
	return "", auth.SourceHeader
}

// authInterceptor puts the validated principal into the context of every
// custody call that is not public. All rejections look the same to the
// caller; the reason only goes to the log and the audit trail.
func (s *GRPCServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !isCustodyMethod(info.FullMethod) || publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	md, _ := metadata.FromIncomingContext(ctx)
	token, src := tokenFromMetadata(md)
	if token == "" {
		s.rejectToken(ctx, info.FullMethod, "missing", src)
		return nil, errUnauthorized
	}

	p, err := s.tokens.Validate(ctx, token, src)
	if err != nil {
		reason := "unknown"
		var tokenErr *auth.TokenError
		if errors.As(err, &tokenErr) {
			reason = tokenErr.Kind.String()
		} else {
			s.logger.Error(ctx, "token validation failed", "error", err)
		}
		s.rejectToken(ctx, info.FullMethod, reason, src)
		return nil, errUnauthorized
	}

	return handler(auth.ContextWithPrincipal(ctx, p), req)
}

func (s *GRPCServer) rejectToken(ctx context.Context, method, reason string, src auth.Source) {
	s.logger.Info(ctx, "token rejected", "method", method, "reason", reason, "source", src.String())
	s.auditor.Record(ctx, anonymous, "authenticate:"+reason, audit.StatusFailed)
}
