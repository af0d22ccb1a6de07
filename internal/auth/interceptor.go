package auth

import (
	"context"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryClientInterceptor attaches a fresh timestamp and signature to every
// unary call.
func UnaryClientInterceptor(s *Signer) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ts, sig := s.Headers()
		ctx = metadata.AppendToOutgoingContext(ctx, TimestampHeader, ts, SignatureHeader, sig)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// UnaryServerInterceptor rejects calls whose signature does not match secret
// or whose timestamp is more than maxSkew away from the server clock. A zero
// maxSkew disables the freshness check.
func UnaryServerInterceptor(secret string, maxSkew time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := verifyIncoming(ctx, secret, maxSkew, time.Now()); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func verifyIncoming(ctx context.Context, secret string, maxSkew time.Duration, now time.Time) error {
	md, _ := metadata.FromIncomingContext(ctx)
	ts := first(md.Get(TimestampHeader))
	sig := first(md.Get(SignatureHeader))
	if ts == "" || sig == "" {
		return status.Error(codes.Unauthenticated, "missing signature headers")
	}
	if maxSkew > 0 {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return status.Error(codes.Unauthenticated, "malformed timestamp")
		}
		if d := now.Sub(time.Unix(sec, 0)); d > maxSkew || d < -maxSkew {
			return status.Error(codes.Unauthenticated, "timestamp outside allowed window")
		}
	}
	if !Verify(secret, ts, sig) {
		return status.Error(codes.Unauthenticated, "invalid signature")
	}
	return nil
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
