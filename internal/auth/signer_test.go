package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestSign_KnownVector(t *testing.T) {
	// RFC-style sample from the HMAC Wikipedia page.
	got := Sign("key", "The quick brown fox jumps over the lazy dog")
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", got)
}

func TestSign_Deterministic(t *testing.T) {
	a := Sign("s3cret", "1700000000")
	b := Sign("s3cret", "1700000000")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.Regexp(t, "^[0-9a-f]+$", a)
}

func TestSign_DiffersByInput(t *testing.T) {
	base := Sign("s3cret", "1700000000")
	assert.NotEqual(t, base, Sign("other", "1700000000"))
	assert.NotEqual(t, base, Sign("s3cret", "1700000001"))
}

func TestVerify(t *testing.T) {
	sig := Sign("s3cret", "1700000000")
	assert.True(t, Verify("s3cret", "1700000000", sig))
	assert.False(t, Verify("wrong", "1700000000", sig))
	assert.False(t, Verify("s3cret", "1700000000", "zz-not-hex"))
}

func TestNewSigner_EmptySecretDisablesSigning(t *testing.T) {
	assert.Nil(t, NewSigner(""))
}

func TestSigner_Headers(t *testing.T) {
	s := NewSigner("s3cret")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	ts, sig := s.Headers()
	assert.Equal(t, "1700000000", ts)
	assert.Equal(t, Sign("s3cret", "1700000000"), sig)
}

func TestUnaryClientInterceptor_AttachesHeaders(t *testing.T) {
	s := NewSigner("s3cret")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	var seen metadata.MD
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		seen, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	err := UnaryClientInterceptor(s)(context.Background(), "/svc/M", nil, nil, nil, invoker)
	require.NoError(t, err)
	assert.Equal(t, []string{"1700000000"}, seen.Get(TimestampHeader))
	assert.Equal(t, []string{Sign("s3cret", "1700000000")}, seen.Get(SignatureHeader))
}

func TestVerifyIncoming(t *testing.T) {
	now := time.Unix(1700000000, 0)
	incoming := func(ts, sig string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs(TimestampHeader, ts, SignatureHeader, sig))
	}

	tests := []struct {
		name string
		ctx  context.Context
		ok   bool
	}{
		{"valid", incoming("1700000000", Sign("s3cret", "1700000000")), true},
		{"wrong secret", incoming("1700000000", Sign("nope", "1700000000")), false},
		{"stale", incoming("1699990000", Sign("s3cret", "1699990000")), false},
		{"malformed timestamp", incoming("yesterday", Sign("s3cret", "yesterday")), false},
		{"no headers", context.Background(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyIncoming(tt.ctx, "s3cret", time.Minute, now)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
}

func TestUnaryServerInterceptor_CallsHandlerWhenValid(t *testing.T) {
	ts, sig := NewSigner("s3cret").Headers()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(TimestampHeader, ts, SignatureHeader, sig))

	called := false
	handler := func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	}
	resp, err := UnaryServerInterceptor("s3cret", time.Minute)(ctx, nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}
