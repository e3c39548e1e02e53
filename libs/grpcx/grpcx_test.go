package grpcx

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestClientInterceptorForwardsRequestID(t *testing.T) {
	var got []string
	invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		got = md.Get(RequestIDMetadataKey)
		return nil
	}

	ctx := httpx.ContextWithRequestID(context.Background(), "req-1")
	if err := UnaryClientRequestIDInterceptor()(ctx, "/svc/M", nil, nil, nil, invoker); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 || got[0] != "req-1" {
		t.Fatalf("expected req-1, got %v", got)
	}

	if err := UnaryClientRequestIDInterceptor()(context.Background(), "/svc/M", nil, nil, nil, invoker); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no metadata without an id, got %v", got)
	}
}

func TestServerInterceptorStoresRequestID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "abc"))
	var seen string
	_, err := UnaryServerRequestIDInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/M"}, func(ctx context.Context, _ any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if seen != "abc" {
		t.Fatalf("expected abc, got %q", seen)
	}

	_, _ = UnaryServerRequestIDInterceptor()(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/M"}, func(ctx context.Context, _ any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	if seen == "" || seen == "abc" {
		t.Fatalf("expected a minted id, got %q", seen)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	_, err := UnaryServerRecoveryInterceptor(slog.Default())(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/M"}, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestHealthReadyCheck(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv, hs := NewServer(slog.Default())
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	check := HealthReadyCheck(lis.Addr().String(), "")
	if err := check(context.Background()); err != nil {
		t.Fatalf("expected serving, got %v", err)
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := check(context.Background()); err == nil {
		t.Fatalf("expected error when not serving")
	}
}
