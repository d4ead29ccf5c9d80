package grpc

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

func newLoggedServer(buf *bytes.Buffer) *GRPCServer {
	l := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &GRPCServer{logger: logging.NewSlogLogger(l)}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	s := newLoggedServer(&buf)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := s.loggingInterceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}

	out := buf.String()
	if !strings.Contains(out, `"method":"/grpc.health.v1.Health/Check"`) || !strings.Contains(out, `"code":"OK"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestLoggingInterceptor_KeepsStatusError(t *testing.T) {
	var buf bytes.Buffer
	s := newLoggedServer(&buf)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, err := s.loggingInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", status.Code(err))
	}
	if !strings.Contains(buf.String(), `"code":"NotFound"`) {
		t.Fatalf("code not logged: %s", buf.String())
	}
}
