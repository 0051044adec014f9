package grpcutil

import (
	"context"
	"log/slog"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoggingUnaryInterceptor(t *testing.T) {
	interceptor := LoggingUnaryInterceptor(slog.Default())
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	t.Run("successful call", func(t *testing.T) {
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return "response", nil
		}

		resp, err := interceptor(context.Background(), "request", info, handler)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if resp != "response" {
			t.Errorf("response = %v, want %v", resp, "response")
		}
	})

	t.Run("failed call", func(t *testing.T) {
		expectedErr := status.Error(codes.NotFound, "not found")
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, expectedErr
		}

		resp, err := interceptor(context.Background(), "request", info, handler)
		if err != expectedErr {
			t.Errorf("error = %v, want %v", err, expectedErr)
		}
		if resp != nil {
			t.Errorf("response = %v, want nil", resp)
		}
	})
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	interceptor := RecoveryUnaryInterceptor(slog.Default())
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		panic("handler exploded")
	}

	resp, err := interceptor(context.Background(), "request", info, handler)
	if resp != nil {
		t.Errorf("response = %v, want nil", resp)
	}
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want %v", status.Code(err), codes.Internal)
	}
}
