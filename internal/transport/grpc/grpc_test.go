package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestToStatusErr(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{nil, codes.OK},
		{&service.NotFoundError{Entity: models.TargetOrder, ID: uuid.New()}, codes.NotFound},
		{service.ErrPrescriptionNotFound, codes.NotFound},
		{&service.InvalidQuantityError{Quantity: -1, Reason: service.QuantityNegative}, codes.InvalidArgument},
		{&service.InvalidQuantityError{Quantity: 2, Reason: service.QuantityBelowReserved, Limit: 3}, codes.FailedPrecondition},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
		{&service.InvalidTransitionError{From: models.OrderStatusShipped, To: models.OrderStatusCancelled}, codes.FailedPrecondition},
		{&service.InsufficientStockError{Requested: 2}, codes.FailedPrecondition},
		{&service.PrescriptionRequiredError{ProductNames: []string{"x"}}, codes.FailedPrecondition},
		{service.ErrPrescriptionExpired, codes.FailedPrecondition},
		{&service.HasActiveProductsError{Count: 1}, codes.FailedPrecondition},
		{service.ErrPrescriptionOwnershipMismatch, codes.PermissionDenied},
		{fmt.Errorf("wrapped: %w", service.ErrCategoryInactive), codes.FailedPrecondition},
		{&service.InternalError{Op: "x", Err: errors.New("boom")}, codes.Internal},
		{errors.New("unexpected"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(ToStatusErr(tt.err)), "%v", tt.err)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	icpt := RecoveryUnaryServerInterceptor(zap.NewNop())
	_, err := icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"},
		func(context.Context, any) (any, error) { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestErrorMappingInterceptor(t *testing.T) {
	icpt := ErrorMappingUnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}

	_, err := icpt(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, &service.InvalidTransitionError{From: models.OrderStatusDelivered, To: models.OrderStatusRefunded}
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	resp, err := icpt(context.Background(), nil, info, func(context.Context, any) (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestHealthServer(t *testing.T) {
	srv, healthSrv := NewServer(zap.NewNop())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	client := grpc_health_v1.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)

	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	resp, err = client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
