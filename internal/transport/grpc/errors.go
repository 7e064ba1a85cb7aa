package grpc

import (
	"context"
	"errors"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatusErr переводит доменную ошибку движка в gRPC-статус.
func ToStatusErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	// ниже резерва: запрос корректен, мешает состояние склада
	var qe *service.InvalidQuantityError
	if errors.As(err, &qe) && qe.Reason == service.QuantityBelowReserved {
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrPrescriptionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidQuantity):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrPrescriptionRequired),
		errors.Is(err, service.ErrPrescriptionNotApproved),
		errors.Is(err, service.ErrPrescriptionExpired),
		errors.Is(err, service.ErrPrescriptionAlreadyReviewed),
		errors.Is(err, service.ErrHasActiveProducts),
		errors.Is(err, service.ErrCategoryInactive),
		errors.Is(err, service.ErrProductInactive):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrPrescriptionOwnershipMismatch):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Errorf(codes.Internal, "internal: %v", err)
	}
}

// ErrorMappingUnaryServerInterceptor переводит ошибки обработчиков через ToStatusErr,
// чтобы логирование и клиент видели доменный код.
func ErrorMappingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		return resp, ToStatusErr(err)
	}
}
