package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound                      = errors.New("not found")
	ErrInvalidQuantity               = errors.New("invalid quantity")
	ErrInsufficientStock             = errors.New("insufficient stock")
	ErrInvalidTransition             = errors.New("invalid status transition")
	ErrPrescriptionRequired          = errors.New("prescription required")
	ErrPrescriptionNotFound          = errors.New("prescription not found")
	ErrPrescriptionNotApproved       = errors.New("prescription not approved")
	ErrPrescriptionExpired           = errors.New("prescription expired")
	ErrPrescriptionOwnershipMismatch = errors.New("prescription belongs to another user")
	ErrPrescriptionAlreadyReviewed   = errors.New("prescription already reviewed")
	ErrHasActiveProducts             = errors.New("has active products")
	ErrCategoryInactive              = errors.New("category or subcategory is inactive")
	ErrProductInactive               = errors.New("product is inactive")
	ErrInternal                      = errors.New("internal failure")
)

// Ошибки ниже несут структурированные поля и матчатся на свой sentinel через errors.Is.

type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string        { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type QuantityReason string

const (
	QuantityNegative      QuantityReason = "negative"
	QuantityNoItems       QuantityReason = "no_items"
	QuantityNotPositive   QuantityReason = "not_positive"
	QuantityAboveMax      QuantityReason = "above_max_order"
	QuantityBelowReserved QuantityReason = "below_reserved"
)

type InvalidQuantityError struct {
	ProductID uuid.UUID
	Quantity  int32
	Reason    QuantityReason
	// Limit: граница, нарушенная запросом. Для below_reserved это число зарезервированных единиц.
	Limit int32
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s: %s (limit %d)", e.Quantity, e.ProductID, e.Reason, e.Limit)
}
func (e *InvalidQuantityError) Is(target error) bool { return target == ErrInvalidQuantity }

type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Available   int32
	Requested   int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: available %d, requested %d", e.ProductName, e.Available, e.Requested)
}
func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type InvalidTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s is not allowed", e.From, e.To)
}
func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

type PrescriptionRequiredError struct {
	ProductNames []string
}

func (e *PrescriptionRequiredError) Error() string {
	return "prescription required for: " + strings.Join(e.ProductNames, ", ")
}
func (e *PrescriptionRequiredError) Is(target error) bool { return target == ErrPrescriptionRequired }

type PrescriptionNotApprovedError struct {
	Status models.PrescriptionStatus
}

func (e *PrescriptionNotApprovedError) Error() string {
	return fmt.Sprintf("prescription status is %s", e.Status)
}
func (e *PrescriptionNotApprovedError) Is(target error) bool {
	return target == ErrPrescriptionNotApproved
}

type HasActiveProductsError struct {
	TargetType string
	TargetID   uuid.UUID
	Count      int64
}

func (e *HasActiveProductsError) Error() string {
	return fmt.Sprintf("%s %s still has %d active products", e.TargetType, e.TargetID, e.Count)
}
func (e *HasActiveProductsError) Is(target error) bool { return target == ErrHasActiveProducts }

// InternalError: сбой хранилища или шины; исходная ошибка доступна через Unwrap.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string        { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *InternalError) Unwrap() error        { return e.Err }
func (e *InternalError) Is(target error) bool { return target == ErrInternal }

// typed оставляет доменные ошибки как есть, остальное заворачивает в InternalError.
func typed(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		ErrNotFound, ErrInvalidQuantity, ErrInsufficientStock, ErrInvalidTransition,
		ErrPrescriptionRequired, ErrPrescriptionNotFound, ErrPrescriptionNotApproved,
		ErrPrescriptionExpired, ErrPrescriptionOwnershipMismatch, ErrPrescriptionAlreadyReviewed,
		ErrHasActiveProducts, ErrCategoryInactive, ErrProductInactive, ErrInternal,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return &InternalError{Op: op, Err: err}
}
