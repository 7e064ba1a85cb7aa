package service

import (
	"context"
	"time"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"github.com/google/uuid"
)

type GateItem struct {
	ProductID uuid.UUID
	UserID    uuid.UUID
}

// PrescriptionGate только читает.
type PrescriptionGate struct {
	repo *repository.Repository
	now  func() time.Time
}

func NewPrescriptionGate(repo *repository.Repository) *PrescriptionGate {
	return &PrescriptionGate{repo: repo, now: time.Now}
}

func (g *PrescriptionGate) CheckRequirement(ctx context.Context, items []GateItem, prescriptionID *uuid.UUID) error {
	return typed("check prescription", g.check(ctx, g.repo, items, prescriptionID))
}

// check работает на переданном наборе репо, чтобы проверка шла внутри транзакции перехода.
func (g *PrescriptionGate) check(ctx context.Context, repo *repository.Repository, items []GateItem, prescriptionID *uuid.UUID) error {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}

	products, err := repo.Products.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}

	var rxNames []string
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return &NotFoundError{Entity: models.TargetProduct, ID: id}
		}
		if p.RequiresPrescription {
			rxNames = append(rxNames, p.Name)
		}
	}
	if len(rxNames) == 0 {
		return nil
	}
	if prescriptionID == nil {
		return &PrescriptionRequiredError{ProductNames: rxNames}
	}

	rx, err := repo.Prescriptions.GetByID(ctx, *prescriptionID)
	if err != nil {
		return err
	}
	if rx == nil {
		return ErrPrescriptionNotFound
	}
	if rx.Status != models.PrescriptionApproved {
		return &PrescriptionNotApprovedError{Status: rx.Status}
	}
	if rx.IsExpired(g.now()) {
		return ErrPrescriptionExpired
	}
	for _, it := range items {
		if it.UserID != rx.UserID {
			return ErrPrescriptionOwnershipMismatch
		}
	}
	return nil
}
