package service

import (
	"context"
	"encoding/json"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionStockSet              = "STOCK_SET"
	ActionOrderCreated          = "ORDER_CREATED"
	ActionOrderStatusChanged    = "ORDER_STATUS_CHANGED"
	ActionCartsInvalidated      = "CARTS_INVALIDATED"
	ActionProductDeactivated    = "PRODUCT_DEACTIVATED"
	ActionProductActivated      = "PRODUCT_ACTIVATED"
	ActionCategoryDeactivated   = "CATEGORY_DEACTIVATED"
	ActionSubcategoryDeactivate = "SUBCATEGORY_DEACTIVATED"
	ActionPrescriptionReviewed  = "PRESCRIPTION_REVIEWED"
)

func jsonOf(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func appendAudit(ctx context.Context, audit repository.AuditRepo, actorID uuid.UUID, action, targetType string, targetID uuid.UUID, before, after any) error {
	return audit.Append(ctx, &models.AuditRecord{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Before:     jsonOf(before),
		After:      jsonOf(after),
	})
}
