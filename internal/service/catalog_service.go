package service

import (
	"context"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/events"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CatalogService: мягкое удаление товаров и категорий.
type CatalogService struct {
	repo    *repository.Repository
	cascade *CartCascade
	bus     events.Bus
	log     *zap.Logger
}

func NewCatalogService(repo *repository.Repository, cascade *CartCascade, bus events.Bus, log *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, cascade: cascade, bus: bus, log: log}
}

// DeactivateProduct в одной транзакции снимает товар с продажи, чистит корзины
// и скрывает его в избранном. Повторный вызов: no-op.
func (s *CatalogService) DeactivateProduct(ctx context.Context, productID, actorID uuid.UUID) error {
	var (
		users   []uuid.UUID
		changed bool
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		p, err := tx.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Entity: models.TargetProduct, ID: productID}
		}
		if !p.IsActive {
			return nil
		}

		if changed, err = tx.Products.SetActive(ctx, productID, false); err != nil {
			return err
		}
		if _, err := tx.Wishlists.SetVisibilityByProduct(ctx, productID, false); err != nil {
			return err
		}
		if users, err = s.cascade.invalidateTx(ctx, tx, productID, ReasonProductDeactivated); err != nil {
			return err
		}
		return appendAudit(ctx, tx.Audit, actorID, ActionProductDeactivated, models.TargetProduct, productID,
			map[string]any{"is_active": true},
			map[string]any{"is_active": false})
	})
	if err != nil {
		return typed("deactivate product", err)
	}
	if !changed {
		return nil
	}

	s.publish(ctx, events.New(events.ProductDeactivated, events.ProductStatus{ProductID: productID, ActorID: actorID}))
	if len(users) > 0 {
		s.cascade.announce(ctx, productID, ReasonProductDeactivated, users)
	}
	return nil
}

// ActivateProduct возвращает товар в продажу; категория и подкатегория должны быть активны.
func (s *CatalogService) ActivateProduct(ctx context.Context, productID, actorID uuid.UUID) error {
	var changed bool
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		p, err := tx.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return &NotFoundError{Entity: models.TargetProduct, ID: productID}
		}
		if p.IsActive {
			return nil
		}

		// блокируем родителей, чтобы не разойтись с параллельной деактивацией категории
		cat, err := tx.Catalog.GetCategoryForUpdate(ctx, p.CategoryID)
		if err != nil {
			return err
		}
		sub, err := tx.Catalog.GetSubcategoryForUpdate(ctx, p.SubcategoryID)
		if err != nil {
			return err
		}
		if cat == nil || !cat.IsActive || sub == nil || !sub.IsActive {
			return ErrCategoryInactive
		}

		if changed, err = tx.Products.SetActive(ctx, productID, true); err != nil {
			return err
		}
		if _, err := tx.Wishlists.SetVisibilityByProduct(ctx, productID, true); err != nil {
			return err
		}
		return appendAudit(ctx, tx.Audit, actorID, ActionProductActivated, models.TargetProduct, productID,
			map[string]any{"is_active": false},
			map[string]any{"is_active": true})
	})
	if err != nil {
		return typed("activate product", err)
	}
	if changed {
		s.publish(ctx, events.New(events.ProductActivated, events.ProductStatus{ProductID: productID, ActorID: actorID}))
	}
	return nil
}

// DeactivateCategory отказывает, пока под категорией есть активные товары.
// Успешная деактивация выключает и все её подкатегории.
func (s *CatalogService) DeactivateCategory(ctx context.Context, categoryID, actorID uuid.UUID) error {
	var (
		subs    []uuid.UUID
		changed bool
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		c, err := tx.Catalog.GetCategoryForUpdate(ctx, categoryID)
		if err != nil {
			return err
		}
		if c == nil {
			return &NotFoundError{Entity: models.TargetCategory, ID: categoryID}
		}
		if !c.IsActive {
			return nil
		}

		cnt, err := tx.Products.CountActiveByCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		if cnt > 0 {
			return &HasActiveProductsError{TargetType: models.TargetCategory, TargetID: categoryID, Count: cnt}
		}

		if subs, err = tx.Catalog.DeactivateSubcategories(ctx, categoryID); err != nil {
			return err
		}
		if err := tx.Catalog.SetCategoryActive(ctx, categoryID, false); err != nil {
			return err
		}
		changed = true
		return appendAudit(ctx, tx.Audit, actorID, ActionCategoryDeactivated, models.TargetCategory, categoryID,
			map[string]any{"is_active": true},
			map[string]any{"is_active": false, "subcategories": subs})
	})
	if err != nil {
		return typed("deactivate category", err)
	}
	if changed {
		s.publish(ctx, events.New(events.CategoryDeactivated, events.CategoryStatus{
			CategoryID:     categoryID,
			SubcategoryIDs: subs,
			ActorID:        actorID,
		}))
	}
	return nil
}

func (s *CatalogService) DeactivateSubcategory(ctx context.Context, subcategoryID, actorID uuid.UUID) error {
	var (
		categoryID uuid.UUID
		changed    bool
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		sub, err := tx.Catalog.GetSubcategoryForUpdate(ctx, subcategoryID)
		if err != nil {
			return err
		}
		if sub == nil {
			return &NotFoundError{Entity: models.TargetSubcategory, ID: subcategoryID}
		}
		if !sub.IsActive {
			return nil
		}
		categoryID = sub.CategoryID

		cnt, err := tx.Products.CountActiveBySubcategory(ctx, subcategoryID)
		if err != nil {
			return err
		}
		if cnt > 0 {
			return &HasActiveProductsError{TargetType: models.TargetSubcategory, TargetID: subcategoryID, Count: cnt}
		}
		if err := tx.Catalog.SetSubcategoryActive(ctx, subcategoryID, false); err != nil {
			return err
		}
		changed = true
		return appendAudit(ctx, tx.Audit, actorID, ActionSubcategoryDeactivate, models.TargetSubcategory, subcategoryID,
			map[string]any{"is_active": true},
			map[string]any{"is_active": false})
	})
	if err != nil {
		return typed("deactivate subcategory", err)
	}
	if changed {
		s.publish(ctx, events.New(events.SubcategoryDeactivated, events.CategoryStatus{
			CategoryID:     categoryID,
			SubcategoryIDs: []uuid.UUID{subcategoryID},
			ActorID:        actorID,
		}))
	}
	return nil
}

func (s *CatalogService) publish(ctx context.Context, e events.Event) {
	if err := s.bus.Publish(ctx, e); err != nil {
		s.log.Error("catalog event publish failed", zap.String("event", string(e.Type)), zap.Error(err))
	}
}
