package migrate

import (
	"context"
	"fmt"

	"github.com/shawon2210/Online24Pharmacy-sub001/internal/database"
	"github.com/shawon2210/Online24Pharmacy-sub001/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateStatusChecks     bool // допустимые значения статусов
	CreateIndexes          bool // составные индексы под выборки
	CreateFKsViaSQL        bool // FK через Exec после AutoMigrate
	CreateUpdatedAtTrigger bool // триггеры updated_at
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateStatusChecks:     true,
		CreateIndexes:          true,
		CreateFKsViaSQL:        true,
		CreateUpdatedAtTrigger: true,
	}
}

func AllModels() []any {
	return []any{
		&models.Category{},
		&models.Subcategory{},
		&models.Product{},
		&models.CartItem{},
		&models.WishlistItem{},
		&models.Prescription{},
		&models.Order{},
		&models.OrderItem{},
		&models.Reservation{},
		&models.AuditRecord{},
		&models.StockMovement{},
		&models.Notification{},
	}
}

// MigrateDB создаёт схему. CHECK-и уровня колонок описаны тегами моделей и
// создаются на обоих диалектах; всё остальное: только для PostgreSQL.
func MigrateDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы аптеки")
	db = db.WithContext(ctx)

	if err := db.AutoMigrate(AllModels()...); err != nil {
		log.Error("AutoMigrate error", zap.Error(err))
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("Таблицы созданы")

	if database.IsSQLite(db) {
		log.Info("SQLite: пропускаем триггеры, FK и дополнительные CHECK-и")
		return nil
	}

	if opt.CreateUpdatedAtTrigger {
		if err := exec(db, log, "triggers", updatedAtTriggersSQL); err != nil {
			return err
		}
		log.Info("Триггеры созданы")
	}

	if opt.CreateStatusChecks {
		for name, stmt := range statusChecksSQL {
			if err := exec(db, log, name, stmt); err != nil {
				return err
			}
		}
		log.Info("CHECK-и статусов созданы")
	}

	if opt.CreateIndexes {
		for name, stmt := range indexesSQL {
			if err := exec(db, log, name, stmt); err != nil {
				return err
			}
		}
		log.Info("Индексы созданы")
	}

	if opt.CreateFKsViaSQL {
		for name, stmt := range foreignKeysSQL {
			if err := exec(db, log, name, stmt); err != nil {
				return err
			}
		}
		log.Info("Внешние ключи созданы")
	}

	log.Info("Миграция базы аптеки успешно завершена")
	return nil
}

func exec(db *gorm.DB, log *zap.Logger, name, stmt string) error {
	if err := db.Exec(stmt).Error; err != nil {
		log.Error("migration step failed", zap.String("step", name), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

const updatedAtTriggersSQL = `
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_products_updated ON products;
CREATE TRIGGER trg_products_updated BEFORE UPDATE ON products
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_orders_updated ON orders;
CREATE TRIGGER trg_orders_updated BEFORE UPDATE ON orders
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_reservations_updated ON reservations;
CREATE TRIGGER trg_reservations_updated BEFORE UPDATE ON reservations
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`

var statusChecksSQL = map[string]string{
	"chk orders.status": `
ALTER TABLE orders
	DROP CONSTRAINT IF EXISTS chk_orders_status_allowed,
	ADD CONSTRAINT chk_orders_status_allowed
	CHECK (status IN ('PENDING','CONFIRMED','PROCESSING','SHIPPED','DELIVERED','CANCELLED','REFUNDED'));
`,
	"chk reservations.status": `
ALTER TABLE reservations
	DROP CONSTRAINT IF EXISTS chk_reservations_status_allowed,
	ADD CONSTRAINT chk_reservations_status_allowed
	CHECK (status IN ('RESERVED','RELEASED','COMMITTED'));
`,
	"chk prescriptions.status": `
ALTER TABLE prescriptions
	DROP CONSTRAINT IF EXISTS chk_prescriptions_status_allowed,
	ADD CONSTRAINT chk_prescriptions_status_allowed
	CHECK (status IN ('PENDING','APPROVED','REJECTED'));
`,
	"chk products.discount": `
ALTER TABLE products
	DROP CONSTRAINT IF EXISTS chk_products_discount_below_price,
	ADD CONSTRAINT chk_products_discount_below_price
	CHECK (discount_price IS NULL OR (discount_price > 0 AND discount_price < price));
`,
}

var indexesSQL = map[string]string{
	"ix orders user_created": `
CREATE INDEX IF NOT EXISTS ix_orders_user_created
ON orders (user_id, created_at DESC);
`,
	"ix products category_active": `
CREATE INDEX IF NOT EXISTS ix_products_category_active
ON products (category_id, is_active);
`,
	"ix stock_movements product_created": `
CREATE INDEX IF NOT EXISTS ix_stock_movements_product_created
ON stock_movements (product_id, created_at DESC);
`,
	"ix notifications pending": `
CREATE INDEX IF NOT EXISTS ix_notifications_pending
ON notifications (created_at) WHERE status = 'PENDING';
`,
}

var foreignKeysSQL = map[string]string{
	"fk products.category_id": `
ALTER TABLE products
  DROP CONSTRAINT IF EXISTS fk_products_category,
  ADD CONSTRAINT fk_products_category
    FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE RESTRICT;
`,
	"fk products.subcategory_id": `
ALTER TABLE products
  DROP CONSTRAINT IF EXISTS fk_products_subcategory,
  ADD CONSTRAINT fk_products_subcategory
    FOREIGN KEY (subcategory_id) REFERENCES subcategories(id) ON DELETE RESTRICT;
`,
	"fk subcategories.category_id": `
ALTER TABLE subcategories
  DROP CONSTRAINT IF EXISTS fk_subcategories_category,
  ADD CONSTRAINT fk_subcategories_category
    FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE RESTRICT;
`,
	"fk cart_items.product_id": `
ALTER TABLE cart_items
  DROP CONSTRAINT IF EXISTS fk_cart_items_product,
  ADD CONSTRAINT fk_cart_items_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE;
`,
	"fk reservations.product_id": `
ALTER TABLE reservations
  DROP CONSTRAINT IF EXISTS fk_reservations_product,
  ADD CONSTRAINT fk_reservations_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;
`,
	"fk reservations.order_id": `
ALTER TABLE reservations
  DROP CONSTRAINT IF EXISTS fk_reservations_order,
  ADD CONSTRAINT fk_reservations_order
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE;
`,
	"fk stock_movements.product_id": `
ALTER TABLE stock_movements
  DROP CONSTRAINT IF EXISTS fk_stock_movements_product,
  ADD CONSTRAINT fk_stock_movements_product
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT;
`,
}
