package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ensureID присваивает UUID на стороне приложения, чтобы схема работала
// одинаково на PostgreSQL и SQLite (без gen_random_uuid()).
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

type Category struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name     string    `gorm:"type:text;not null"`
	IsActive bool      `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (Category) TableName() string { return "categories" }

func (c *Category) BeforeCreate(*gorm.DB) error { ensureID(&c.ID); return nil }

type Subcategory struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CategoryID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"type:text;not null"`
	IsActive   bool      `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (Subcategory) TableName() string { return "subcategories" }

func (s *Subcategory) BeforeCreate(*gorm.DB) error { ensureID(&s.ID); return nil }

type Product struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	CategoryID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	SubcategoryID uuid.UUID           `gorm:"type:uuid;not null;index"`
	Name          string              `gorm:"type:text;not null"`
	Price         decimal.Decimal     `gorm:"type:numeric(12,2);not null;check:chk_products_price_positive,price > 0"`
	DiscountPrice decimal.NullDecimal `gorm:"type:numeric(12,2)"`

	// StockQuantity: физический остаток; ReservedQuantity: единицы, удерживаемые
	// открытыми заказами. Доступно к продаже: StockQuantity - ReservedQuantity.
	StockQuantity    int32 `gorm:"not null;default:0;check:chk_products_stock_non_negative,stock_quantity >= 0"`
	ReservedQuantity int32 `gorm:"not null;default:0;check:chk_products_reserved_bounds,reserved_quantity >= 0 AND reserved_quantity <= stock_quantity"`
	MinStockLevel    int32 `gorm:"not null;default:0;check:chk_products_min_stock_non_negative,min_stock_level >= 0"`
	MaxOrderQuantity int32 `gorm:"not null;default:10;check:chk_products_max_order_positive,max_order_quantity > 0"`

	RequiresPrescription bool `gorm:"not null;default:false"`
	IsActive             bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error { ensureID(&p.ID); return nil }

// Available: сколько единиц ещё можно продать.
func (p *Product) Available() int32 {
	return p.StockQuantity - p.ReservedQuantity
}

// SellingPrice: цена со скидкой, если она задана.
func (p *Product) SellingPrice() decimal.Decimal {
	if p.DiscountPrice.Valid {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_cart_items_user_product"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_cart_items_user_product"`
	Quantity  int32     `gorm:"not null;check:chk_cart_items_quantity_positive,quantity >= 1"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }

func (c *CartItem) BeforeCreate(*gorm.DB) error { ensureID(&c.ID); return nil }

type WishlistItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_wishlist_items_user_product"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_wishlist_items_user_product"`
	IsVisible bool      `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (WishlistItem) TableName() string { return "wishlist_items" }

func (w *WishlistItem) BeforeCreate(*gorm.DB) error { ensureID(&w.ID); return nil }

type PrescriptionStatus string

const (
	PrescriptionPending  PrescriptionStatus = "PENDING"
	PrescriptionApproved PrescriptionStatus = "APPROVED"
	PrescriptionRejected PrescriptionStatus = "REJECTED"
)

type Prescription struct {
	ID            uuid.UUID          `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID          `gorm:"type:uuid;not null;index"`
	Status        PrescriptionStatus `gorm:"type:text;not null;default:'PENDING';index"`
	ExpiresAt     *time.Time
	IsReorderable bool `gorm:"not null;default:false"`

	ReviewedBy *uuid.UUID `gorm:"type:uuid"`
	ReviewedAt *time.Time

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (Prescription) TableName() string { return "prescriptions" }

func (p *Prescription) BeforeCreate(*gorm.DB) error { ensureID(&p.ID); return nil }

// IsExpired: одобренный рецепт с прошедшим сроком считается просроченным
// независимо от сохранённого статуса.
func (p *Prescription) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}
