package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable catalog item. StockQuantity is the contended counter
// and is only mutated through compare-and-set updates.
type Product struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID    uuid.UUID          `gorm:"column:category_id;type:uuid;not null;index:idx_products_category"`
	SKU           string             `gorm:"column:sku;not null;uniqueIndex:ux_products_sku"`
	Name          string             `gorm:"column:name;not null"`
	Description   *string            `gorm:"column:description"`
	Price         decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null;check:chk_products_price,price >= 0"`
	Cost          decimal.Decimal    `gorm:"column:cost;type:numeric(12,2);not null;check:chk_products_cost,cost >= 0"`
	Weight        decimal.Decimal    `gorm:"column:weight;type:numeric(10,3);not null;check:chk_products_weight,weight >= 0"`
	StockQuantity int                `gorm:"column:stock_quantity;not null;default:0;check:chk_products_stock,stock_quantity >= 0"`
	IsActive      bool               `gorm:"column:is_active;not null"`
	Attributes    []ProductAttribute `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Images        []ProductImage     `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductAttribute is a key/value pair, unique per product and name.
type ProductAttribute struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_attributes_product_name,priority:1"`
	Name      string    `gorm:"column:attribute_name;not null;uniqueIndex:ux_product_attributes_product_name,priority:2"`
	Value     string    `gorm:"column:attribute_value;not null"`
}

func (a *ProductAttribute) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// ProductImage references an externally hosted image for a product.
type ProductImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:idx_product_images_product"`
	URL       string    `gorm:"column:image_url;not null"`
	AltText   *string   `gorm:"column:alt_text"`
	IsPrimary bool      `gorm:"column:is_primary;not null"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *ProductImage) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
