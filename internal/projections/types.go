package projections

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductDetails is a catalog row enriched with category, image and rating
// aggregates. Only approved reviews are counted.
type ProductDetails struct {
	ProductID       uuid.UUID       `gorm:"column:product_id" json:"product_id"`
	SKU             string          `gorm:"column:sku" json:"sku"`
	Name            string          `gorm:"column:name" json:"name"`
	Description     *string         `gorm:"column:description" json:"description,omitempty"`
	Price           decimal.Decimal `gorm:"column:price" json:"price"`
	StockQuantity   int             `gorm:"column:stock_quantity" json:"stock_quantity"`
	IsActive        bool            `gorm:"column:is_active" json:"is_active"`
	CategoryID      uuid.UUID       `gorm:"column:category_id" json:"category_id"`
	CategoryName    string          `gorm:"column:category_name" json:"category_name"`
	PrimaryImageURL *string         `gorm:"column:primary_image_url" json:"primary_image_url,omitempty"`
	AverageRating   decimal.Decimal `gorm:"column:average_rating" json:"average_rating"`
	ReviewCount     int64           `gorm:"column:review_count" json:"review_count"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
}

// OrderSummary is an order header with customer name, latest payment status
// and the number of units ordered.
type OrderSummary struct {
	OrderID        uuid.UUID       `gorm:"column:order_id" json:"order_id"`
	CustomerID     uuid.UUID       `gorm:"column:customer_id" json:"customer_id"`
	CustomerName   string          `gorm:"column:customer_name" json:"customer_name"`
	Status         string          `gorm:"column:status" json:"status"`
	SubtotalAmount decimal.Decimal `gorm:"column:subtotal_amount" json:"subtotal_amount"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"column:tax_amount" json:"tax_amount"`
	ShippingAmount decimal.Decimal `gorm:"column:shipping_amount" json:"shipping_amount"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount" json:"total_amount"`
	OrderDate      time.Time       `gorm:"column:order_date" json:"order_date"`
	PaymentStatus  *string         `gorm:"column:payment_status" json:"payment_status,omitempty"`
	ItemCount      int64           `gorm:"column:item_count" json:"item_count"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"created_at"`
}

// ProductPage is one page of ProductDetails, newest first.
type ProductPage struct {
	Products   []ProductDetails `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// OrderPage is one page of OrderSummary, newest first.
type OrderPage struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
