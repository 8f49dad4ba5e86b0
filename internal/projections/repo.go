package projections

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/repo"
	"github.com/angelmondragon/shopcore/pkg/pagination"
)

// The selects mirror the product_details and order_summaries views but stay
// portable so they also run on SQLite.
const productDetailsSelect = `
	p.id AS product_id,
	p.sku,
	p.name,
	p.description,
	p.price,
	p.stock_quantity,
	p.is_active,
	p.category_id,
	c.name AS category_name,
	(
		SELECT pi.image_url
		FROM product_images pi
		WHERE pi.product_id = p.id
		ORDER BY pi.is_primary DESC, pi.sort_order ASC, pi.created_at ASC
		LIMIT 1
	) AS primary_image_url,
	COALESCE((SELECT AVG(r.rating) FROM reviews r WHERE r.product_id = p.id AND r.is_approved = ?), 0) AS average_rating,
	(SELECT COUNT(*) FROM reviews r WHERE r.product_id = p.id AND r.is_approved = ?) AS review_count,
	p.created_at`

const orderSummarySelect = `
	o.id AS order_id,
	o.customer_id,
	cu.first_name || ' ' || cu.last_name AS customer_name,
	o.status,
	o.subtotal_amount,
	o.discount_amount,
	o.tax_amount,
	o.shipping_amount,
	o.total_amount,
	o.order_date,
	(
		SELECT pa.status
		FROM payments pa
		WHERE pa.order_id = o.id
		ORDER BY pa.created_at DESC, pa.id DESC
		LIMIT 1
	) AS payment_status,
	COALESCE((SELECT SUM(oi.quantity) FROM order_items oi WHERE oi.order_id = o.id), 0) AS item_count,
	o.created_at`

// Repository runs the read-only projection queries.
type Repository interface {
	ProductDetails(ctx context.Context, productID uuid.UUID) (*ProductDetails, error)
	ListProductDetails(ctx context.Context, limit int, cursor *pagination.Cursor) ([]ProductDetails, error)
	OrderSummary(ctx context.Context, orderID uuid.UUID) (*OrderSummary, error)
	ListOrderSummaries(ctx context.Context, customerID *uuid.UUID, limit int, cursor *pagination.Cursor) ([]OrderSummary, error)
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) products(ctx context.Context) *gorm.DB {
	return r.base.DB(ctx).
		Table("products p").
		Select(productDetailsSelect, true, true).
		Joins("JOIN categories c ON c.id = p.category_id")
}

func (r *repository) orders(ctx context.Context) *gorm.DB {
	return r.base.DB(ctx).
		Table("orders o").
		Select(orderSummarySelect).
		Joins("JOIN customers cu ON cu.id = o.customer_id")
}

func (r *repository) ProductDetails(ctx context.Context, productID uuid.UUID) (*ProductDetails, error) {
	var row ProductDetails
	if err := r.products(ctx).Where("p.id = ?", productID).Take(&row).Error; err != nil {
		return nil, repo.NotFound(err, "product")
	}
	return &row, nil
}

func (r *repository) ListProductDetails(ctx context.Context, limit int, cursor *pagination.Cursor) ([]ProductDetails, error) {
	query := r.products(ctx).Scopes(cursor.After("p"))
	var rows []ProductDetails
	if err := query.
		Order("p.created_at DESC").
		Order("p.id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) OrderSummary(ctx context.Context, orderID uuid.UUID) (*OrderSummary, error) {
	var row OrderSummary
	if err := r.orders(ctx).Where("o.id = ?", orderID).Take(&row).Error; err != nil {
		return nil, repo.NotFound(err, "order")
	}
	return &row, nil
}

func (r *repository) ListOrderSummaries(ctx context.Context, customerID *uuid.UUID, limit int, cursor *pagination.Cursor) ([]OrderSummary, error) {
	query := r.orders(ctx)
	if customerID != nil {
		query = query.Where("o.customer_id = ?", *customerID)
	}
	query = query.Scopes(cursor.After("o"))
	var rows []OrderSummary
	if err := query.
		Order("o.created_at DESC").
		Order("o.id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
