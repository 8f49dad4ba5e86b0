package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore/pkg/db/models"
)

// LineRequest asks for Quantity units of a product.
type LineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

// PlaceOrderInput describes an order submission. An empty Items list orders
// the contents of the customer's cart.
type PlaceOrderInput struct {
	CustomerID        uuid.UUID       `json:"customer_id" validate:"required"`
	Items             []LineRequest   `json:"items" validate:"omitempty,dive"`
	ShippingAddressID uuid.UUID       `json:"shipping_address_id" validate:"required"`
	BillingAddressID  uuid.UUID       `json:"billing_address_id" validate:"required"`
	CouponCodes       []string        `json:"coupon_codes" validate:"omitempty,unique,dive,required,max=50"`
	TaxAmount         decimal.Decimal `json:"tax_amount" validate:"gte=0"`
	ShippingAmount    decimal.Decimal `json:"shipping_amount" validate:"gte=0"`
	IdempotencyKey    *string         `json:"idempotency_key" validate:"omitempty,min=1,max=255"`
}

// PlaceOrderResult is the placed order. Replayed is set when an earlier
// submission with the same idempotency key produced it.
type PlaceOrderResult struct {
	Order    *models.Order
	Replayed bool
}
