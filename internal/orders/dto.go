package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopcore/pkg/enums"
	"github.com/angelmondragon/shopcore/pkg/outbox"
)

// RecordPaymentInput opens a pending payment against an order.
type RecordPaymentInput struct {
	OrderID uuid.UUID           `json:"order_id" validate:"required"`
	Method  enums.PaymentMethod `json:"payment_method" validate:"required,oneof=credit_card debit_card paypal bank_transfer cash_on_delivery gift_card"`
	Amount  decimal.Decimal     `json:"amount" validate:"gt=0"`
}

// ConfirmPaymentInput settles a pending payment. TransactionID is the
// gateway reference and must be unique across payments when present.
type ConfirmPaymentInput struct {
	PaymentID     uuid.UUID `json:"payment_id" validate:"required"`
	Success       bool      `json:"success"`
	TransactionID *string   `json:"transaction_id" validate:"omitempty,min=1,max=255"`
}

// TransitionInput requests a status change. Actor defaults to the orders
// system actor.
type TransitionInput struct {
	OrderID uuid.UUID         `json:"order_id" validate:"required"`
	Status  enums.OrderStatus `json:"status" validate:"required"`
	Actor   *outbox.ActorRef  `json:"-"`
}
