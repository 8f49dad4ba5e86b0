package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/cart"
	"github.com/angelmondragon/shopcore/internal/checkout/helpers"
	"github.com/angelmondragon/shopcore/internal/checkout/reservation"
	"github.com/angelmondragon/shopcore/internal/coupons"
	"github.com/angelmondragon/shopcore/internal/orders"
	"github.com/angelmondragon/shopcore/internal/products"
	"github.com/angelmondragon/shopcore/pkg/config"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/metrics"
	"github.com/angelmondragon/shopcore/pkg/outbox"
	"github.com/angelmondragon/shopcore/pkg/outbox/payloads"
	"github.com/angelmondragon/shopcore/pkg/redis"
	"github.com/angelmondragon/shopcore/pkg/validate"
)

// Rejection reasons for catalog problems found while pricing lines.
const (
	ReasonProductNotFound = "product_not_found"
	ReasonProductInactive = "product_inactive"
)

const (
	idempotencyScope      = "place_order"
	idempotencyConstraint = "ux_orders_customer_idempotency"
	// SQLite reports the columns instead of the index name.
	idempotencyColumn = "orders.idempotency_key"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type addressVerifier interface {
	EnsureOwned(ctx context.Context, tx *gorm.DB, customerID, addressID uuid.UUID, kind enums.AddressType) (*models.Address, error)
}

type couponEngine interface {
	Evaluate(ctx context.Context, tx *gorm.DB, codes []string, subtotal decimal.Decimal, now time.Time) ([]coupons.Application, error)
	Redeem(ctx context.Context, tx *gorm.DB, coupon models.Coupon) error
}

// Service places orders.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
}

// Dependencies groups the collaborators PlaceOrder touches.
type Dependencies struct {
	Tx          txRunner
	Orders      orders.Repository
	Customers   customerLookup
	Addresses   addressVerifier
	Products    products.Repository
	Carts       cart.CartRepository
	Coupons     couponEngine
	Inventory   reservation.StockApplier
	Outbox      outbox.Emitter
	Idempotency redis.IdempotencyStore
	Metrics     *metrics.OrderMetrics
	Logger      *logger.Logger
}

type service struct {
	tx          txRunner
	orders      orders.Repository
	customers   customerLookup
	addresses   addressVerifier
	products    products.Repository
	carts       cart.CartRepository
	coupons     couponEngine
	inventory   reservation.StockApplier
	outbox      outbox.Emitter
	idempotency redis.IdempotencyStore
	metrics     *metrics.OrderMetrics
	logg        *logger.Logger
	cfg         config.OrdersConfig
	now         func() time.Time
}

// NewService builds the checkout service. Idempotency may be nil, in which
// case concurrent duplicates are settled by the database unique index alone.
func NewService(deps Dependencies, cfg config.OrdersConfig) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Customers == nil {
		return nil, fmt.Errorf("customer lookup required")
	}
	if deps.Addresses == nil {
		return nil, fmt.Errorf("address verifier required")
	}
	if deps.Products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Coupons == nil {
		return nil, fmt.Errorf("coupon engine required")
	}
	if deps.Inventory == nil {
		return nil, fmt.Errorf("inventory applier required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:          deps.Tx,
		orders:      deps.Orders,
		customers:   deps.Customers,
		addresses:   deps.Addresses,
		products:    deps.Products,
		carts:       deps.Carts,
		coupons:     deps.Coupons,
		inventory:   deps.Inventory,
		outbox:      deps.Outbox,
		idempotency: deps.Idempotency,
		metrics:     deps.Metrics,
		logg:        logg,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	started := time.Now()
	result, err := s.placeOrder(ctx, input)
	s.metrics.ObservePlacement(outcome(result, err), time.Since(started))
	return result, err
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	input = normalize(input)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithCustomerID(ctx, input.CustomerID.String())

	if _, err := s.customers.FindByID(ctx, input.CustomerID); err != nil {
		return nil, err
	}

	if input.IdempotencyKey != nil {
		if existing, err := s.replay(ctx, input.CustomerID, *input.IdempotencyKey); err != nil || existing != nil {
			return existing, err
		}
		release, err := s.acquireGuard(ctx, input.CustomerID, *input.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	policy := db.PolicyFor(s.cfg)
	policy.OnRetry = func(attempt int, err error) {
		s.metrics.IncConflictRetry()
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "retrying order placement after conflict")
	}

	var order *models.Order
	err := db.RetryOnConflict(ctx, policy, func(ctx context.Context) error {
		placed, err := s.placeInTx(ctx, input)
		if err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil {
		if input.IdempotencyKey != nil && isIdempotencyViolation(err) {
			existing, replayErr := s.replay(ctx, input.CustomerID, *input.IdempotencyKey)
			if replayErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"total_amount": order.TotalAmount.String(),
		"lines":        len(order.Items),
		"from_cart":    order.FromCart,
	})
	s.logg.Info(logCtx, "order placed")
	return &PlaceOrderResult{Order: order}, nil
}

// placeInTx runs one attempt. Every write happens in a single transaction so
// a rejection anywhere leaves no trace.
func (s *service) placeInTx(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.addresses.EnsureOwned(ctx, tx, input.CustomerID, input.ShippingAddressID, enums.AddressTypeShipping); err != nil {
			return err
		}
		if _, err := s.addresses.EnsureOwned(ctx, tx, input.CustomerID, input.BillingAddressID, enums.AddressTypeBilling); err != nil {
			return err
		}

		lines, cartID, err := s.resolveLines(ctx, tx, input)
		if err != nil {
			return err
		}

		items, err := s.priceLines(ctx, tx, lines)
		if err != nil {
			return err
		}

		now := s.now()
		applied, err := s.coupons.Evaluate(ctx, tx, input.CouponCodes, helpers.Subtotal(items), now)
		if err != nil {
			return err
		}

		placed := &models.Order{
			CustomerID:        input.CustomerID,
			ShippingAddressID: input.ShippingAddressID,
			BillingAddressID:  input.BillingAddressID,
			Status:            enums.OrderStatusPending,
			TaxAmount:         input.TaxAmount,
			ShippingAmount:    input.ShippingAmount,
			IdempotencyKey:    input.IdempotencyKey,
			FromCart:          cartID != nil,
			OrderDate:         now,
			Items:             items,
			Coupons:           make([]models.OrderCoupon, 0, len(applied)),
		}
		for _, application := range applied {
			placed.Coupons = append(placed.Coupons, models.OrderCoupon{
				CouponID:       application.Coupon.ID,
				DiscountAmount: application.Discount,
			})
		}
		placed.RecomputeTotal()

		if err := s.orders.WithTx(tx).Create(ctx, placed); err != nil {
			return err
		}
		if _, err := reservation.ReserveInventory(ctx, tx, s.inventory, placed.ID, lines); err != nil {
			return err
		}
		for _, application := range applied {
			if err := s.coupons.Redeem(ctx, tx, application.Coupon); err != nil {
				return err
			}
		}
		if cartID != nil {
			if _, err := s.carts.WithTx(tx).RemoveProducts(ctx, *cartID, helpers.ProductIDs(lines)); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   placed.ID,
			Actor:         outbox.CustomerActor(input.CustomerID),
			OccurredAt:    now,
			Data:          placedEvent(placed, applied),
		}); err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// resolveLines returns the explicit lines, or the cart's lines together with
// the cart id when none were given.
func (s *service) resolveLines(ctx context.Context, tx *gorm.DB, input PlaceOrderInput) ([]helpers.Line, *uuid.UUID, error) {
	if len(input.Items) > 0 {
		lines := make([]helpers.Line, 0, len(input.Items))
		for _, item := range input.Items {
			lines = append(lines, helpers.Line{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		return helpers.MergeLines(lines), nil, nil
	}

	record, err := s.carts.WithTx(tx).FindByCustomer(ctx, input.CustomerID)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, nil, err
	}
	if record == nil || len(record.Items) == 0 {
		return nil, nil, validate.Field("items", "order has no lines and the cart is empty")
	}
	return helpers.LinesFromCart(record.Items), &record.ID, nil
}

// priceLines snapshots the current price of every line's product.
func (s *service) priceLines(ctx context.Context, tx *gorm.DB, lines []helpers.Line) ([]models.OrderItem, error) {
	repo := s.products.WithTx(tx)
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, err := repo.FindByID(ctx, line.ProductID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, productRejected(ReasonProductNotFound, line.ProductID)
			}
			return nil, err
		}
		if !product.IsActive {
			return nil, productRejected(ReasonProductInactive, line.ProductID)
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		})
	}
	return items, nil
}

// replay returns the order already placed under key, or nil when there is
// none.
func (s *service) replay(ctx context.Context, customerID uuid.UUID, key string) (*PlaceOrderResult, error) {
	existing, err := s.orders.FindByIdempotencyKey(ctx, customerID, key)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, existing.ID.String()), "order replayed for idempotency key")
	return &PlaceOrderResult{Order: existing, Replayed: true}, nil
}

// acquireGuard marks key as in flight so a concurrent duplicate backs off
// before doing any work. The returned func releases the mark.
func (s *service) acquireGuard(ctx context.Context, customerID uuid.UUID, key string) (func(), error) {
	if s.idempotency == nil {
		return func() {}, nil
	}
	guardKey := s.idempotency.IdempotencyKey(idempotencyScope, customerID.String(), key)
	token := uuid.NewString()
	acquired, err := s.idempotency.SetNX(ctx, guardKey, token, s.cfg.IdempotencyTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency guard unavailable")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "order with this idempotency key is already in flight")
	}
	return func() {
		if _, err := s.idempotency.CompareAndDelete(context.WithoutCancel(ctx), guardKey, token); err != nil {
			s.logg.Error(ctx, "release idempotency guard", err)
		}
	}, nil
}

func normalize(input PlaceOrderInput) PlaceOrderInput {
	if len(input.CouponCodes) > 0 {
		codes := make([]string, 0, len(input.CouponCodes))
		for _, code := range input.CouponCodes {
			codes = append(codes, coupons.NormalizeCode(code))
		}
		input.CouponCodes = codes
	}
	if input.IdempotencyKey != nil {
		key := strings.TrimSpace(*input.IdempotencyKey)
		if key == "" {
			input.IdempotencyKey = nil
		} else {
			input.IdempotencyKey = &key
		}
	}
	return input
}

func isIdempotencyViolation(err error) bool {
	return db.IsUniqueViolation(err, idempotencyConstraint) || db.IsUniqueViolation(err, idempotencyColumn)
}

func productRejected(reason string, productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeOrderRejected, "product cannot be ordered").
		WithDetails(map[string]any{"reason": reason, "product_id": productID.String()})
}

func placedEvent(order *models.Order, applied []coupons.Application) payloads.OrderPlacedEvent {
	lines := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	codes := make([]string, 0, len(applied))
	for _, application := range applied {
		codes = append(codes, application.Coupon.Code)
	}
	return payloads.OrderPlacedEvent{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		Lines:          lines,
		CouponCodes:    codes,
		SubtotalAmount: order.SubtotalAmount,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
		FromCart:       order.FromCart,
		PlacedAt:       order.OrderDate,
	}
}

func outcome(result *PlaceOrderResult, err error) string {
	switch {
	case err == nil && result != nil && result.Replayed:
		return metrics.OutcomeReplayed
	case err == nil:
		return metrics.OutcomePlaced
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeOrderRejected, pkgerrors.CodeValidation, pkgerrors.CodeNotFound:
		return metrics.OutcomeRejected
	case pkgerrors.CodeConcurrencyConflict:
		return metrics.OutcomeConflict
	}
	return metrics.OutcomeError
}
