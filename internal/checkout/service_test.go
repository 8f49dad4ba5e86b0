package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/address"
	"github.com/angelmondragon/shopcore/internal/cart"
	"github.com/angelmondragon/shopcore/internal/coupons"
	"github.com/angelmondragon/shopcore/internal/customers"
	"github.com/angelmondragon/shopcore/internal/inventory"
	"github.com/angelmondragon/shopcore/internal/ledger"
	"github.com/angelmondragon/shopcore/internal/orders"
	"github.com/angelmondragon/shopcore/internal/products"
	"github.com/angelmondragon/shopcore/internal/testdb"
	"github.com/angelmondragon/shopcore/pkg/config"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/outbox"
)

type memoryGuard struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{keys: map[string]string{}}
}

func (m *memoryGuard) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryGuard) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] != value {
		return false, nil
	}
	delete(m.keys, key)
	return true, nil
}

func (m *memoryGuard) IdempotencyKey(scope string, parts ...string) string {
	return strings.Join(append([]string{"shop", "idempotency", scope}, parts...), ":")
}

func (m *memoryGuard) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

type fixture struct {
	svc      Service
	conn     *gorm.DB
	guard    *memoryGuard
	customer models.Customer
	shipping models.Address
	billing  models.Address
	category models.Category
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client, conn := testdb.Client(t)
	policy := db.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	inventorySvc, err := inventory.NewService(client, inventory.NewRepository(conn), ledgerSvc, emitter, nil, nil, policy)
	require.NoError(t, err)
	addressSvc, err := address.NewService(client, address.NewRepository(conn))
	require.NoError(t, err)
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	require.NoError(t, err)

	guard := newMemoryGuard()
	svc, err := NewService(Dependencies{
		Tx:          client,
		Orders:      orders.NewRepository(conn),
		Customers:   customers.NewRepository(conn),
		Addresses:   addressSvc,
		Products:    products.NewRepository(conn),
		Carts:       cart.NewRepository(conn),
		Coupons:     couponSvc,
		Inventory:   inventorySvc,
		Outbox:      emitter,
		Idempotency: guard,
	}, config.OrdersConfig{MaxConflictRetries: 3, RetryBaseDelay: time.Millisecond, IdempotencyTTL: time.Minute})
	require.NoError(t, err)

	customer := testdb.Customer(t, conn)
	return fixture{
		svc:      svc,
		conn:     conn,
		guard:    guard,
		customer: customer,
		shipping: testdb.Address(t, conn, customer.ID, enums.AddressTypeShipping),
		billing:  testdb.Address(t, conn, customer.ID, enums.AddressTypeBilling),
		category: testdb.Category(t, conn, "Widgets"),
	}
}

func (f fixture) input(lines ...LineRequest) PlaceOrderInput {
	return PlaceOrderInput{
		CustomerID:        f.customer.ID,
		Items:             lines,
		ShippingAddressID: f.shipping.ID,
		BillingAddressID:  f.billing.ID,
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func reasonOf(err error) string {
	return pkgerrors.As(err).Reason()
}

func TestPlaceOrderPricesLinesAndAppliesCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gadget := testdb.Product(t, f.conn, f.category.ID, "GADGET-1", "19.99", 10)
	widget := testdb.Product(t, f.conn, f.category.ID, "WIDGET-1", "5.00", 3)
	coupon := testdb.Coupon(t, f.conn, "SAVE10", enums.DiscountTypePercentage, "10", nil)

	input := f.input(
		LineRequest{ProductID: gadget.ID, Quantity: 2},
		LineRequest{ProductID: widget.ID, Quantity: 1},
		LineRequest{ProductID: widget.ID, Quantity: 1},
	)
	input.CouponCodes = []string{"save10"}
	input.TaxAmount = dec("3.00")
	input.ShippingAmount = dec("4.50")

	result, err := f.svc.PlaceOrder(ctx, input)
	require.NoError(t, err)
	require.False(t, result.Replayed)
	order := result.Order

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.False(t, order.FromCart)
	require.Len(t, order.Items, 2)
	assert.True(t, order.SubtotalAmount.Equal(dec("49.98")), "subtotal %s", order.SubtotalAmount)
	assert.True(t, order.DiscountAmount.Equal(dec("5.00")), "discount %s", order.DiscountAmount)
	assert.True(t, order.TotalAmount.Equal(dec("52.48")), "total %s", order.TotalAmount)
	assert.True(t, order.TotalAmount.Equal(order.ExpectedTotal()))

	assert.Equal(t, 8, testdb.Stock(t, f.conn, gadget.ID))
	assert.Equal(t, 1, testdb.Stock(t, f.conn, widget.ID))

	var logs []models.InventoryLog
	require.NoError(t, f.conn.Where("order_id = ?", order.ID).Find(&logs).Error)
	require.Len(t, logs, 2)
	for _, entry := range logs {
		assert.Equal(t, enums.InventoryChangeOut, entry.ChangeType)
		assert.Negative(t, entry.QuantityChange)
	}

	var applied []models.OrderCoupon
	require.NoError(t, f.conn.Where("order_id = ?", order.ID).Find(&applied).Error)
	require.Len(t, applied, 1)
	assert.Equal(t, coupon.ID, applied[0].CouponID)
	assert.True(t, applied[0].DiscountAmount.Equal(dec("5.00")))

	var redeemed models.Coupon
	require.NoError(t, f.conn.First(&redeemed, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, redeemed.UsesCount)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("aggregate_id = ?", order.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderPlaced, events[0].EventType)
}

func TestPlaceOrderFromCartRemovesOrderedLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	widget := testdb.Product(t, f.conn, f.category.ID, "WIDGET-1", "5.00", 5)

	carts := cart.NewRepository(f.conn)
	record, err := carts.FindByCustomer(ctx, f.customer.ID)
	require.NoError(t, err)
	require.NoError(t, carts.AddQuantity(ctx, record.ID, widget.ID, 2))

	result, err := f.svc.PlaceOrder(ctx, f.input())
	require.NoError(t, err)
	assert.True(t, result.Order.FromCart)
	require.Len(t, result.Order.Items, 1)
	assert.Equal(t, 2, result.Order.Items[0].Quantity)
	assert.Equal(t, 3, testdb.Stock(t, f.conn, widget.ID))
	assert.Zero(t, testdb.Count(t, f.conn, &models.CartItem{}))

	_, err = f.svc.PlaceOrder(ctx, f.input())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "empty cart: %v", err)
}

func TestPlaceOrderOverQuantityLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plenty := testdb.Product(t, f.conn, f.category.ID, "PLENTY", "1.00", 100)
	scarce := testdb.Product(t, f.conn, f.category.ID, "SCARCE", "1.00", 1)
	testdb.Coupon(t, f.conn, "FIVE", enums.DiscountTypeFixed, "5", nil)

	input := f.input(
		LineRequest{ProductID: plenty.ID, Quantity: 10},
		LineRequest{ProductID: scarce.ID, Quantity: 2},
	)
	input.CouponCodes = []string{"FIVE"}
	_, err := f.svc.PlaceOrder(ctx, input)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeOrderRejected, pkgerrors.CodeOf(err))
	assert.Equal(t, inventory.ReasonInsufficientStock, reasonOf(err))

	assert.Equal(t, 100, testdb.Stock(t, f.conn, plenty.ID))
	assert.Equal(t, 1, testdb.Stock(t, f.conn, scarce.ID))
	for _, model := range []any{&models.Order{}, &models.OrderItem{}, &models.OrderCoupon{}, &models.InventoryLog{}, &models.OutboxEvent{}} {
		assert.Zero(t, testdb.Count(t, f.conn, model), "%T", model)
	}
	var coupon models.Coupon
	require.NoError(t, f.conn.First(&coupon, "code = ?", "FIVE").Error)
	assert.Zero(t, coupon.UsesCount)
}

func TestConcurrentOrdersForScarceStockHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	widget := testdb.Product(t, f.conn, f.category.ID, "WIDGET-1", "10.00", 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.PlaceOrder(context.Background(), f.input(LineRequest{ProductID: widget.ID, Quantity: 3}))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, inventory.ReasonInsufficientStock, reasonOf(err), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, testdb.Stock(t, f.conn, widget.ID))
	assert.EqualValues(t, 1, testdb.Count(t, f.conn, &models.Order{}))
}

func TestLastCouponUseHasOneWinner(t *testing.T) {
	f := newFixture(t)
	widget := testdb.Product(t, f.conn, f.category.ID, "WIDGET-1", "10.00", 50)
	one := 1
	coupon := testdb.Coupon(t, f.conn, "ONCE", enums.DiscountTypeFixed, "2", &one)

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := f.input(LineRequest{ProductID: widget.ID, Quantity: 1})
			input.CouponCodes = []string{"ONCE"}
			_, errs[i] = f.svc.PlaceOrder(context.Background(), input)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, coupons.ReasonExhausted, reasonOf(err), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var stored models.Coupon
	require.NoError(t, f.conn.First(&stored, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, stored.UsesCount)
	assert.Equal(t, 49, testdb.Stock(t, f.conn, widget.ID))
}

func TestIdempotentResubmissionReturnsSameOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	widget := testdb.Product(t, f.conn, f.category.ID, "WIDGET-1", "10.00", 5)

	key := "checkout-42"
	input := f.input(LineRequest{ProductID: widget.ID, Quantity: 2})
	input.IdempotencyKey = &key

	first, err := f.svc.PlaceOrder(ctx, input)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Zero(t, f.guard.held(), "guard released after placement")

	second, err := f.svc.PlaceOrder(ctx, input)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	require.Len(t, second.Order.Items, 1)

	assert.EqualValues(t, 1, testdb.Count(t, f.conn, &models.Order{}))
	assert.Equal(t, 3, testdb.Stock(t, f.conn, widget.ID))
}

func TestIdempotencyGuardRejectsInFlightDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	widget := testdb.Product(t, f.conn, f.category.ID, "WIDGET-1", "10.00", 5)

	key := "in-flight"
	guardKey := f.guard.IdempotencyKey(idempotencyScope, f.customer.ID.String(), key)
	acquired, err := f.guard.SetNX(ctx, guardKey, "other-worker", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	input := f.input(LineRequest{ProductID: widget.ID, Quantity: 1})
	input.IdempotencyKey = &key
	_, err = f.svc.PlaceOrder(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict), "got %v", err)
	assert.True(t, pkgerrors.IsRetryable(err))
	assert.Equal(t, 1, f.guard.held(), "foreign guard left in place")
	assert.Zero(t, testdb.Count(t, f.conn, &models.Order{}))
}

func TestPlaceOrderRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	widget := testdb.Product(t, f.conn, f.category.ID, "WIDGET-1", "10.00", 5)
	retired := testdb.Product(t, f.conn, f.category.ID, "RETIRED", "10.00", 5)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", retired.ID).Update("is_active", false).Error)
	stranger := testdb.Customer(t, f.conn)
	foreign := testdb.Address(t, f.conn, stranger.ID, enums.AddressTypeShipping)

	line := LineRequest{ProductID: widget.ID, Quantity: 1}
	cases := []struct {
		name   string
		mutate func(*PlaceOrderInput)
		code   pkgerrors.Code
		reason string
	}{
		{"zero quantity", func(in *PlaceOrderInput) { in.Items[0].Quantity = 0 }, pkgerrors.CodeValidation, ""},
		{"duplicate coupons", func(in *PlaceOrderInput) { in.CouponCodes = []string{"a", "A"} }, pkgerrors.CodeValidation, ""},
		{"negative tax", func(in *PlaceOrderInput) { in.TaxAmount = dec("-1") }, pkgerrors.CodeValidation, ""},
		{"unknown customer", func(in *PlaceOrderInput) { in.CustomerID = uuid.New() }, pkgerrors.CodeNotFound, ""},
		{"foreign address", func(in *PlaceOrderInput) { in.ShippingAddressID = foreign.ID }, pkgerrors.CodeOrderRejected, address.ReasonAddressNotOwned},
		{"wrong address type", func(in *PlaceOrderInput) { in.ShippingAddressID = f.billing.ID }, pkgerrors.CodeOrderRejected, address.ReasonAddressTypeMismatch},
		{"missing address", func(in *PlaceOrderInput) { in.BillingAddressID = uuid.New() }, pkgerrors.CodeOrderRejected, address.ReasonAddressNotFound},
		{"unknown product", func(in *PlaceOrderInput) { in.Items[0].ProductID = uuid.New() }, pkgerrors.CodeOrderRejected, ReasonProductNotFound},
		{"inactive product", func(in *PlaceOrderInput) { in.Items[0].ProductID = retired.ID }, pkgerrors.CodeOrderRejected, ReasonProductInactive},
		{"unknown coupon", func(in *PlaceOrderInput) { in.CouponCodes = []string{"NOPE"} }, pkgerrors.CodeOrderRejected, coupons.ReasonNotFound},
	}
	for _, tc := range cases {
		input := f.input(line)
		tc.mutate(&input)
		_, err := f.svc.PlaceOrder(ctx, input)
		require.Error(t, err, tc.name)
		assert.Equal(t, tc.code, pkgerrors.CodeOf(err), "%s: %v", tc.name, err)
		if tc.reason != "" {
			assert.Equal(t, tc.reason, reasonOf(err), tc.name)
		}
	}
	assert.Zero(t, testdb.Count(t, f.conn, &models.Order{}))
	assert.Equal(t, 5, testdb.Stock(t, f.conn, widget.ID))
}
