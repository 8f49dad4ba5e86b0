package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/ledger"
	"github.com/angelmondragon/shopcore/internal/testdb"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/outbox"
	"github.com/angelmondragon/shopcore/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB, *outbox.Repository) {
	t.Helper()
	client, conn := testdb.Client(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	outboxRepo := outbox.NewRepository(conn)
	svc, err := NewService(client, NewRepository(conn), ledgerSvc, outbox.NewService(outboxRepo, nil), nil, nil, db.RetryPolicy{MaxRetries: 3})
	require.NoError(t, err)
	return svc, conn, outboxRepo
}

func TestAdjustInventoryAppendsLedgerAndEvent(t *testing.T) {
	svc, conn, outboxRepo := newTestService(t)
	ctx := context.Background()
	category := testdb.Category(t, conn, "Widgets")
	product := testdb.Product(t, conn, category.ID, "WIDGET-1", "10.00", 5)

	entry, err := svc.AdjustInventory(ctx, AdjustInput{ProductID: product.ID, Delta: -2, Reason: "damaged in warehouse"})
	require.NoError(t, err)
	assert.Equal(t, enums.InventoryChangeAdjustment, entry.ChangeType)
	assert.Equal(t, -2, entry.QuantityChange)
	assert.Equal(t, 3, entry.NewStockLevel)
	assert.Nil(t, entry.OrderID)
	assert.Equal(t, 3, testdb.Stock(t, conn, product.ID))

	events, err := outboxRepo.ListByAggregate(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventInventoryAdjusted, events[0].EventType)
}

func TestAdjustInventoryRejectsNegativeResult(t *testing.T) {
	svc, conn, _ := newTestService(t)
	category := testdb.Category(t, conn, "Widgets")
	product := testdb.Product(t, conn, category.ID, "WIDGET-1", "10.00", 2)

	_, err := svc.AdjustInventory(context.Background(), AdjustInput{ProductID: product.ID, Delta: -3, Reason: "count"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeOrderRejected, typed.Code())
	assert.Equal(t, ReasonInsufficientStock, typed.Reason())

	assert.Equal(t, 2, testdb.Stock(t, conn, product.ID))
	assert.Zero(t, testdb.Count(t, conn, &models.InventoryLog{}))
	assert.Zero(t, testdb.Count(t, conn, &models.OutboxEvent{}))
}

func TestAdjustInventoryValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []AdjustInput{
		{ProductID: uuid.New(), Delta: 0, Reason: "noop"},
		{ProductID: uuid.New(), Delta: 1},
		{Delta: 1, Reason: "missing product"},
	}
	for _, input := range cases {
		_, err := svc.AdjustInventory(ctx, input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %+v: %v", input, err)
	}

	_, err := svc.AdjustInventory(ctx, AdjustInput{ProductID: uuid.New(), Delta: 1, Reason: "ghost"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestReceiveStockAndHistory(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	category := testdb.Category(t, conn, "Widgets")
	product := testdb.Product(t, conn, category.ID, "WIDGET-1", "10.00", 0)

	_, err := svc.ReceiveStock(ctx, ReceiveInput{ProductID: product.ID, Quantity: 10})
	require.NoError(t, err)
	_, err = svc.AdjustInventory(ctx, AdjustInput{ProductID: product.ID, Delta: -1, Reason: "shrinkage"})
	require.NoError(t, err)

	_, err = svc.ReceiveStock(ctx, ReceiveInput{ProductID: product.ID, Quantity: 0})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	page, err := svc.History(ctx, product.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, enums.InventoryChangeAdjustment, page.Entries[0].ChangeType)
	assert.Equal(t, 9, page.Entries[0].NewStockLevel)
	assert.Equal(t, enums.InventoryChangeIn, page.Entries[1].ChangeType)
	assert.Equal(t, "stock received", page.Entries[1].Reason)
	assert.Empty(t, page.NextCursor)
}

func TestApplyDetectsLostUpdate(t *testing.T) {
	_, conn := testdb.Client(t)
	category := testdb.Category(t, conn, "Widgets")
	product := testdb.Product(t, conn, category.ID, "WIDGET-1", "10.00", 5)

	repo := NewRepository(conn)
	ctx := context.Background()
	err := repo.CompareAndSetStock(ctx, product.ID, 4, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrencyConflict), "got %v", err)
	assert.Equal(t, 5, testdb.Stock(t, conn, product.ID))

	require.NoError(t, repo.CompareAndSetStock(ctx, product.ID, 5, 1))
	assert.Equal(t, 1, testdb.Stock(t, conn, product.ID))
}

func TestConcurrentAdjustmentsNeverGoNegative(t *testing.T) {
	svc, conn, _ := newTestService(t)
	category := testdb.Category(t, conn, "Widgets")
	product := testdb.Product(t, conn, category.ID, "WIDGET-1", "10.00", 5)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AdjustInventory(context.Background(), AdjustInput{ProductID: product.ID, Delta: -2, Reason: "pick"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case pkgerrors.IsCode(err, pkgerrors.CodeOrderRejected):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, success)
	assert.Equal(t, workers-2, rejected)
	assert.Equal(t, 1, testdb.Stock(t, conn, product.ID))
}
