package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/ledger"
	"github.com/angelmondragon/shopcore/internal/testdb"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client, conn := testdb.Client(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(client, NewRepository(conn), ledgerSvc, nil)
	require.NoError(t, err)
	return svc, conn
}

func createInput(categoryID uuid.UUID) CreateInput {
	return CreateInput{
		CategoryID:   categoryID,
		SKU:          " LAMP-01 ",
		Name:         "Desk lamp",
		Price:        decimal.RequireFromString("24.99"),
		Cost:         decimal.RequireFromString("11.50"),
		Weight:       decimal.RequireFromString("1.2"),
		InitialStock: 7,
	}
}

func TestCreateRecordsInitialStock(t *testing.T) {
	svc, conn := newTestService(t)
	category := testdb.Category(t, conn, "Lighting")

	product, err := svc.Create(context.Background(), createInput(category.ID))
	require.NoError(t, err)
	assert.Equal(t, "LAMP-01", product.SKU)
	assert.True(t, product.IsActive)
	assert.Equal(t, 7, testdb.Stock(t, conn, product.ID))

	var entries []models.InventoryLog
	require.NoError(t, conn.Where("product_id = ?", product.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.InventoryChangeIn, entries[0].ChangeType)
	assert.Equal(t, 7, entries[0].QuantityChange)
	assert.Equal(t, 7, entries[0].NewStockLevel)
}

func TestCreateValidatesAndEnforcesUniqueness(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	category := testdb.Category(t, conn, "Lighting")

	negative := createInput(category.ID)
	negative.Price = decimal.RequireFromString("-1")
	_, err := svc.Create(ctx, negative)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.Create(ctx, createInput(uuid.New()))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = svc.Create(ctx, createInput(category.ID))
	require.NoError(t, err)
	_, err = svc.Create(ctx, createInput(category.ID))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConstraint), "got %v", err)
	assert.EqualValues(t, 1, testdb.Count(t, conn, &models.Product{}))
}

func TestPriceAndActiveUpdates(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	category := testdb.Category(t, conn, "Lighting")
	product := testdb.Product(t, conn, category.ID, "LAMP-02", "10.00", 1)

	updated, err := svc.UpdatePrice(ctx, product.ID, decimal.RequireFromString("12.345"))
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("12.35")), "price %s", updated.Price)

	_, err = svc.UpdatePrice(ctx, product.ID, decimal.RequireFromString("-0.01"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	inactive, err := svc.SetActive(ctx, product.ID, false)
	require.NoError(t, err)
	assert.False(t, inactive.IsActive)

	_, err = svc.SetActive(ctx, uuid.New(), true)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpsertAttributeOverwritesValue(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	category := testdb.Category(t, conn, "Lighting")
	product := testdb.Product(t, conn, category.ID, "LAMP-03", "10.00", 1)

	first, err := svc.UpsertAttribute(ctx, product.ID, "color", "black")
	require.NoError(t, err)
	second, err := svc.UpsertAttribute(ctx, product.ID, "color", "white")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "white", second.Value)
	assert.EqualValues(t, 1, testdb.Count(t, conn, &models.ProductAttribute{}))

	_, err = svc.UpsertAttribute(ctx, product.ID, "", "x")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestImagesKeepSinglePrimary(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	category := testdb.Category(t, conn, "Lighting")
	product := testdb.Product(t, conn, category.ID, "LAMP-04", "10.00", 1)

	front, err := svc.AddImage(ctx, AddImageInput{ProductID: product.ID, URL: "https://cdn.example.com/front.jpg", IsPrimary: true})
	require.NoError(t, err)
	side, err := svc.AddImage(ctx, AddImageInput{ProductID: product.ID, URL: "https://cdn.example.com/side.jpg", SortOrder: 1})
	require.NoError(t, err)

	require.NoError(t, svc.SetPrimaryImage(ctx, product.ID, side.ID))

	loaded, err := svc.Get(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Images, 2)
	primary := map[uuid.UUID]bool{}
	for _, image := range loaded.Images {
		primary[image.ID] = image.IsPrimary
	}
	assert.False(t, primary[front.ID])
	assert.True(t, primary[side.ID])

	_, err = svc.AddImage(ctx, AddImageInput{ProductID: product.ID, URL: "not a url"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	err = svc.SetPrimaryImage(ctx, product.ID, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteRestrictedByOrderItems(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	category := testdb.Category(t, conn, "Lighting")
	ordered := testdb.Product(t, conn, category.ID, "LAMP-05", "10.00", 3)
	spare := testdb.Product(t, conn, category.ID, "LAMP-06", "10.00", 3)
	customer := testdb.Customer(t, conn)
	shipping := testdb.Address(t, conn, customer.ID, enums.AddressTypeShipping)
	billing := testdb.Address(t, conn, customer.ID, enums.AddressTypeBilling)
	testdb.Order(t, conn, customer.ID, shipping.ID, billing.ID, ordered, 1)

	_, err := svc.UpsertAttribute(ctx, spare.ID, "size", "M")
	require.NoError(t, err)

	err = svc.Delete(ctx, ordered.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConstraint), "got %v", err)

	require.NoError(t, svc.Delete(ctx, spare.ID))
	assert.EqualValues(t, 1, testdb.Count(t, conn, &models.Product{}))
	assert.Zero(t, testdb.Count(t, conn, &models.ProductAttribute{}))
}
