// Package testdb opens isolated in-memory SQLite databases with the full
// schema migrated, plus seed helpers shared by package tests.
package testdb

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
)

// Models lists every table the services touch, in dependency order.
var Models = []any{
	&models.Customer{},
	&models.Address{},
	&models.Category{},
	&models.Product{},
	&models.ProductAttribute{},
	&models.ProductImage{},
	&models.Order{},
	&models.OrderItem{},
	&models.Payment{},
	&models.Review{},
	&models.ShoppingCart{},
	&models.CartItem{},
	&models.Coupon{},
	&models.OrderCoupon{},
	&models.InventoryLog{},
	&models.OutboxEvent{},
	&models.OutboxDLQ{},
}

// Open returns a migrated database limited to one connection so concurrent
// transactions serialize instead of tripping SQLite's table locks.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:shopcore_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(Models...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in a db.Client.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.FromGorm(conn), conn
}

func mustCreate(t testing.TB, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}

// Customer seeds a customer together with its cart.
func Customer(t testing.TB, conn *gorm.DB) models.Customer {
	t.Helper()
	id := uuid.New()
	customer := models.Customer{
		ID:           id,
		Email:        id.String() + "@example.com",
		PasswordHash: "hash",
		FirstName:    "Ada",
		LastName:     "Lovelace",
	}
	mustCreate(t, conn, &customer)
	mustCreate(t, conn, &models.ShoppingCart{CustomerID: customer.ID})
	return customer
}

// Address seeds an address of the given type for customerID.
func Address(t testing.TB, conn *gorm.DB, customerID uuid.UUID, kind enums.AddressType) models.Address {
	t.Helper()
	address := models.Address{
		CustomerID:  customerID,
		AddressType: kind,
		Line1:       "1 Main St",
		City:        "Springfield",
		State:       "IL",
		PostalCode:  "62701",
		Country:     "US",
	}
	mustCreate(t, conn, &address)
	return address
}

// Category seeds a root category.
func Category(t testing.TB, conn *gorm.DB, name string) models.Category {
	t.Helper()
	category := models.Category{Name: name}
	mustCreate(t, conn, &category)
	return category
}

// Product seeds an active product with the given price and stock.
func Product(t testing.TB, conn *gorm.DB, categoryID uuid.UUID, sku string, price string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		CategoryID:    categoryID,
		SKU:           sku,
		Name:          sku,
		Price:         decimal.RequireFromString(price),
		Cost:          decimal.Zero,
		Weight:        decimal.Zero,
		StockQuantity: stock,
		IsActive:      true,
	}
	mustCreate(t, conn, &product)
	return product
}

// Coupon seeds an active coupon valid for a day either side of now.
func Coupon(t testing.TB, conn *gorm.DB, code string, kind enums.DiscountType, value string, maxUses *int) models.Coupon {
	t.Helper()
	now := time.Now().UTC()
	coupon := models.Coupon{
		Code:          code,
		DiscountType:  kind,
		DiscountValue: decimal.RequireFromString(value),
		MinimumOrder:  decimal.Zero,
		MaxUses:       maxUses,
		StartDate:     now.Add(-24 * time.Hour),
		EndDate:       now.Add(24 * time.Hour),
		IsActive:      true,
	}
	mustCreate(t, conn, &coupon)
	return coupon
}

// Order seeds a pending order with one line of product at its current price.
// Stock is left untouched.
func Order(t testing.TB, conn *gorm.DB, customerID, shippingID, billingID uuid.UUID, product models.Product, qty int) models.Order {
	t.Helper()
	order := models.Order{
		CustomerID:        customerID,
		ShippingAddressID: shippingID,
		BillingAddressID:  billingID,
		Status:            enums.OrderStatusPending,
		TaxAmount:         decimal.Zero,
		ShippingAmount:    decimal.Zero,
		OrderDate:         time.Now().UTC(),
		Items: []models.OrderItem{{
			ProductID: product.ID,
			Quantity:  qty,
			UnitPrice: product.Price,
		}},
	}
	order.RecomputeTotal()
	mustCreate(t, conn, &order)
	return order
}

// Stock reads the current stock of a product.
func Stock(t testing.TB, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.Select("stock_quantity").First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product stock: %v", err)
	}
	return product.StockQuantity
}

// Count returns the number of rows in model's table.
func Count(t testing.TB, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}
