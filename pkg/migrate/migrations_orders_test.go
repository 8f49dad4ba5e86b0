package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_orders")

	assertContains(t, content, []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE RESTRICT",
		"FOREIGN KEY (shipping_address_id) REFERENCES addresses(id) ON DELETE RESTRICT",
		"CHECK (total_amount = subtotal_amount + tax_amount + shipping_amount - discount_amount)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_customer_idempotency",
		"subtotal numeric(14,2) GENERATED ALWAYS AS (quantity * unit_price) STORED",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT",
		"CHECK (quantity > 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_transaction_id",
		"DROP TABLE IF EXISTS orders",
	})
}

func TestCatalogMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_catalog")

	assertContains(t, content, []string{
		"REFERENCES categories(id) ON DELETE SET NULL",
		"FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE RESTRICT",
		"CHECK (stock_quantity >= 0)",
		"CHECK (price >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_products_sku",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_product_attributes_product_name",
	})
}

func TestCouponsMigrationBoundsUsage(t *testing.T) {
	content := readMigration(t, "create_coupons")

	assertContains(t, content, []string{
		"CHECK (max_uses IS NULL OR uses_count <= max_uses)",
		"CHECK (end_date >= start_date)",
		"CHECK (discount_type <> 'percentage' OR discount_value <= 100)",
		"FOREIGN KEY (coupon_id) REFERENCES coupons(id) ON DELETE RESTRICT",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_order_coupons_order_coupon",
	})
}

func TestReviewsAndCartsMigrationUniqueness(t *testing.T) {
	content := readMigration(t, "create_reviews_and_carts")

	assertContains(t, content, []string{
		"CHECK (rating BETWEEN 1 AND 5)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_reviews_product_customer ON reviews (product_id, customer_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_shopping_carts_customer",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_cart_items_cart_product ON cart_items (cart_id, product_id)",
	})
}

func TestInventoryMigrationIsAppendOnly(t *testing.T) {
	content := readMigration(t, "create_inventory_logs")

	assertContains(t, content, []string{
		"CREATE TABLE IF NOT EXISTS inventory_logs",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
		"CHECK (new_stock_level >= 0)",
		"CREATE TRIGGER trg_inventory_logs_append_only",
		"DROP TABLE IF EXISTS inventory_logs",
	})
}

func TestProjectionViewsMigration(t *testing.T) {
	content := readMigration(t, "create_projection_views")

	assertContains(t, content, []string{
		"CREATE OR REPLACE VIEW product_details",
		"CREATE OR REPLACE VIEW order_summaries",
		"WHERE is_approved",
		"DROP VIEW IF EXISTS order_summaries",
	})
}
