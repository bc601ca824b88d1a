// Package dbtest opens throwaway sqlite databases carrying the pallet
// schema for repository and service tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE zones (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  center TEXT,
  radius_km REAL,
  country_code TEXT,
  postcode_prefixes TEXT,
  cities TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE producers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  region TEXT NOT NULL DEFAULT '',
  location TEXT,
  pickup_zone_id TEXT,
  quantity_rule TEXT NOT NULL DEFAULT 'multiple',
  quantity_step INTEGER NOT NULL DEFAULT 6,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE wines (
  id TEXT PRIMARY KEY,
  producer_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  price_band TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE pallets (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  pickup_zone_id TEXT NOT NULL,
  delivery_zone_id TEXT NOT NULL,
  bottle_capacity INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'OPEN',
  is_complete INTEGER NOT NULL DEFAULT 0,
  completed_at DATETIME,
  payment_deadline DATETIME,
  cost_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_reservations (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  pallet_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'placed',
  payment_deadline DATETIME,
  shipping_cost_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_reservation_items (
  id TEXT PRIMARY KEY,
  reservation_id TEXT NOT NULL,
  wine_id TEXT NOT NULL,
  producer_id TEXT NOT NULL,
  quantity INTEGER NOT NULL
);`,
	`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  wine_id TEXT NOT NULL,
  producer_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price_band TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
}

// Open returns an isolated in-memory database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:palletwine_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
