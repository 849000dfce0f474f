// Package testdb provides migrated in-memory databases and fixtures for package tests.
package testdb

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pharmadist/m/internal/database"
	"pharmadist/m/internal/migrations"
)

// New opens a fresh in-memory SQLite database with the full schema applied.
func New(t testing.TB) *database.DB {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Run(db))
	return db
}

type Product struct {
	Name          string
	Qty           int64
	Unit          string
	PurchasePrice string
	DefaultPrice  string
	Inactive      bool
}

// AddProduct inserts p and returns its id.
func AddProduct(t testing.TB, db *database.DB, p Product) int64 {
	t.Helper()
	if p.Unit == "" {
		p.Unit = "box"
	}
	var id int64
	err := db.QueryRowx(db.Rebind(`INSERT INTO inventory (product_name, qty, unit, purchase_price, default_price, active)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING product_id`),
		p.Name, p.Qty, p.Unit, Decimal(t, p.PurchasePrice), Decimal(t, p.DefaultPrice), !p.Inactive).Scan(&id)
	require.NoError(t, err)
	return id
}

// AddStore inserts a store and returns its id.
func AddStore(t testing.TB, db *database.DB, name string, active bool) int64 {
	t.Helper()
	var id int64
	err := db.QueryRowx(db.Rebind(`INSERT INTO medical_stores (store_name, store_address, store_person, store_person_contact, active)
		VALUES (?, ?, ?, ?, ?) RETURNING store_id`),
		name, "12 Canal Road", "R. Okafor", "0300-555-0101", active).Scan(&id)
	require.NoError(t, err)
	return id
}

// Quantity returns the quantity on hand of a product.
func Quantity(t testing.TB, db *database.DB, productID int64) int64 {
	t.Helper()
	var qty int64
	require.NoError(t, db.Get(&qty, db.Rebind(`SELECT qty FROM inventory WHERE product_id = ?`), productID))
	return qty
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *database.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

// Decimal parses s, treating the empty string as zero.
func Decimal(t testing.TB, s string) decimal.Decimal {
	t.Helper()
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// ActiveCount returns the number of rows in table whose active flag is set.
func ActiveCount(t testing.TB, db *database.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM `+table+` WHERE active = TRUE`))
	return n
}
