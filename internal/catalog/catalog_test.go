package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadist/m/domain"
	"pharmadist/m/internal/catalog"
	"pharmadist/m/internal/testdb"
)

func TestProductLookups(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	active := testdb.AddProduct(t, db, testdb.Product{Name: "Paracetamol 500mg", Qty: 40, Unit: "strip", PurchasePrice: "1.20", DefaultPrice: "2.00"})
	retired := testdb.AddProduct(t, db, testdb.Product{Name: "Codeine Linctus", Qty: 5, Unit: "bottle", Inactive: true})

	p, err := catalog.ActiveProduct(ctx, db, active)
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 500mg", p.Name)
	assert.Equal(t, int64(40), p.Quantity)
	assert.Equal(t, "strip", p.Unit)
	assert.Equal(t, "1.20", p.PurchasePrice.StringFixed(2))
	assert.True(t, p.Active)

	_, err = catalog.ActiveProduct(ctx, db, retired)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	p, err = catalog.Product(ctx, db, retired)
	require.NoError(t, err)
	assert.False(t, p.Active)

	_, err = catalog.Product(ctx, db, 9999)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestActiveStore(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	open := testdb.AddStore(t, db, "Canal Road Pharmacy", true)
	closed := testdb.AddStore(t, db, "Old Town Chemist", false)

	s, err := catalog.ActiveStore(ctx, db, open)
	require.NoError(t, err)
	assert.Equal(t, "Canal Road Pharmacy", s.Name)
	assert.Equal(t, "R. Okafor", s.Person)

	_, err = catalog.ActiveStore(ctx, db, closed)
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
	_, err = catalog.ActiveStore(ctx, db, 404)
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
}

func TestCheckStock(t *testing.T) {
	p := domain.Product{ID: 1, Quantity: 10, Unit: "box"}
	assert.NoError(t, catalog.CheckStock(p, 10, "box"))
	assert.ErrorIs(t, catalog.CheckStock(p, 11, "box"), domain.ErrInsufficientStock)
	assert.ErrorIs(t, catalog.CheckStock(p, 1, "strip"), domain.ErrInsufficientStock)
}

func TestDecrementStockIsConditional(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	id := testdb.AddProduct(t, db, testdb.Product{Name: "Cetirizine 10mg", Qty: 5, Unit: "box"})

	require.NoError(t, catalog.DecrementStock(ctx, db, id, 3, "box"))
	assert.Equal(t, int64(2), testdb.Quantity(t, db, id))

	err := catalog.DecrementStock(ctx, db, id, 3, "box")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(2), testdb.Quantity(t, db, id))

	err = catalog.DecrementStock(ctx, db, id, 1, "strip")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	require.NoError(t, catalog.DecrementStock(ctx, db, id, 2, "box"))
	assert.Zero(t, testdb.Quantity(t, db, id))
}
