// Package catalog reads and adjusts the inventory ledger and the store directory. Every function
// takes the querier to run on, so callers choose between the pool and an open transaction.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"pharmadist/m/domain"
)

const productColumns = `product_id, product_name, qty, unit, purchase_price, default_price, purchase_date, active`

// Product loads a product regardless of its active flag.
func Product(ctx context.Context, q sqlx.ExtContext, id int64) (domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, q, &p, q.Rebind(`SELECT `+productColumns+` FROM inventory WHERE product_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: product %d", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("load product %d: %w", id, err)
	}
	return p, nil
}

// ActiveProduct loads a product and treats soft-deleted rows as missing.
func ActiveProduct(ctx context.Context, q sqlx.ExtContext, id int64) (domain.Product, error) {
	p, err := Product(ctx, q, id)
	if err != nil {
		return domain.Product{}, err
	}
	if !p.Active {
		return domain.Product{}, fmt.Errorf("%w: product %d is inactive", domain.ErrProductNotFound, id)
	}
	return p, nil
}

// ActiveStore loads an active store.
func ActiveStore(ctx context.Context, q sqlx.ExtContext, id int64) (domain.Store, error) {
	var s domain.Store
	err := sqlx.GetContext(ctx, q, &s, q.Rebind(`SELECT store_id, store_name, store_address, store_person, store_person_contact, active
		FROM medical_stores WHERE store_id = ? AND active = TRUE`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Store{}, fmt.Errorf("%w: store %d", domain.ErrStoreNotFound, id)
	}
	if err != nil {
		return domain.Store{}, fmt.Errorf("load store %d: %w", id, err)
	}
	return s, nil
}

// CheckStock reports ErrInsufficientStock when p cannot cover qty in unit.
func CheckStock(p domain.Product, qty int64, unit string) error {
	if p.Quantity < qty || p.Unit != unit {
		return fmt.Errorf("%w: product %d has %d %s, requested %d %s",
			domain.ErrInsufficientStock, p.ID, p.Quantity, p.Unit, qty, unit)
	}
	return nil
}

// DecrementStock removes qty from an active product in a single conditional update. When no row
// matches (stock taken concurrently, unit changed, product deactivated) it returns
// ErrInsufficientStock and nothing changes.
func DecrementStock(ctx context.Context, q sqlx.ExtContext, productID, qty int64, unit string) error {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE inventory SET qty = qty - ?
		WHERE product_id = ? AND qty >= ? AND unit = ? AND active = TRUE`), qty, productID, qty, unit)
	if err != nil {
		return fmt.Errorf("decrement stock of product %d: %w", productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock of product %d: %w", productID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: product %d could not cover %d %s", domain.ErrInsufficientStock, productID, qty, unit)
	}
	return nil
}
