package domain

import "github.com/shopspring/decimal"

// Product is a row of the inventory ledger. Rows are soft-deleted through Active.
type Product struct {
	ID            int64           `db:"product_id" json:"product_id"`
	Name          string          `db:"product_name" json:"product_name"`
	Quantity      int64           `db:"qty" json:"qty"`
	Unit          string          `db:"unit" json:"unit"`
	PurchasePrice decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	DefaultPrice  decimal.Decimal `db:"default_price" json:"default_price"`
	PurchaseDate  string          `db:"purchase_date" json:"purchase_date"`
	Active        bool            `db:"active" json:"active"`
}

type ProductSuggestion struct {
	ID           int64           `db:"product_id" json:"product_id"`
	Name         string          `db:"product_name" json:"product_name"`
	Quantity     int64           `db:"qty" json:"qty"`
	Unit         string          `db:"unit" json:"unit"`
	DefaultPrice decimal.Decimal `db:"default_price" json:"default_price"`
}
