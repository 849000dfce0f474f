package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineRequest is one requested product within an order.
type LineRequest struct {
	ProductID int64               `json:"product_id"`
	Quantity  int64               `json:"qty"`
	Unit      string              `json:"unit"`
	SellPrice decimal.Decimal     `json:"sell_price"`
	Discount  decimal.NullDecimal `json:"discount"`
}

// Amount is quantity times sell price.
func (l LineRequest) Amount() decimal.Decimal {
	return l.SellPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Order is the header shared by every line of one order.
type Order struct {
	ID        int64     `db:"order_id" json:"order_id,string"`
	StoreID   int64     `db:"store_id" json:"store_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	OrderDate time.Time `db:"order_date" json:"order_date"`
}

type OrderLine struct {
	ID        int64               `db:"line_id" json:"line_id"`
	OrderID   int64               `db:"order_id" json:"order_id,string"`
	ProductID int64               `db:"product_id" json:"product_id"`
	Quantity  int64               `db:"qty" json:"qty"`
	Unit      string              `db:"unit" json:"unit"`
	SellPrice decimal.Decimal     `db:"sell_price" json:"sell_price"`
	Discount  decimal.NullDecimal `db:"discount" json:"discount"`
}

// OrderRow is an order line flattened with its header, as listed by the order endpoints.
type OrderRow struct {
	OrderID   int64               `db:"order_id" json:"order_id,string"`
	ProductID int64               `db:"product_id" json:"product_id"`
	UserID    int64               `db:"user_id" json:"user_id"`
	StoreID   int64               `db:"store_id" json:"store_id"`
	Quantity  int64               `db:"qty" json:"qty"`
	Unit      string              `db:"unit" json:"unit"`
	SellPrice decimal.Decimal     `db:"sell_price" json:"sell_price"`
	Discount  decimal.NullDecimal `db:"discount" json:"discount"`
	OrderDate string              `db:"order_date" json:"order_date"`
}

// Skip reasons reported for best-effort lines.
const (
	SkipProductNotFound   = "product_not_found"
	SkipInsufficientStock = "insufficient_stock"
	SkipInvalidLine       = "invalid_line"
)

// SkippedLine records a non-first line that was dropped from an order.
type SkippedLine struct {
	Index     int    `json:"index"`
	ProductID int64  `json:"product_id"`
	Reason    string `json:"reason"`
}

// Placement is the outcome of a committed order.
type Placement struct {
	Order   Order         `json:"order"`
	Lines   []OrderLine   `json:"lines"`
	Skipped []SkippedLine `json:"skipped"`
	Payment Payment       `json:"payment"`
}
