package domain

import "github.com/shopspring/decimal"

type StoreOrder struct {
	OrderID   int64           `db:"order_id" json:"order_id,string"`
	OrderDate string          `db:"order_date" json:"order_date"`
	Bill      decimal.Decimal `db:"bill" json:"bill"`
	GST       decimal.Decimal `db:"gst" json:"gst"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	TotalBill decimal.Decimal `db:"total_bill" json:"total_bill"`
	Status    PaymentStatus   `db:"status" json:"status"`
}

type ReceiptLine struct {
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int64           `db:"qty" json:"qty"`
	Unit        string          `db:"unit" json:"unit"`
	SellPrice   decimal.Decimal `db:"sell_price" json:"sell_price"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
}

type ReceiptHeader struct {
	OrderID       int64           `db:"order_id" json:"order_id,string"`
	OrderDate     string          `db:"order_date" json:"order_date"`
	StoreName     string          `db:"store_name" json:"store_name"`
	StorePerson   string          `db:"store_person" json:"store_person"`
	GST           decimal.Decimal `db:"gst" json:"gst"`
	Discount      decimal.Decimal `db:"discount" json:"discount"`
	Bill          decimal.Decimal `db:"bill" json:"bill"`
	TotalBill     decimal.Decimal `db:"total_bill" json:"total_bill"`
	TotalReceived decimal.Decimal `db:"total_received" json:"total_received"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
}

// Dashboard aggregates. Profit is the raw difference of summed sell and purchase prices over every
// order line, unweighted by quantity and unscoped by period.
type Dashboard struct {
	PendingOrders      int64           `json:"pending_orders"`
	CompletedOrders    int64           `json:"completed_orders"`
	ActiveStores       int64           `json:"active_stores"`
	ActiveProducts     int64           `json:"active_products"`
	Profit             decimal.Decimal `json:"profit"`
	StockValue         decimal.Decimal `json:"stock_value"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}
