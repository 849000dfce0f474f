package domain

import "github.com/shopspring/decimal"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// GSTRate is stored as a percentage: 10 means 10%, not 0.10. Existing rows rely on this convention.
var GSTRate = decimal.NewFromInt(10)

// Payment is the settlement aggregate of one order.
type Payment struct {
	ID            int64           `db:"payment_id" json:"payment_id"`
	OrderID       int64           `db:"order_id" json:"order_id,string"`
	Bill          decimal.Decimal `db:"bill" json:"bill"`
	GST           decimal.Decimal `db:"gst" json:"gst"`
	Discount      decimal.Decimal `db:"discount" json:"discount"`
	TotalBill     decimal.Decimal `db:"total_bill" json:"total_bill"`
	TotalReceived decimal.Decimal `db:"total_received" json:"total_received"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	Status        PaymentStatus   `db:"status" json:"status"`
	CreatedAt     string          `db:"created_at" json:"created_at"`
	UpdatedAt     string          `db:"updated_at" json:"updated_at"`
}

// TotalBill applies the percentage tax rate and the discount to a bill.
func TotalBill(bill, gst, discount decimal.Decimal) decimal.Decimal {
	tax := bill.Mul(gst).Div(decimal.NewFromInt(100))
	return bill.Add(tax).Sub(discount).Round(2)
}
