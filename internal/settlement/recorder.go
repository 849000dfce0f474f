// Package settlement derives and maintains the payment aggregate of an order.
package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmadist/m/domain"
	"pharmadist/m/internal/database"
	"pharmadist/m/internal/metrics"
)

type Recorder struct {
	db      *database.DB
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRecorder(db *database.DB, log *zap.Logger, m *metrics.Metrics) *Recorder {
	return &Recorder{db: db, log: log, metrics: m, now: time.Now}
}

type lineAmount struct {
	Quantity  int64           `db:"qty"`
	SellPrice decimal.Decimal `db:"sell_price"`
}

// Materialize writes the payment row of orderID from the lines visible to q, normally the
// transaction that just wrote them. A second call for the same order fails with
// ErrSettlementExists.
func (r *Recorder) Materialize(ctx context.Context, q sqlx.ExtContext, orderID int64) (domain.Payment, error) {
	var lines []lineAmount
	if err := sqlx.SelectContext(ctx, q, &lines, q.Rebind(`SELECT qty, sell_price FROM order_lines WHERE order_id = ?`), orderID); err != nil {
		r.metrics.ObserveSettlement(metrics.ResultFailed)
		return domain.Payment{}, fmt.Errorf("load lines of order %d: %w", orderID, err)
	}
	if len(lines) == 0 {
		r.metrics.ObserveSettlement(metrics.ResultRejected)
		return domain.Payment{}, fmt.Errorf("%w: order %d has no lines", domain.ErrOrderNotFound, orderID)
	}

	bill := decimal.Zero
	for _, l := range lines {
		bill = bill.Add(l.SellPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}
	bill = bill.Round(2)
	total := domain.TotalBill(bill, domain.GSTRate, decimal.Zero)
	now := r.now().UTC()

	p := domain.Payment{
		OrderID:       orderID,
		Bill:          bill,
		GST:           domain.GSTRate,
		Discount:      decimal.Zero,
		TotalBill:     total,
		TotalReceived: decimal.Zero,
		Balance:       total,
		Status:        domain.PaymentPending,
		CreatedAt:     now.Format(time.RFC3339Nano),
		UpdatedAt:     now.Format(time.RFC3339Nano),
	}
	err := q.QueryRowxContext(ctx, q.Rebind(`INSERT INTO payments
		(order_id, bill, gst, discount, total_bill, total_received, balance, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING payment_id`),
		p.OrderID, p.Bill, p.GST, p.Discount, p.TotalBill, p.TotalReceived, p.Balance, p.Status, now, now).Scan(&p.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			r.metrics.ObserveSettlement(metrics.ResultRejected)
			return domain.Payment{}, fmt.Errorf("%w: order %d", domain.ErrSettlementExists, orderID)
		}
		r.metrics.ObserveSettlement(metrics.ResultFailed)
		return domain.Payment{}, fmt.Errorf("insert payment of order %d: %w", orderID, err)
	}

	r.metrics.ObserveSettlement(metrics.ResultCreated)
	return p, nil
}

// MaterializeSettlement runs Materialize in its own transaction.
func (r *Recorder) MaterializeSettlement(ctx context.Context, orderID int64) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		p, err = r.Materialize(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}
	r.log.Info("settlement recorded", zap.Int64("order_id", orderID), zap.String("bill", p.Bill.StringFixed(2)))
	return p, nil
}

// PostRevenue adds received to the running total of the order's payment and replaces its
// discount. Derived totals and the status are recomputed in the same statement.
func (r *Recorder) PostRevenue(ctx context.Context, orderID int64, discount, received decimal.Decimal) (int64, error) {
	if discount.IsNegative() || received.IsNegative() {
		r.metrics.ObserveRevenuePosting(metrics.ResultRejected)
		return 0, fmt.Errorf("%w: discount and total_received must not be negative", domain.ErrInvalidRequest)
	}

	res, err := sqlx.NamedExecContext(ctx, r.db, `UPDATE payments SET
			discount = :discount,
			total_received = total_received + :received,
			total_bill = ROUND(bill + bill * gst / 100.0 - :discount, 2),
			balance = ROUND(bill + bill * gst / 100.0 - :discount - (total_received + :received), 2),
			status = CASE WHEN bill + bill * gst / 100.0 - :discount - (total_received + :received) <= 0
				THEN 'completed' ELSE 'pending' END,
			updated_at = :updated_at
		WHERE order_id = :order_id`,
		map[string]any{
			"discount":   discount,
			"received":   received,
			"updated_at": r.now().UTC(),
			"order_id":   orderID,
		})
	if err != nil {
		r.metrics.ObserveRevenuePosting(metrics.ResultFailed)
		return 0, fmt.Errorf("post revenue for order %d: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		r.metrics.ObserveRevenuePosting(metrics.ResultFailed)
		return 0, fmt.Errorf("post revenue for order %d: %w", orderID, err)
	}
	if affected == 0 {
		r.metrics.ObserveRevenuePosting(metrics.ResultRejected)
		return 0, fmt.Errorf("%w: no payment for order %d", domain.ErrOrderNotFound, orderID)
	}

	r.metrics.ObserveRevenuePosting(metrics.ResultCreated)
	r.log.Info("revenue posted",
		zap.Int64("order_id", orderID),
		zap.String("discount", discount.StringFixed(2)),
		zap.String("received", received.StringFixed(2)),
	)
	return affected, nil
}

// Payment loads the payment row of orderID.
func (r *Recorder) Payment(ctx context.Context, orderID int64) (domain.Payment, error) {
	var p domain.Payment
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT payment_id, order_id, bill, gst, discount, total_bill,
		total_received, balance, status, created_at, updated_at FROM payments WHERE order_id = ?`), orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Payment{}, fmt.Errorf("%w: no payment for order %d", domain.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return domain.Payment{}, fmt.Errorf("load payment of order %d: %w", orderID, err)
	}
	return p, nil
}
