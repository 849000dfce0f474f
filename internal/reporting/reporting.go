// Package reporting serves read-only projections over orders, payments, stores and inventory.
package reporting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pharmadist/m/domain"
	"pharmadist/m/internal/database"
)

// DefaultSuggestionLimit caps Suggest when the caller passes no positive limit.
const DefaultSuggestionLimit = 20

type Service struct {
	db *database.DB
}

func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// AllOrders lists every order line flattened with its header, newest orders first.
func (s *Service) AllOrders(ctx context.Context) ([]domain.OrderRow, error) {
	rows := []domain.OrderRow{}
	err := s.db.SelectContext(ctx, &rows, `SELECT l.order_id, l.product_id, o.user_id, o.store_id, l.qty, l.unit,
			l.sell_price, l.discount, o.order_date
		FROM order_lines l
		JOIN orders o ON o.order_id = l.order_id
		ORDER BY o.order_date DESC, l.line_id`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return rows, nil
}

// OrderLines returns the raw lines of one order.
func (s *Service) OrderLines(ctx context.Context, orderID int64) ([]domain.OrderLine, error) {
	lines := []domain.OrderLine{}
	err := s.db.SelectContext(ctx, &lines, s.db.Rebind(`SELECT line_id, order_id, product_id, qty, unit, sell_price, discount
		FROM order_lines WHERE order_id = ? ORDER BY line_id`), orderID)
	if err != nil {
		return nil, fmt.Errorf("list lines of order %d: %w", orderID, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order %d", domain.ErrOrderNotFound, orderID)
	}
	return lines, nil
}

// OrdersByStore lists the settled orders of a store with their payment figures.
func (s *Service) OrdersByStore(ctx context.Context, storeID int64) ([]domain.StoreOrder, error) {
	orders := []domain.StoreOrder{}
	err := s.db.SelectContext(ctx, &orders, s.db.Rebind(`SELECT o.order_id, o.order_date, p.bill, p.gst, p.balance,
			p.total_bill, p.status
		FROM orders o
		JOIN payments p ON p.order_id = o.order_id
		WHERE o.store_id = ?
		ORDER BY o.order_date DESC, o.order_id DESC`), storeID)
	if err != nil {
		return nil, fmt.Errorf("list orders of store %d: %w", storeID, err)
	}
	return orders, nil
}

// ReceiptDetail lists the priced lines of an order. Amount is computed here so both drivers agree
// on precision.
func (s *Service) ReceiptDetail(ctx context.Context, orderID int64) ([]domain.ReceiptLine, error) {
	lines := []domain.ReceiptLine{}
	err := s.db.SelectContext(ctx, &lines, s.db.Rebind(`SELECT i.product_name, l.qty, l.unit, l.sell_price
		FROM order_lines l
		JOIN inventory i ON i.product_id = l.product_id
		WHERE l.order_id = ?
		ORDER BY l.line_id`), orderID)
	if err != nil {
		return nil, fmt.Errorf("load receipt lines of order %d: %w", orderID, err)
	}
	for i := range lines {
		lines[i].Amount = lines[i].SellPrice.Mul(decimal.NewFromInt(lines[i].Quantity)).Round(2)
	}
	return lines, nil
}

// ReceiptHeader returns the single header row printed above a receipt.
func (s *Service) ReceiptHeader(ctx context.Context, orderID int64) (domain.ReceiptHeader, error) {
	var h domain.ReceiptHeader
	err := s.db.GetContext(ctx, &h, s.db.Rebind(`SELECT o.order_id, o.order_date, m.store_name, m.store_person,
			p.gst, p.discount, p.bill, p.total_bill, p.total_received, p.balance
		FROM orders o
		JOIN medical_stores m ON m.store_id = o.store_id
		JOIN payments p ON p.order_id = o.order_id
		WHERE o.order_id = ?`), orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReceiptHeader{}, fmt.Errorf("%w: order %d", domain.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return domain.ReceiptHeader{}, fmt.Errorf("load receipt header of order %d: %w", orderID, err)
	}
	return h, nil
}

// ReceiptSummary returns the payment figures of an order.
func (s *Service) ReceiptSummary(ctx context.Context, orderID int64) (domain.Payment, error) {
	var p domain.Payment
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`SELECT payment_id, order_id, bill, gst, discount, total_bill,
		total_received, balance, status, created_at, updated_at FROM payments WHERE order_id = ?`), orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Payment{}, fmt.Errorf("%w: order %d", domain.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return domain.Payment{}, fmt.Errorf("load receipt summary of order %d: %w", orderID, err)
	}
	return p, nil
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Suggest returns active products whose name contains query, ignoring case.
func (s *Service) Suggest(ctx context.Context, query string, limit int) ([]domain.ProductSuggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	suggestions := []domain.ProductSuggestion{}
	err := s.db.SelectContext(ctx, &suggestions, s.db.Rebind(`SELECT product_id, product_name, qty, unit, default_price
		FROM inventory
		WHERE active = TRUE AND LOWER(product_name) LIKE ? ESCAPE '\'
		ORDER BY product_name
		LIMIT ?`), "%"+likeEscaper.Replace(strings.ToLower(query))+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("suggest products for %q: %w", query, err)
	}
	return suggestions, nil
}

// Dashboard computes the global aggregates. The queries are independent and run concurrently.
func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	var d domain.Dashboard
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int64, query string, args ...any) {
		g.Go(func() error {
			return s.db.GetContext(ctx, dst, s.db.Rebind(query), args...)
		})
	}
	amount := func(dst *decimal.Decimal, query string) {
		g.Go(func() error {
			var v decimal.NullDecimal
			if err := s.db.GetContext(ctx, &v, query); err != nil {
				return err
			}
			*dst = v.Decimal.Round(2)
			return nil
		})
	}

	count(&d.PendingOrders, `SELECT COUNT(*) FROM payments WHERE status = ?`, domain.PaymentPending)
	count(&d.CompletedOrders, `SELECT COUNT(*) FROM payments WHERE status = ?`, domain.PaymentCompleted)
	count(&d.ActiveStores, `SELECT COUNT(*) FROM medical_stores WHERE active = TRUE`)
	count(&d.ActiveProducts, `SELECT COUNT(*) FROM inventory WHERE active = TRUE`)
	amount(&d.Profit, `SELECT SUM(l.sell_price) - SUM(i.purchase_price)
		FROM order_lines l
		JOIN inventory i ON i.product_id = l.product_id`)
	amount(&d.StockValue, `SELECT SUM(qty * purchase_price) FROM inventory WHERE active = TRUE`)
	amount(&d.OutstandingBalance, `SELECT SUM(balance) FROM payments WHERE status = 'pending'`)

	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}
	return d, nil
}
