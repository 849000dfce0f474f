// Package order places multi-line orders against the inventory ledger.
//
// The first line of a request gates the whole order: if it cannot be fulfilled nothing is written.
// Every later line is best effort and is skipped, with a reason, when its product is missing or its
// stock cannot cover it. All statements of one placement, settlement included, share a single
// transaction.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"pharmadist/m/domain"
	"pharmadist/m/internal/catalog"
	"pharmadist/m/internal/database"
	"pharmadist/m/internal/metrics"
)

// IDGenerator mints order identifiers. *snowflake.Node satisfies it.
type IDGenerator interface {
	Generate() snowflake.ID
}

// Settler writes the payment row of an order using the placement transaction.
type Settler interface {
	Materialize(ctx context.Context, q sqlx.ExtContext, orderID int64) (domain.Payment, error)
}

type PlaceOrderRequest struct {
	StoreID int64
	UserID  int64
	Lines   []domain.LineRequest
}

type Service struct {
	db      *database.DB
	ids     IDGenerator
	settler Settler
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(db *database.DB, ids IDGenerator, settler Settler, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{db: db, ids: ids, settler: settler, log: log, metrics: m, now: time.Now}
}

// PlaceOrder validates and writes an order, decrements stock and materializes its payment. On any
// error the transaction is rolled back and nothing is visible.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Placement, error) {
	start := time.Now()
	placement, err := s.place(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		result := metrics.ResultFailed
		if kind := domain.KindOf(err); kind != domain.KindInternal {
			result = metrics.ResultRejected
			s.log.Info("order rejected",
				zap.Int64("store_id", req.StoreID),
				zap.Int64("user_id", req.UserID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		} else {
			s.log.Error("order placement failed", zap.Int64("store_id", req.StoreID), zap.Error(err))
		}
		s.metrics.ObservePlacement(result, elapsed)
		return nil, err
	}

	s.metrics.ObservePlacement(metrics.ResultCreated, elapsed)
	s.metrics.AddLines(metrics.LineCommitted, len(placement.Lines))
	s.metrics.AddLines(metrics.LineSkipped, len(placement.Skipped))
	s.log.Info("order placed",
		zap.Int64("order_id", placement.Order.ID),
		zap.Int64("store_id", req.StoreID),
		zap.Int("lines", len(placement.Lines)),
		zap.Int("skipped", len(placement.Skipped)),
		zap.String("bill", placement.Payment.Bill.StringFixed(2)),
		zap.Duration("duration", elapsed),
	)
	return placement, nil
}

func (s *Service) place(ctx context.Context, req PlaceOrderRequest) (*domain.Placement, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: at least one product is required", domain.ErrInvalidRequest)
	}

	placement := &domain.Placement{
		Lines:   []domain.OrderLine{},
		Skipped: []domain.SkippedLine{},
	}
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := catalog.ActiveStore(ctx, tx, req.StoreID); err != nil {
			return err
		}

		first := req.Lines[0]
		if err := validateLine(first); err != nil {
			return err
		}
		product, err := catalog.ActiveProduct(ctx, tx, first.ProductID)
		if err != nil {
			return err
		}
		if err := catalog.CheckStock(product, first.Quantity, first.Unit); err != nil {
			return err
		}

		placement.Order = domain.Order{
			ID:        s.ids.Generate().Int64(),
			StoreID:   req.StoreID,
			UserID:    req.UserID,
			OrderDate: s.now().UTC(),
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO orders (order_id, store_id, user_id, order_date) VALUES (?, ?, ?, ?)`),
			placement.Order.ID, placement.Order.StoreID, placement.Order.UserID, placement.Order.OrderDate); err != nil {
			return fmt.Errorf("insert order %d: %w", placement.Order.ID, err)
		}

		line, err := s.writeLine(ctx, tx, placement.Order.ID, first)
		if err != nil {
			return err
		}
		placement.Lines = append(placement.Lines, line)

		for i, lr := range req.Lines[1:] {
			index := i + 1
			var written domain.OrderLine
			err := database.Savepoint(ctx, tx, fmt.Sprintf("order_line_%d", index), func() error {
				if err := validateLine(lr); err != nil {
					return err
				}
				p, err := catalog.ActiveProduct(ctx, tx, lr.ProductID)
				if err != nil {
					return err
				}
				if err := catalog.CheckStock(p, lr.Quantity, lr.Unit); err != nil {
					return err
				}
				written, err = s.writeLine(ctx, tx, placement.Order.ID, lr)
				return err
			})
			if reason, ok := skipReason(err); ok {
				placement.Skipped = append(placement.Skipped, domain.SkippedLine{Index: index, ProductID: lr.ProductID, Reason: reason})
				s.log.Debug("order line skipped",
					zap.Int64("order_id", placement.Order.ID),
					zap.Int("index", index),
					zap.Int64("product_id", lr.ProductID),
					zap.String("reason", reason),
				)
				continue
			}
			if err != nil {
				return err
			}
			placement.Lines = append(placement.Lines, written)
		}

		payment, err := s.settler.Materialize(ctx, tx, placement.Order.ID)
		if err != nil {
			return fmt.Errorf("materialize settlement of order %d: %w", placement.Order.ID, err)
		}
		placement.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placement, nil
}

// writeLine inserts one line and removes its quantity from stock.
func (s *Service) writeLine(ctx context.Context, tx *sqlx.Tx, orderID int64, lr domain.LineRequest) (domain.OrderLine, error) {
	line := domain.OrderLine{
		OrderID:   orderID,
		ProductID: lr.ProductID,
		Quantity:  lr.Quantity,
		Unit:      lr.Unit,
		SellPrice: lr.SellPrice,
		Discount:  lr.Discount,
	}
	err := tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO order_lines (order_id, product_id, qty, unit, sell_price, discount)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING line_id`),
		line.OrderID, line.ProductID, line.Quantity, line.Unit, line.SellPrice, line.Discount).Scan(&line.ID)
	if err != nil {
		return domain.OrderLine{}, fmt.Errorf("insert order line for product %d: %w", lr.ProductID, err)
	}
	if err := catalog.DecrementStock(ctx, tx, lr.ProductID, lr.Quantity, lr.Unit); err != nil {
		return domain.OrderLine{}, err
	}
	return line, nil
}

func validateLine(lr domain.LineRequest) error {
	switch {
	case lr.Quantity <= 0:
		return fmt.Errorf("%w: qty must be positive for product %d", domain.ErrInvalidRequest, lr.ProductID)
	case strings.TrimSpace(lr.Unit) == "":
		return fmt.Errorf("%w: unit is required for product %d", domain.ErrInvalidRequest, lr.ProductID)
	case lr.SellPrice.IsNegative():
		return fmt.Errorf("%w: sell_price must not be negative for product %d", domain.ErrInvalidRequest, lr.ProductID)
	case lr.Discount.Valid && lr.Discount.Decimal.IsNegative():
		return fmt.Errorf("%w: discount must not be negative for product %d", domain.ErrInvalidRequest, lr.ProductID)
	}
	return nil
}

// skipReason maps the errors that drop a later line instead of aborting the order.
func skipReason(err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, domain.ErrProductNotFound):
		return domain.SkipProductNotFound, true
	case errors.Is(err, domain.ErrInsufficientStock):
		return domain.SkipInsufficientStock, true
	case errors.Is(err, domain.ErrInvalidRequest):
		return domain.SkipInvalidLine, true
	default:
		return "", false
	}
}
