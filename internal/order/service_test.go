package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pharmadist/m/domain"
	"pharmadist/m/internal/database"
	"pharmadist/m/internal/metrics"
	"pharmadist/m/internal/settlement"
	"pharmadist/m/internal/testdb"
)

type fixture struct {
	db    *database.DB
	svc   *Service
	reg   *prometheus.Registry
	store int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	log := zaptest.NewLogger(t)
	svc := NewService(db, node, settlement.NewRecorder(db, log, m), log, m)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	return &fixture{
		db:    db,
		svc:   svc,
		reg:   reg,
		store: testdb.AddStore(t, db, "Harbour Pharmacy", true),
	}
}

func line(productID, qty int64, unit, price string) domain.LineRequest {
	return domain.LineRequest{
		ProductID: productID,
		Quantity:  qty,
		Unit:      unit,
		SellPrice: decimal.RequireFromString(price),
	}
}

func (f *fixture) place(lines ...domain.LineRequest) (*domain.Placement, error) {
	return f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{StoreID: f.store, UserID: 7, Lines: lines})
}

func TestPlaceOrderCommitsLinesAndSettlement(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 20, Unit: "box"})
	b := testdb.AddProduct(t, f.db, testdb.Product{Name: "Cetirizine 10mg", Qty: 5, Unit: "strip"})
	c := testdb.AddProduct(t, f.db, testdb.Product{Name: "Saline 500ml", Qty: 10, Unit: "bottle"})

	p, err := f.place(
		line(a, 2, "box", "10.00"),
		line(b, 1, "strip", "25.50"),
		line(c, 3, "bottle", "4.00"),
	)
	require.NoError(t, err)

	assert.NotZero(t, p.Order.ID)
	assert.Equal(t, f.store, p.Order.StoreID)
	assert.Equal(t, int64(7), p.Order.UserID)
	assert.Len(t, p.Lines, 3)
	assert.Empty(t, p.Skipped)
	for _, l := range p.Lines {
		assert.Equal(t, p.Order.ID, l.OrderID)
		assert.NotZero(t, l.ID)
	}

	assert.Equal(t, "57.50", p.Payment.Bill.StringFixed(2))
	assert.Equal(t, "63.25", p.Payment.TotalBill.StringFixed(2))
	assert.Equal(t, domain.PaymentPending, p.Payment.Status)

	assert.Equal(t, int64(18), testdb.Quantity(t, f.db, a))
	assert.Equal(t, int64(4), testdb.Quantity(t, f.db, b))
	assert.Equal(t, int64(7), testdb.Quantity(t, f.db, c))
	assert.Equal(t, 1, testdb.Count(t, f.db, "orders"))
	assert.Equal(t, 3, testdb.Count(t, f.db, "order_lines"))
	assert.Equal(t, 1, testdb.Count(t, f.db, "payments"))

	assert.Equal(t, 1.0, f.counter(t, "pharmadist_order_placements_total", "created"))
}

func TestPlaceOrderRejectsEmptyRequest(t *testing.T) {
	f := setup(t)

	_, err := f.place()
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Zero(t, testdb.Count(t, f.db, "orders"))
}

func TestPlaceOrderRejectsInvalidFirstLine(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 20, Unit: "box"})

	cases := map[string]domain.LineRequest{
		"zero qty":       line(a, 0, "box", "1.00"),
		"missing unit":   line(a, 1, " ", "1.00"),
		"negative price": line(a, 1, "box", "-1.00"),
	}
	for name, lr := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.place(lr)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
	assert.Equal(t, int64(20), testdb.Quantity(t, f.db, a))
}

func TestPlaceOrderFirstLineConflictWritesNothing(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 3, Unit: "box"})
	b := testdb.AddProduct(t, f.db, testdb.Product{Name: "Cetirizine 10mg", Qty: 50, Unit: "strip"})

	_, err := f.place(line(a, 4, "box", "10.00"), line(b, 1, "strip", "2.00"))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	assert.Equal(t, int64(3), testdb.Quantity(t, f.db, a))
	assert.Equal(t, int64(50), testdb.Quantity(t, f.db, b))
	assert.Zero(t, testdb.Count(t, f.db, "orders"))
	assert.Zero(t, testdb.Count(t, f.db, "order_lines"))
	assert.Zero(t, testdb.Count(t, f.db, "payments"))
	assert.Equal(t, 1.0, f.counter(t, "pharmadist_order_placements_total", "rejected"))
}

func TestPlaceOrderFirstLineUnitMismatch(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 30, Unit: "box"})

	_, err := f.place(line(a, 1, "strip", "10.00"))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(30), testdb.Quantity(t, f.db, a))
}

func TestPlaceOrderUnknownOrInactiveStore(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 30, Unit: "box"})
	closed := testdb.AddStore(t, f.db, "Closed Chemist", false)

	for _, storeID := range []int64{9999, closed} {
		_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
			StoreID: storeID,
			UserID:  7,
			Lines:   []domain.LineRequest{line(a, 1, "box", "10.00")},
		})
		assert.ErrorIs(t, err, domain.ErrStoreNotFound)
	}
	assert.Zero(t, testdb.Count(t, f.db, "orders"))
}

func TestPlaceOrderInactiveFirstProduct(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Ranitidine 150mg", Qty: 30, Unit: "box", Inactive: true})

	_, err := f.place(line(a, 1, "box", "10.00"))
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, int64(30), testdb.Quantity(t, f.db, a))
}

func TestPlaceOrderSkipsMissingLaterProduct(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 20, Unit: "box"})

	p, err := f.place(line(a, 2, "box", "10.00"), line(4242, 1, "box", "3.00"))
	require.NoError(t, err)

	require.Len(t, p.Lines, 1)
	require.Len(t, p.Skipped, 1)
	assert.Equal(t, domain.SkippedLine{Index: 1, ProductID: 4242, Reason: domain.SkipProductNotFound}, p.Skipped[0])
	assert.Equal(t, 1, testdb.Count(t, f.db, "order_lines"))
	assert.Equal(t, "20.00", p.Payment.Bill.StringFixed(2))
	assert.Equal(t, 1.0, f.counter(t, "pharmadist_order_lines_total", "skipped"))
}

func TestPlaceOrderSkipsLaterLineWithoutStock(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 20, Unit: "box"})
	b := testdb.AddProduct(t, f.db, testdb.Product{Name: "Cetirizine 10mg", Qty: 1, Unit: "strip"})
	c := testdb.AddProduct(t, f.db, testdb.Product{Name: "Saline 500ml", Qty: 10, Unit: "bottle"})

	p, err := f.place(
		line(a, 2, "box", "10.00"),
		line(b, 5, "strip", "2.00"),
		line(c, 1, "box", "4.00"),
		line(c, 0, "bottle", "4.00"),
		line(c, 2, "bottle", "4.00"),
	)
	require.NoError(t, err)

	assert.Len(t, p.Lines, 2)
	assert.Equal(t, []domain.SkippedLine{
		{Index: 1, ProductID: b, Reason: domain.SkipInsufficientStock},
		{Index: 2, ProductID: c, Reason: domain.SkipInsufficientStock},
		{Index: 3, ProductID: c, Reason: domain.SkipInvalidLine},
	}, p.Skipped)
	assert.Equal(t, int64(1), testdb.Quantity(t, f.db, b))
	assert.Equal(t, int64(8), testdb.Quantity(t, f.db, c))
	assert.Equal(t, "28.00", p.Payment.Bill.StringFixed(2))
}

func TestPlaceOrderRepeatedProductSeesEarlierDecrement(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 5, Unit: "box"})

	p, err := f.place(line(a, 3, "box", "10.00"), line(a, 3, "box", "10.00"))
	require.NoError(t, err)

	assert.Len(t, p.Lines, 1)
	require.Len(t, p.Skipped, 1)
	assert.Equal(t, domain.SkipInsufficientStock, p.Skipped[0].Reason)
	assert.Equal(t, int64(2), testdb.Quantity(t, f.db, a))
}

func TestConcurrentPlacementsDoNotOversell(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 4, Unit: "box"})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.place(line(a, 4, "box", "10.00"))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Zero(t, testdb.Quantity(t, f.db, a))
	assert.Equal(t, 1, testdb.Count(t, f.db, "orders"))
	assert.Equal(t, 1, testdb.Count(t, f.db, "payments"))
}

// drainOnLineInsert lowers the stock of productID to remaining as soon as a line for it is written,
// so the conditional decrement sees less stock than the earlier read did.
func drainOnLineInsert(t *testing.T, db *database.DB, productID, remaining int64) {
	t.Helper()
	db.MustExec(fmt.Sprintf(`CREATE TRIGGER drain_product_%[1]d AFTER INSERT ON order_lines
		WHEN NEW.product_id = %[1]d
		BEGIN
			UPDATE inventory SET qty = %[2]d WHERE product_id = %[1]d;
		END`, productID, remaining))
}

func TestPlaceOrderFirstLineLosesStockBeforeDecrement(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 5, Unit: "box"})
	drainOnLineInsert(t, f.db, a, 1)

	_, err := f.place(line(a, 3, "box", "10.00"))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, int64(5), testdb.Quantity(t, f.db, a))
	assert.Zero(t, testdb.Count(t, f.db, "orders"))
	assert.Zero(t, testdb.Count(t, f.db, "order_lines"))
	assert.Zero(t, testdb.Count(t, f.db, "payments"))
}

func TestPlaceOrderLaterLineLosesStockBeforeDecrement(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 20, Unit: "box"})
	b := testdb.AddProduct(t, f.db, testdb.Product{Name: "Cetirizine 10mg", Qty: 4, Unit: "strip"})
	drainOnLineInsert(t, f.db, b, 0)

	p, err := f.place(line(a, 2, "box", "10.00"), line(b, 3, "strip", "2.00"))
	require.NoError(t, err)

	require.Len(t, p.Lines, 1)
	assert.Equal(t, a, p.Lines[0].ProductID)
	assert.Equal(t, []domain.SkippedLine{{Index: 1, ProductID: b, Reason: domain.SkipInsufficientStock}}, p.Skipped)

	assert.Equal(t, int64(18), testdb.Quantity(t, f.db, a))
	assert.Equal(t, int64(4), testdb.Quantity(t, f.db, b))
	assert.Equal(t, 1, testdb.Count(t, f.db, "order_lines"))
	assert.Equal(t, "20.00", p.Payment.Bill.StringFixed(2))
}

func TestPlaceOrderChecksStoreBeforeLineFields(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 20, Unit: "box"})

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		StoreID: 9999,
		UserID:  7,
		Lines:   []domain.LineRequest{line(a, 0, "box", "10.00")},
	})
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
}

type failingSettler struct{}

func (failingSettler) Materialize(context.Context, sqlx.ExtContext, int64) (domain.Payment, error) {
	return domain.Payment{}, errors.New("payments table unavailable")
}

func TestPlaceOrderRollsBackWhenSettlementFails(t *testing.T) {
	f := setup(t)
	f.svc.settler = failingSettler{}
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 20, Unit: "box"})

	_, err := f.place(line(a, 2, "box", "10.00"))
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))

	assert.Equal(t, int64(20), testdb.Quantity(t, f.db, a))
	assert.Zero(t, testdb.Count(t, f.db, "orders"))
	assert.Zero(t, testdb.Count(t, f.db, "order_lines"))
	assert.Equal(t, 1.0, f.counter(t, "pharmadist_order_placements_total", "failed"))
}

func TestPlaceOrderStoresLineDiscount(t *testing.T) {
	f := setup(t)
	a := testdb.AddProduct(t, f.db, testdb.Product{Name: "Amoxicillin 500mg", Qty: 20, Unit: "box"})

	lr := line(a, 2, "box", "10.00")
	lr.Discount = decimal.NewNullDecimal(decimal.RequireFromString("1.50"))
	p, err := f.place(lr)
	require.NoError(t, err)

	var stored decimal.NullDecimal
	require.NoError(t, f.db.Get(&stored, f.db.Rebind(`SELECT discount FROM order_lines WHERE line_id = ?`), p.Lines[0].ID))
	require.True(t, stored.Valid)
	assert.Equal(t, "1.50", stored.Decimal.StringFixed(2))
}

// counter returns the value of the counter name carrying label value v, or zero when absent.
func (f *fixture) counter(t *testing.T, name, v string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == v {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
