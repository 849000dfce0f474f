package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmadist/m/domain"
	"pharmadist/m/internal/logging"
	"pharmadist/m/internal/order"
)

// Money leaves the API as bare JSON numbers.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// OrderPlacer places orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*domain.Placement, error)
}

// RevenuePoster records payments received against an order.
type RevenuePoster interface {
	PostRevenue(ctx context.Context, orderID int64, discount, received decimal.Decimal) (int64, error)
}

// Reports serves the read-only order projections.
type Reports interface {
	AllOrders(ctx context.Context) ([]domain.OrderRow, error)
	OrderLines(ctx context.Context, orderID int64) ([]domain.OrderLine, error)
	OrdersByStore(ctx context.Context, storeID int64) ([]domain.StoreOrder, error)
	ReceiptDetail(ctx context.Context, orderID int64) ([]domain.ReceiptLine, error)
	ReceiptHeader(ctx context.Context, orderID int64) (domain.ReceiptHeader, error)
	ReceiptSummary(ctx context.Context, orderID int64) (domain.Payment, error)
	Suggest(ctx context.Context, query string, limit int) ([]domain.ProductSuggestion, error)
	Dashboard(ctx context.Context) (domain.Dashboard, error)
}

type Options struct {
	Secret      string
	TokenTTL    time.Duration
	CORSOrigins []string
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db      sqlx.ExtContext
	orders  OrderPlacer
	revenue RevenuePoster
	reports Reports
	log     *zap.Logger
	opts    Options
	now     func() time.Time
}

// New constructs a Handler. db is only used to look up users at login.
func New(db sqlx.ExtContext, orders OrderPlacer, revenue RevenuePoster, reports Reports, log *zap.Logger, opts Options) *Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		db:      db,
		orders:  orders,
		revenue: revenue,
		reports: reports,
		log:     log,
		opts:    opts,
		now:     time.Now,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.login)

		r.Route("/order", func(r chi.Router) {
			r.Use(h.authMiddleware)

			r.Post("/create", h.createOrder)
			r.Get("/all", h.allOrders)
			r.Get("/suggestion", h.suggestProducts)
			r.Get("/store/{storeId}", h.ordersByStore)
			r.Post("/revenue/{orderId}", h.postRevenue)
			r.Get("/receipt/{orderId}", h.receiptHeader)
			r.Get("/receipt_table/{orderId}", h.receiptDetail)
			r.Get("/receipt_other/{orderId}", h.receiptSummary)
			r.Get("/order_detail/{orderId}", h.orderDetail)
			r.Get("/dashboard", h.dashboard)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
