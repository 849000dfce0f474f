package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pharmadist/m/domain"
	"pharmadist/m/internal/order"
)

type createOrderRequest struct {
	Products []domain.LineRequest `json:"products"`
	StoreID  int64                `json:"store_id"`
}

type createOrderResponse struct {
	Message string               `json:"message"`
	OrderID string               `json:"orderId"`
	Lines   []domain.OrderLine   `json:"lines"`
	Skipped []domain.SkippedLine `json:"skipped"`
	Payment domain.Payment       `json:"payment"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if len(req.Products) == 0 {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "no products provided")
		return
	}
	if req.StoreID <= 0 {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "store_id is required")
		return
	}

	placement, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		StoreID: req.StoreID,
		UserID:  userIDFrom(r.Context()),
		Lines:   req.Products,
	})
	if err != nil {
		h.respondFailure(w, r, err, "error creating order")
		return
	}

	respondJSON(w, http.StatusCreated, createOrderResponse{
		Message: "Order created successfully",
		OrderID: strconv.FormatInt(placement.Order.ID, 10),
		Lines:   placement.Lines,
		Skipped: placement.Skipped,
		Payment: placement.Payment,
	})
}

func (h *Handler) allOrders(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.AllOrders(r.Context())
	if err != nil {
		h.respondFailure(w, r, err, "error fetching orders")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) suggestProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "query parameter is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	suggestions, err := h.reports.Suggest(r.Context(), query, limit)
	if err != nil {
		h.respondFailure(w, r, err, "error fetching suggestions")
		return
	}
	respondJSON(w, http.StatusOK, suggestions)
}

func (h *Handler) ordersByStore(w http.ResponseWriter, r *http.Request) {
	storeID, ok := idParam(r, "storeId")
	if !ok {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid store id")
		return
	}
	orders, err := h.reports.OrdersByStore(r.Context(), storeID)
	if err != nil {
		h.respondFailure(w, r, err, "error fetching store orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

type revenueRequest struct {
	Discount      decimal.Decimal `json:"discount"`
	TotalReceived decimal.Decimal `json:"total_received"`
}

func (h *Handler) postRevenue(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderId")
	if !ok {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid order id")
		return
	}
	var req revenueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	affected, err := h.revenue.PostRevenue(r.Context(), orderID, req.Discount, req.TotalReceived)
	if err != nil {
		h.respondFailure(w, r, err, "error posting revenue")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"affected": affected})
}

func (h *Handler) receiptHeader(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderId")
	if !ok {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid order id")
		return
	}
	header, err := h.reports.ReceiptHeader(r.Context(), orderID)
	if err != nil {
		h.respondFailure(w, r, err, "error fetching receipt")
		return
	}
	respondJSON(w, http.StatusOK, header)
}

func (h *Handler) receiptDetail(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderId")
	if !ok {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid order id")
		return
	}
	lines, err := h.reports.ReceiptDetail(r.Context(), orderID)
	if err != nil {
		h.respondFailure(w, r, err, "error fetching receipt lines")
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

func (h *Handler) receiptSummary(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderId")
	if !ok {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid order id")
		return
	}
	payment, err := h.reports.ReceiptSummary(r.Context(), orderID)
	if err != nil {
		h.respondFailure(w, r, err, "error fetching receipt summary")
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

func (h *Handler) orderDetail(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderId")
	if !ok {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "invalid order id")
		return
	}
	lines, err := h.reports.OrderLines(r.Context(), orderID)
	if err != nil {
		h.respondFailure(w, r, err, "error fetching order detail")
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.reports.Dashboard(r.Context())
	if err != nil {
		h.respondFailure(w, r, err, "error fetching dashboard")
		return
	}
	respondJSON(w, http.StatusOK, d)
}
