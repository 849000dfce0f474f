package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"pharmadist/m/domain"
)

// Stable error codes returned next to the message.
const (
	codeInvalidRequest    = "invalid_request"
	codeStoreNotFound     = "store_not_found"
	codeProductNotFound   = "product_not_found"
	codeOrderNotFound     = "order_not_found"
	codeInsufficientStock = "insufficient_stock"
	codeSettlementExists  = "settlement_exists"
	codeUnauthorized      = "unauthorized"
	codeInternal          = "internal"
)

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidRequest, http.StatusBadRequest, codeInvalidRequest},
	{domain.ErrStoreNotFound, http.StatusNotFound, codeStoreNotFound},
	{domain.ErrProductNotFound, http.StatusNotFound, codeProductNotFound},
	{domain.ErrOrderNotFound, http.StatusNotFound, codeOrderNotFound},
	{domain.ErrInsufficientStock, http.StatusConflict, codeInsufficientStock},
	{domain.ErrSettlementExists, http.StatusConflict, codeSettlementExists},
	{domain.ErrUnauthorized, http.StatusUnauthorized, codeUnauthorized},
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondFailure maps err onto the error table. Anything else is logged and reported as a generic
// internal error so storage details never reach the client.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error, message string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			respondError(w, e.status, e.code, err.Error())
			return
		}
	}
	h.log.Error(message,
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	respondError(w, http.StatusInternalServerError, codeInternal, message)
}
