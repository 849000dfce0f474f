package domain

import "errors"

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrStoreNotFound     = errors.New("store not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient quantity in inventory or unit mismatch")
	ErrSettlementExists  = errors.New("settlement already recorded")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Kind groups domain errors into the categories surfaced to callers.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindUnauthorized   Kind = "unauthorized"
	KindInternal       Kind = "internal"
)

// KindOf classifies err. Anything not wrapping a domain sentinel is internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrStoreNotFound), errors.Is(err, ErrProductNotFound), errors.Is(err, ErrOrderNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrSettlementExists):
		return KindConflict
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}
