package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid order transition")
	ErrRefundExceedsTotal = errors.New("refund exceeds remaining order total")
	ErrPaymentDeclined    = errors.New("payment declined")
)

// ValidationError reports malformed or out-of-range input. It is detected
// before any mutation occurs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientStockError names the offending product and by how much the
// request exceeds availability.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.productLabel(), e.Requested, e.Available)
}

func (e *InsufficientStockError) productLabel() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ProductID
}
