// Package apperr defines the error taxonomy shared by the order pipeline.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrSessionUnavailable means the payment processor could not produce a
	// usable checkout session within the retry budget.
	ErrSessionUnavailable = errors.New("payment session unavailable")

	// ErrStorageUnavailable means object storage rejected or timed out on
	// every transfer strategy.
	ErrStorageUnavailable = errors.New("object storage unavailable")

	ErrMissingModel    = errors.New("no model selected")
	ErrMissingMaterial = errors.New("no material selected")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidSession  = errors.New("payment session has no redirect url")
)

// Kind maps an error to a short machine-readable identifier.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrSessionUnavailable), errors.Is(err, ErrInvalidSession):
		return "checkout_failed"

	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"

	case errors.Is(err, ErrMissingModel):
		return "missing_model"

	case errors.Is(err, ErrMissingMaterial):
		return "missing_material"

	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the status code the transport should emit.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrMissingModel),
		errors.Is(err, ErrMissingMaterial),
		errors.Is(err, ErrInvalidQuantity):
		return http.StatusBadRequest

	case errors.Is(err, ErrSessionUnavailable),
		errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
