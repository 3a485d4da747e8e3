package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindForbidden
	KindConflict
	KindExpired
	KindInternal
)

// Machine codes surfaced in the response envelope. They let clients
// distinguish failures that map to the same HTTP status.
const (
	CodeValidation        = "VALIDATION"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeCartEmpty         = "CART_EMPTY"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeStockChanged      = "STOCK_CHANGED_SINCE_RESERVATION"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeQuoteExpired      = "QUOTE_EXPIRED"
	CodeInvalidDelivery   = "INVALID_DELIVERY_METHOD"
	CodePaymentFailed     = "PAYMENT_FAILED"
)

// Error is the single error type crossing the service boundary. The HTTP
// layer maps Kind to a status code and echoes Code and Message in the
// envelope; anything that is not a *Error is treated as internal.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind ErrorKind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(code, format string, args ...any) *Error {
	return newError(KindValidation, code, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, CodeNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, CodeForbidden, format, args...)
}

func Conflict(code, format string, args ...any) *Error {
	return newError(KindConflict, code, format, args...)
}

func Expired(code, format string, args ...any) *Error {
	return newError(KindExpired, code, format, args...)
}

// KindOf reports the kind of err, or KindInternal for errors that did not
// originate in the domain layer.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
