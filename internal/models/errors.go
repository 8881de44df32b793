package models

import (
	"errors"
	"net/http"
)

// ErrorKind is the machine-readable rejection code returned to callers.
type ErrorKind string

const (
	KindInvalidInput           ErrorKind = "INVALID_INPUT"
	KindRateLimited            ErrorKind = "RATE_LIMITED"
	KindCSRFInvalid            ErrorKind = "CSRF_INVALID"
	KindReplayInvalid          ErrorKind = "REPLAY_INVALID"
	KindRewardNotFound         ErrorKind = "REWARD_NOT_FOUND"
	KindReferenceNotFound      ErrorKind = "REFERENCE_NOT_FOUND"
	KindAmountMismatch         ErrorKind = "AMOUNT_MISMATCH"
	KindAlreadyClaimed         ErrorKind = "ALREADY_CLAIMED"
	KindStoreUnavailable       ErrorKind = "STORE_UNAVAILABLE"
	KindSettlementUnauthorized ErrorKind = "SETTLEMENT_UNAUTHORIZED"
	KindMaintenance            ErrorKind = "MAINTENANCE"
)

// AppError carries an ErrorKind across layer boundaries so handlers can map
// rejections to HTTP responses without string matching.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError creates a typed error with no underlying cause.
func NewError(kind ErrorKind, message string) error {
	return &AppError{Kind: kind, Message: message}
}

// WrapError attaches a kind to an underlying error.
func WrapError(kind ErrorKind, message string, err error) error {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from an error chain. Unknown errors are
// treated as store/internal failures so nothing leaks to clients untyped.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStoreUnavailable
}

// HTTPStatus maps an ErrorKind to the status code callers expect.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindInvalidInput, KindAmountMismatch:
		return http.StatusBadRequest
	case KindCSRFInvalid, KindReplayInvalid, KindMaintenance, KindSettlementUnauthorized:
		return http.StatusForbidden
	case KindRewardNotFound, KindReferenceNotFound:
		return http.StatusNotFound
	case KindAlreadyClaimed:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
