package bybit

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError carries a Bybit retCode alongside the message so callers can
// branch on the failure class.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("bybit API error %d: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Message)
}

// Error codes the options flow actually branches on.
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeOrderNotFound       = 110001
	ErrCodeInvalidOrderType    = 110004
	ErrCodeInsufficientBalance = 110007
	ErrCodeSymbolNotFound      = 110009
	ErrCodeInvalidQuantity     = 110020
	ErrCodeInvalidPrice        = 110021
	ErrCodeMarketClosed        = 110043
)

// IsRetryable reports whether the failure is transient enough to retry.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case ErrCodeRateLimitExceeded,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsAuthError reports credential and signature failures, which are fatal
// for the session.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature, ErrCodeInvalidTimestamp:
		return true
	}
	return false
}

func IsInsufficientBalance(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrCodeInsufficientBalance
}

func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrCodeRateLimitExceeded
}

// ParseAPIError converts a non-zero retCode into an APIError, nil
// otherwise.
func ParseAPIError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return &APIError{Code: retCode, Message: retMsg}
}

// WrapAPIError annotates an error with the operation that produced it.
func WrapAPIError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		apiErr.Details = fmt.Sprintf("operation: %s", operation)
		return apiErr
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}
