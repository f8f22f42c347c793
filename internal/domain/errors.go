package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the accounting engine.
// The delivery layer maps these to HTTP status codes.
var (
	ErrPriceUnavailable    = errors.New("price_unavailable")
	ErrPortfolioNotFound   = errors.New("portfolio_not_found")
	ErrPortfolioExists     = errors.New("portfolio_already_exists")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrTradeNotFound       = errors.New("trade_not_found")
	ErrAlreadyClosed       = errors.New("already_closed")
	ErrTradeNotCancellable = errors.New("trade_not_cancellable")
	ErrConcurrentUpdate    = errors.New("concurrent_update")
	ErrUnsupportedMode     = errors.New("unsupported_mode")
)

// InsufficientBalanceError reports an admission rejection together with the
// amount the user is missing.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s, shortfall %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2), e.Shortfall.StringFixed(2))
}

// Unwrap lets errors.Is match ErrInsufficientBalance.
func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ValidationError represents a request validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
