package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradeledger/internal/domain"
)

// Error codes returned in the response envelope
const (
	CodeValidation          = "ValidationError"
	CodeUnauthorized        = "Unauthorized"
	CodePriceUnavailable    = "PriceUnavailable"
	CodePortfolioNotFound   = "PortfolioNotFound"
	CodeInsufficientBalance = "InsufficientBalance"
	CodeTradeNotFound       = "TradeNotFound"
	CodeAlreadyClosed       = "AlreadyClosed"
	CodeNotCancellable      = "TradeNotCancellable"
	CodeConcurrentUpdate    = "ConcurrentUpdate"
	CodeUnsupportedMode     = "UnsupportedMode"
	CodeUnexpected          = "UnexpectedError"
)

// classify maps a domain error to its HTTP status, code and details
func classify(err error) (int, string, interface{}) {
	var verr *domain.ValidationError
	var ib *domain.InsufficientBalanceError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, CodeValidation, map[string]string{"field": verr.Field, "reason": verr.Message}
	case errors.As(err, &ib):
		return http.StatusUnprocessableEntity, CodeInsufficientBalance, map[string]string{
			"required":  ib.Required.StringFixed(2),
			"available": ib.Available.StringFixed(2),
			"shortfall": ib.Shortfall.StringFixed(2),
		}
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, CodeInsufficientBalance, nil
	case errors.Is(err, domain.ErrPortfolioNotFound):
		return http.StatusNotFound, CodePortfolioNotFound, nil
	case errors.Is(err, domain.ErrTradeNotFound):
		return http.StatusNotFound, CodeTradeNotFound, nil
	case errors.Is(err, domain.ErrAlreadyClosed):
		return http.StatusConflict, CodeAlreadyClosed, nil
	case errors.Is(err, domain.ErrTradeNotCancellable):
		return http.StatusConflict, CodeNotCancellable, nil
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict, CodeConcurrentUpdate, nil
	case errors.Is(err, domain.ErrPortfolioExists):
		return http.StatusConflict, CodeConcurrentUpdate, nil
	case errors.Is(err, domain.ErrUnsupportedMode):
		return http.StatusBadRequest, CodeUnsupportedMode, nil
	case errors.Is(err, domain.ErrPriceUnavailable):
		return http.StatusServiceUnavailable, CodePriceUnavailable, nil
	default:
		return http.StatusInternalServerError, CodeUnexpected, nil
	}
}

// DomainErrorResponse writes err using the error taxonomy. Unexpected
// errors are logged and their text is not exposed.
func DomainErrorResponse(c echo.Context, logger *zap.Logger, err error) error {
	status, code, details := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		message = "Internal server error"
	}
	return ErrorResponse(c, status, message, &ErrorBody{Code: code, Details: details})
}
