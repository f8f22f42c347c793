package http

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradeledger/internal/delivery/http/dto"
	"tradeledger/internal/domain"
	"tradeledger/internal/middleware"
)

const requestTimeout = 10 * time.Second

// TradingHandler serves one mode's portfolio, trade and quote endpoints
type TradingHandler struct {
	trading domain.TradingService
	logger  *zap.Logger
}

// NewTradingHandler creates a new TradingHandler
func NewTradingHandler(trading domain.TradingService, logger *zap.Logger) *TradingHandler {
	return &TradingHandler{
		trading: trading,
		logger:  logger.With(zap.String("mode", string(trading.Mode()))),
	}
}

// Mode returns the ledger mode this handler serves
func (h *TradingHandler) Mode() domain.Mode {
	return h.trading.Mode()
}

// GetPortfolio returns the caller's portfolio
// GET /api/:mode/portfolio
func (h *TradingHandler) GetPortfolio(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.trading.GetPortfolio(ctx, userID)
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}
	return SuccessResponse(c, dto.NewPortfolioOutput(p))
}

// EnsurePortfolio creates the caller's portfolio if it does not exist
// POST /api/:mode/portfolio
func (h *TradingHandler) EnsurePortfolio(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	var req dto.EnsurePortfolioRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return BadRequestResponse(c, "Invalid request payload")
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.trading.EnsurePortfolio(ctx, userID, req.LeagueID)
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}
	return SuccessResponse(c, dto.NewPortfolioOutput(p))
}

// ResetPortfolio restores a demo portfolio to its starting balance
// POST /api/demo/portfolio/reset
func (h *TradingHandler) ResetPortfolio(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.trading.ResetPortfolio(ctx, userID)
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}
	return SuccessMessageResponse(c, "Portfolio reset", dto.NewPortfolioOutput(p))
}

// ListTrades returns the caller's trades, newest first
// GET /api/:mode/trades?status=open|closed|all
func (h *TradingHandler) ListTrades(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	filter, err := domain.ParseTradeFilter(c.QueryParam("status"))
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	trades, err := h.trading.ListTrades(ctx, userID, filter)
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}
	return SuccessResponse(c, trades)
}

// OpenTrade opens a position
// POST /api/:mode/trades
func (h *TradingHandler) OpenTrade(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	var req dto.OpenTradeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	trade, err := h.trading.OpenTrade(ctx, userID, req.ToDomain())
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}
	return CreatedResponse(c, trade)
}

// CloseTrade settles an open trade
// POST /api/:mode/trades/:id/close
func (h *TradingHandler) CloseTrade(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "Invalid trade ID")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	// users always settle at the current quote; exit price and reason
	// overrides are reserved for ticks and operator tooling
	trade, err := h.trading.CloseTrade(ctx, userID, tradeID, domain.CloseRequest{Reason: domain.ReasonManualClose})
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}
	return SuccessMessageResponse(c, "Trade closed", trade)
}

// CloseAllTrades closes every open trade of the caller
// POST /api/:mode/trades/close-all
func (h *TradingHandler) CloseAllTrades(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*requestTimeout)
	defer cancel()

	closed, err := h.trading.CloseAllTrades(ctx, userID, domain.ReasonManualClose)
	out := dto.CloseAllOutput{Closed: closed}
	if err != nil {
		if len(closed) == 0 {
			return DomainErrorResponse(c, h.logger, err)
		}
		h.logger.Warn("close all partially failed", zap.String("user_id", userID.String()), zap.Error(err))
		out.Failed = err.Error()
	}
	return SuccessResponse(c, out)
}

// CancelTrade cancels a pending trade
// POST /api/:mode/trades/:id/cancel
func (h *TradingHandler) CancelTrade(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "Invalid trade ID")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	trade, err := h.trading.CancelTrade(ctx, userID, tradeID)
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}
	return SuccessMessageResponse(c, "Trade cancelled", trade)
}

// Tick marks the caller's open trades to market now
// POST /api/:mode/tick
func (h *TradingHandler) Tick(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.trading.MarkToMarket(ctx, userID)
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}
	return SuccessResponse(c, dto.NewTickOutput(res))
}

// GetQuote returns the current quote of a symbol
// GET /api/:mode/quotes/:symbol
func (h *TradingHandler) GetQuote(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	q, err := h.trading.GetQuote(ctx, c.Param("symbol"))
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}
	return SuccessResponse(c, q)
}
