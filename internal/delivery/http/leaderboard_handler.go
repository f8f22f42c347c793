package http

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tradeledger/internal/domain"
)

// LeaderboardHandler serves league standings
type LeaderboardHandler struct {
	boards domain.LeaderboardService
	logger *zap.Logger
}

// NewLeaderboardHandler creates a new LeaderboardHandler
func NewLeaderboardHandler(boards domain.LeaderboardService, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{boards: boards, logger: logger}
}

// GetLeaderboard returns the ranked entries of a league
// GET /api/leaderboard/:league_id
func (h *LeaderboardHandler) GetLeaderboard(c echo.Context) error {
	leagueID, err := uuid.Parse(c.Param("league_id"))
	if err != nil {
		return BadRequestResponse(c, "Invalid league ID")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	entries, err := h.boards.GetLeaderboard(ctx, leagueID)
	if err != nil {
		return DomainErrorResponse(c, h.logger, err)
	}
	return SuccessResponse(c, entries)
}
