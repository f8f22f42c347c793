package domain

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LeaderboardEntry is one ranked row of a league leaderboard.
type LeaderboardEntry struct {
	UserID           uuid.UUID       `json:"user_id"`
	Username         string          `json:"username"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	StartingBalance  decimal.Decimal `json:"starting_balance"`
	ReturnPercentage decimal.Decimal `json:"return_percentage"`
	LeagueID         uuid.UUID       `json:"league_id"`
	CanBeCopied      bool            `json:"can_be_copied"`
	Rank             int             `json:"rank"`
}

// RankPortfolios orders portfolios by return percentage, best first, and
// assigns 1-based ranks. Ties keep the earlier-created portfolio ahead.
func RankPortfolios(leagueID uuid.UUID, portfolios []*Portfolio) []LeaderboardEntry {
	sorted := make([]*Portfolio, len(portfolios))
	copy(sorted, portfolios)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].ReturnPercentage(), sorted[j].ReturnPercentage()
		if !ri.Equal(rj) {
			return ri.GreaterThan(rj)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	entries := make([]LeaderboardEntry, 0, len(sorted))
	for i, p := range sorted {
		entries = append(entries, LeaderboardEntry{
			UserID:           p.UserID,
			TotalEquity:      p.TotalEquity,
			StartingBalance:  p.StartingBalance,
			ReturnPercentage: p.ReturnPercentage(),
			LeagueID:         leagueID,
			Rank:             i + 1,
		})
	}
	return entries
}
