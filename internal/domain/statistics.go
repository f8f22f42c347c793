package domain

import (
	"github.com/shopspring/decimal"
)

// RecomputeStatistics rebuilds every derived portfolio figure from the full
// trade history. Only filled trades count; pending, cancelled and rejected
// rows are ignored.
func RecomputeStatistics(p *Portfolio, trades []*Trade) {
	var total, winning, losing, closed, open int
	realized, unrealized := decimal.Zero, decimal.Zero
	largestWin, largestLoss := decimal.Zero, decimal.Zero
	maxPosition, exposure := decimal.Zero, decimal.Zero

	for _, t := range trades {
		if t.OrderStatus != StatusFilled {
			continue
		}
		total++

		if t.IsClosed {
			closed++
			net := t.PnL
			if t.NetPnL != nil {
				net = *t.NetPnL
			}
			realized = realized.Add(net)
			switch {
			case net.IsPositive():
				winning++
			case net.IsNegative():
				losing++
			}
			if net.GreaterThan(largestWin) {
				largestWin = net
			}
			if net.LessThan(largestLoss) {
				largestLoss = net
			}
			continue
		}

		open++
		unrealized = unrealized.Add(t.PnL)
		price := t.CurrentPrice
		if price.IsZero() {
			price = t.EntryPrice
		}
		size := t.Units.Mul(price).Abs()
		exposure = exposure.Add(size)
		if size.GreaterThan(maxPosition) {
			maxPosition = size
		}
	}

	p.TotalTrades = total
	p.WinningTrades = winning
	p.LosingTrades = losing
	p.WinRate = decimal.Zero
	if closed > 0 {
		p.WinRate = decimal.NewFromInt(int64(winning)).Div(decimal.NewFromInt(int64(closed))).Mul(hundred)
	}
	p.LargestWin = largestWin
	p.LargestLoss = largestLoss
	p.RealizedPnL = realized
	p.UnrealizedPnL = unrealized
	p.PositionCount = open
	p.MaxPositionSize = maxPosition
	p.TotalEquity = p.CashBalance.Add(unrealized)

	p.RiskScore = decimal.Zero
	if p.TotalEquity.IsPositive() {
		p.RiskScore = exposure.Div(p.TotalEquity).Mul(hundred)
	}
}
