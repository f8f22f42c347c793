package domain

import (
	"github.com/shopspring/decimal"
)

// CommissionRate is charged on notional at entry and on exit value at close.
var CommissionRate = decimal.RequireFromString("0.001")

// Leverage bounds
var (
	MinLeverage        = decimal.NewFromInt(1)
	DefaultMaxLeverage = decimal.NewFromInt(500)
)

// PositionCosts is the sizing result for a prospective trade.
type PositionCosts struct {
	Units          decimal.Decimal
	Notional       decimal.Decimal
	MarginRequired decimal.Decimal
	Commission     decimal.Decimal
	PipValue       decimal.Decimal
}

// TotalRequired is the cash an open needs: margin plus entry commission.
func (c PositionCosts) TotalRequired() decimal.Decimal {
	return c.MarginRequired.Add(c.Commission)
}

// CalculateCosts sizes a position. Forex quantities are lots and are
// multiplied by the instrument lot size.
func CalculateCosts(quantity, executionPrice, leverage decimal.Decimal, inst Instrument) (PositionCosts, error) {
	if !quantity.IsPositive() {
		return PositionCosts{}, invalid("quantity", "must be positive")
	}
	if !executionPrice.IsPositive() {
		return PositionCosts{}, invalid("execution_price", "must be positive")
	}
	if leverage.LessThan(MinLeverage) {
		return PositionCosts{}, invalid("leverage", "must be at least 1")
	}

	units := quantity
	var pipValue decimal.Decimal
	if inst.AssetClass == AssetForex {
		lot := inst.LotSize
		if lot.IsZero() {
			lot = DefaultForexLotSize
		}
		units = quantity.Mul(lot)
		pipSize := inst.PipSize
		if pipSize.IsZero() {
			pipSize = PipSize(inst.Symbol)
		}
		pipValue = pipSize.Div(executionPrice).Mul(lot)
	}

	notional := units.Mul(executionPrice)
	return PositionCosts{
		Units:          units,
		Notional:       notional,
		MarginRequired: notional.Div(leverage),
		Commission:     notional.Mul(CommissionRate),
		PipValue:       pipValue,
	}, nil
}

// CheckAdmission rejects a trade the portfolio cannot fund.
func CheckAdmission(p *Portfolio, costs PositionCosts) error {
	required := costs.TotalRequired()
	if p.CashBalance.LessThan(required) {
		return &InsufficientBalanceError{
			Required:  required,
			Available: p.CashBalance,
			Shortfall: required.Sub(p.CashBalance),
		}
	}
	return nil
}
