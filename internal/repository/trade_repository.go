package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
)

// TradeRepositoryImpl implements the TradeRepository interface
type TradeRepositoryImpl struct {
	db Querier
}

// NewTradeRepository creates a new TradeRepository
func NewTradeRepository(db Querier) domain.TradeRepository {
	return &TradeRepositoryImpl{db: db}
}

const tradeColumns = `
	id, user_id, symbol, asset_class, position_type, order_type, order_status,
	quantity::TEXT, units::TEXT, entry_price::TEXT, leverage::TEXT,
	notional_value::TEXT, margin_used::TEXT, commission::TEXT, slippage::TEXT,
	pip_value::TEXT, swap::TEXT, stop_loss::TEXT, take_profit::TEXT,
	current_price::TEXT, highest_price::TEXT, lowest_price::TEXT, pnl::TEXT,
	exit_price::TEXT, gross_pnl::TEXT, net_pnl::TEXT, auto_close_reason, is_closed,
	created_at, filled_at, closed_at, cancelled_at`

// Save creates a new trade
func (r *TradeRepositoryImpl) Save(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (
			id, user_id, symbol, asset_class, position_type, order_type, order_status,
			quantity, units, entry_price, leverage, notional_value, margin_used,
			commission, slippage, pip_value, swap, stop_loss, take_profit,
			current_price, highest_price, lowest_price, pnl, is_closed,
			created_at, filled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11::NUMERIC, $12::NUMERIC, $13::NUMERIC,
			$14::NUMERIC, $15::NUMERIC, $16::NUMERIC, $17::NUMERIC, $18::NUMERIC, $19::NUMERIC,
			$20::NUMERIC, $21::NUMERIC, $22::NUMERIC, $23::NUMERIC, $24,
			$25, $26
		)
	`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.UserID,
		t.Symbol,
		string(t.AssetClass),
		t.PositionType,
		t.OrderType,
		t.OrderStatus,
		t.Quantity.String(),
		t.Units.String(),
		t.EntryPrice.String(),
		t.Leverage.String(),
		t.Notional.String(),
		t.MarginUsed.String(),
		t.Commission.String(),
		t.Slippage.String(),
		t.PipValue.String(),
		t.Swap.String(),
		nullableString(t.StopLoss),
		nullableString(t.TakeProfit),
		t.CurrentPrice.String(),
		t.HighestPrice.String(),
		t.LowestPrice.String(),
		t.PnL.String(),
		t.IsClosed,
		t.CreatedAt,
		t.FilledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by ID
func (r *TradeRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	t, err := scanTrade(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTradeNotFound
		}
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return t, nil
}

// GetByUserID retrieves a user's trades, newest first
func (r *TradeRepositoryImpl) GetByUserID(ctx context.Context, userID uuid.UUID, filter domain.TradeFilter) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id = $1`
	switch filter {
	case domain.FilterOpen:
		query += ` AND is_closed = FALSE`
	case domain.FilterClosed:
		query += ` AND is_closed = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	return r.query(ctx, query, userID)
}

// GetOpenByUserID retrieves a user's filled, unclosed trades
func (r *TradeRepositoryImpl) GetOpenByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE user_id = $1 AND order_status = 'filled' AND is_closed = FALSE
		ORDER BY created_at ASC`

	return r.query(ctx, query, userID)
}

// GetUserIDsWithOpenTrades lists users holding open positions
func (r *TradeRepositoryImpl) GetUserIDsWithOpenTrades(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT user_id FROM trades
		WHERE order_status = 'filled' AND is_closed = FALSE`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users with open trades: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update saves price, P&L and settlement fields
func (r *TradeRepositoryImpl) Update(ctx context.Context, t *domain.Trade) error {
	query := `
		UPDATE trades SET
			order_status = $2,
			current_price = $3::NUMERIC,
			highest_price = $4::NUMERIC,
			lowest_price = $5::NUMERIC,
			pnl = $6::NUMERIC,
			commission = $7::NUMERIC,
			swap = $8::NUMERIC,
			exit_price = $9::NUMERIC,
			gross_pnl = $10::NUMERIC,
			net_pnl = $11::NUMERIC,
			auto_close_reason = $12,
			is_closed = $13,
			closed_at = $14,
			cancelled_at = $15
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		t.ID,
		t.OrderStatus,
		t.CurrentPrice.String(),
		t.HighestPrice.String(),
		t.LowestPrice.String(),
		t.PnL.String(),
		t.Commission.String(),
		t.Swap.String(),
		nullableString(t.ExitPrice),
		nullableString(t.GrossPnL),
		nullableString(t.NetPnL),
		t.AutoCloseReason,
		t.IsClosed,
		t.ClosedAt,
		t.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTradeNotFound
	}

	return nil
}

// DeleteByUserID removes every trade of a user
func (r *TradeRepositoryImpl) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM trades WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete trades: %w", err)
	}
	return nil
}

func (r *TradeRepositoryImpl) query(ctx context.Context, query string, args ...any) ([]*domain.Trade, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

func scanTrade(row rowScanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var assetClass string
	var quantity, units, entry, leverage, notional, margin, commission, slippage, pipValue, swap string
	var current, highest, lowest, pnl string
	var stopLoss, takeProfit, exit, gross, net *string

	err := row.Scan(
		&t.ID, &t.UserID, &t.Symbol, &assetClass, &t.PositionType, &t.OrderType, &t.OrderStatus,
		&quantity, &units, &entry, &leverage,
		&notional, &margin, &commission, &slippage,
		&pipValue, &swap, &stopLoss, &takeProfit,
		&current, &highest, &lowest, &pnl,
		&exit, &gross, &net, &t.AutoCloseReason, &t.IsClosed,
		&t.CreatedAt, &t.FilledAt, &t.ClosedAt, &t.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	t.AssetClass = domain.AssetClass(assetClass)

	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"quantity", quantity, &t.Quantity},
		{"units", units, &t.Units},
		{"entry_price", entry, &t.EntryPrice},
		{"leverage", leverage, &t.Leverage},
		{"notional_value", notional, &t.Notional},
		{"margin_used", margin, &t.MarginUsed},
		{"commission", commission, &t.Commission},
		{"slippage", slippage, &t.Slippage},
		{"pip_value", pipValue, &t.PipValue},
		{"swap", swap, &t.Swap},
		{"current_price", current, &t.CurrentPrice},
		{"highest_price", highest, &t.HighestPrice},
		{"lowest_price", lowest, &t.LowestPrice},
		{"pnl", pnl, &t.PnL},
	} {
		if *f.dst, err = parseDecimal(f.name, f.raw); err != nil {
			return nil, err
		}
	}

	for _, f := range []struct {
		name string
		raw  *string
		dst  **decimal.Decimal
	}{
		{"stop_loss", stopLoss, &t.StopLoss},
		{"take_profit", takeProfit, &t.TakeProfit},
		{"exit_price", exit, &t.ExitPrice},
		{"gross_pnl", gross, &t.GrossPnL},
		{"net_pnl", net, &t.NetPnL},
	} {
		if *f.dst, err = parseNullableDecimal(f.name, f.raw); err != nil {
			return nil, err
		}
	}

	return t, nil
}
