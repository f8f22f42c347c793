package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
)

// SQLite is an append-only settlement and equity journal
type SQLite struct {
	db *sql.DB
	// go-sqlite3 allows one writer at a time
	mu sync.Mutex
}

var _ domain.SettlementJournal = (*SQLite)(nil)

// NewSQLite opens (or creates) the journal database at path
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordSettlement appends a closed trade. Recording the same trade twice
// keeps the first row.
func (j *SQLite) RecordSettlement(ctx context.Context, rec domain.SettlementRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO settlements
		(trade_id, user_id, symbol, position_type, units, entry_price, exit_price,
		 gross_pnl, commission, net_pnl, reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TradeID.String(), rec.UserID.String(), rec.Symbol, rec.PositionType,
		rec.Units.String(), rec.EntryPrice.String(), rec.ExitPrice.String(),
		rec.GrossPnL.String(), rec.Commission.String(), rec.NetPnL.String(),
		rec.Reason, rec.OpenedAt.UTC(), rec.ClosedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}
	return nil
}

// RecordEquity appends an equity snapshot
func (j *SQLite) RecordEquity(ctx context.Context, snap domain.EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO equity (user_id, time, cash, equity, realized_pnl, unrealized_pnl)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.UserID.String(), snap.At.UTC(), snap.Cash.String(), snap.Equity.String(),
		snap.RealizedPnL.String(), snap.UnrealizedPnL.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to record equity: %w", err)
	}
	return nil
}

// ListSettlements returns a user's settlements, oldest first
func (j *SQLite) ListSettlements(ctx context.Context, userID uuid.UUID) ([]domain.SettlementRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT trade_id, user_id, symbol, position_type, units, entry_price, exit_price,
		       gross_pnl, commission, net_pnl, reason, opened_at, closed_at
		FROM settlements WHERE user_id = ? ORDER BY closed_at, rowid`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var out []domain.SettlementRecord
	for rows.Next() {
		var rec domain.SettlementRecord
		var tradeID, uid string
		var units, entry, exit, gross, commission, net string
		if err := rows.Scan(&tradeID, &uid, &rec.Symbol, &rec.PositionType,
			&units, &entry, &exit, &gross, &commission, &net,
			&rec.Reason, &rec.OpenedAt, &rec.ClosedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		if rec.TradeID, err = uuid.Parse(tradeID); err != nil {
			return nil, fmt.Errorf("invalid trade id %q: %w", tradeID, err)
		}
		if rec.UserID, err = uuid.Parse(uid); err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", uid, err)
		}
		for _, f := range []struct {
			raw string
			dst *decimal.Decimal
		}{
			{units, &rec.Units}, {entry, &rec.EntryPrice}, {exit, &rec.ExitPrice},
			{gross, &rec.GrossPnL}, {commission, &rec.Commission}, {net, &rec.NetPnL},
		} {
			if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
				return nil, fmt.Errorf("invalid decimal %q in settlement %s: %w", f.raw, tradeID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary aggregates a user's journal
type Summary struct {
	Settlements int
	Wins        int
	NetPnL      decimal.Decimal
	Commission  decimal.Decimal
	Snapshots   int
	LastEquity  decimal.Decimal
	LastAt      time.Time
}

// Summarize totals a user's settlements and reports the latest equity snapshot
func (j *SQLite) Summarize(ctx context.Context, userID uuid.UUID) (Summary, error) {
	recs, err := j.ListSettlements(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{NetPnL: decimal.Zero, Commission: decimal.Zero, LastEquity: decimal.Zero}
	for _, r := range recs {
		s.Settlements++
		if r.NetPnL.IsPositive() {
			s.Wins++
		}
		s.NetPnL = s.NetPnL.Add(r.NetPnL)
		s.Commission = s.Commission.Add(r.Commission)
	}

	if err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM equity WHERE user_id = ?`, userID.String(),
	).Scan(&s.Snapshots); err != nil {
		return Summary{}, fmt.Errorf("failed to count equity snapshots: %w", err)
	}
	if s.Snapshots == 0 {
		return s, nil
	}

	var equity string
	err = j.db.QueryRowContext(ctx, `
		SELECT equity, time FROM equity WHERE user_id = ?
		ORDER BY time DESC, id DESC LIMIT 1`, userID.String(),
	).Scan(&equity, &s.LastAt)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read latest equity: %w", err)
	}
	if s.LastEquity, err = decimal.NewFromString(equity); err != nil {
		return Summary{}, fmt.Errorf("invalid equity %q: %w", equity, err)
	}
	return s, nil
}

// Close closes the journal database
func (j *SQLite) Close() error {
	return j.db.Close()
}
