package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradeledger/internal/domain"
)

// PostgresLedger implements domain.Ledger on a pgx pool
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a new PostgresLedger
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// Repositories returns pool-backed repositories
func (l *PostgresLedger) Repositories() domain.Repositories {
	return repositoriesFor(l.pool)
}

// WithinTx runs fn in a read-committed transaction. Row locks taken with
// GetForUpdate serialize writers on the same portfolio.
func (l *PostgresLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// no-op once committed
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, repositoriesFor(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func repositoriesFor(q Querier) domain.Repositories {
	return domain.Repositories{
		Portfolios: NewPortfolioRepository(q),
		Trades:     NewTradeRepository(q),
	}
}
