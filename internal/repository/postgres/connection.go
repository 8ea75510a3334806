package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

// RepositoryConfig holds the shared dependencies of all repositories.
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names so dev/test/prod share
// one database.
type TableNames struct {
	Conversations string
	Profiles      string
	Stocks        string
	Portfolios    string
	Leaderboard   string
}

// NewTableNames creates table names with the given prefix.
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Conversations: prefix + "conversations",
		Profiles:      prefix + "profiles",
		Stocks:        prefix + "stocks",
		Portfolios:    prefix + "portfolios",
		Leaderboard:   prefix + "leaderboard",
	}
}

// CreateConnectionPool creates a pgx pool with PgBouncer compatibility.
//
// Transaction poolers (port 6543 on Supabase) do not support prepared
// statements; when that port is detected and no explicit mode was set in
// the connection string, switch to QueryExecModeCacheDescribe, which uses
// the extended protocol (needed for JSONB encoding of map values) without
// creating named prepared statements.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the context's transaction when one is present, and
// the pool otherwise, so repositories automatically join transactions.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) domain.DBTX {
	if tx := domain.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
