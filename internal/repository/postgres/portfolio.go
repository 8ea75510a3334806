package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

// PortfolioRepository persists one virtual-portfolio document per user,
// holdings as jsonb.
type PortfolioRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

func NewPortfolioRepository(cfg RepositoryConfig) *PortfolioRepository {
	return &PortfolioRepository{
		pool:   cfg.Pool,
		tables: cfg.Tables,
		logger: cfg.Logger,
	}
}

// Get returns the user's portfolio, or nil when none exists yet. The
// ledger treats nil as a fresh portfolio at starting cash.
func (r *PortfolioRepository) Get(ctx context.Context, userID string) (*domain.SimPortfolio, error) {
	query := fmt.Sprintf(`
		SELECT user_id, cash, holdings
		FROM %s
		WHERE user_id = $1`, r.tables.Portfolios)

	var (
		p        domain.SimPortfolio
		holdings []byte
	)
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Cash, &holdings)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get portfolio: %w", err)
	}

	if err := json.Unmarshal(holdings, &p.Holdings); err != nil {
		return nil, fmt.Errorf("unmarshal holdings: %w", err)
	}
	return &p, nil
}

func (r *PortfolioRepository) Save(ctx context.Context, p *domain.SimPortfolio) error {
	holdings, err := json.Marshal(p.Holdings)
	if err != nil {
		return fmt.Errorf("marshal holdings: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, cash, holdings, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			cash = EXCLUDED.cash,
			holdings = EXCLUDED.holdings,
			updated_at = EXCLUDED.updated_at`, r.tables.Portfolios)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, p.UserID, p.Cash, holdings, time.Now().UTC()); err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}
