package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

// LeaderboardRepository keeps one snapshot row per user.
type LeaderboardRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

func NewLeaderboardRepository(cfg RepositoryConfig) *LeaderboardRepository {
	return &LeaderboardRepository{
		pool:   cfg.Pool,
		tables: cfg.Tables,
		logger: cfg.Logger,
	}
}

func (r *LeaderboardRepository) Upsert(ctx context.Context, snap *domain.LeaderboardSnapshot) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, total_value, diversification_score, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			total_value = EXCLUDED.total_value,
			diversification_score = EXCLUDED.diversification_score,
			updated_at = EXCLUDED.updated_at`, r.tables.Leaderboard)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		snap.UserID, snap.TotalValue, snap.DiversificationScore, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert leaderboard snapshot: %w", err)
	}
	return nil
}

func (r *LeaderboardRepository) Top(ctx context.Context, limit int) ([]domain.LeaderboardSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`
		SELECT user_id, total_value, diversification_score, updated_at
		FROM %s
		ORDER BY total_value DESC
		LIMIT $1`, r.tables.Leaderboard)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	out := []domain.LeaderboardSnapshot{}
	for rows.Next() {
		var snap domain.LeaderboardSnapshot
		if err := rows.Scan(&snap.UserID, &snap.TotalValue,
			&snap.DiversificationScore, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
