package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tradedesk/internal/domain"
)

// ProfileRepository stores per-user settings: bio, trade ceiling, and
// brokerage credentials (kept opaque, never logged).
type ProfileRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

func NewProfileRepository(cfg RepositoryConfig) *ProfileRepository {
	return &ProfileRepository{
		pool:   cfg.Pool,
		tables: cfg.Tables,
		logger: cfg.Logger,
	}
}

func (r *ProfileRepository) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := fmt.Sprintf(`
		SELECT user_id, bio, trade_threshold, phone_number, broker_api_key, broker_token
		FROM %s
		WHERE user_id = $1`, r.tables.Profiles)

	return r.scanOne(ctx, query, userID)
}

func (r *ProfileRepository) GetByPhone(ctx context.Context, phone string) (*domain.UserProfile, error) {
	query := fmt.Sprintf(`
		SELECT user_id, bio, trade_threshold, phone_number, broker_api_key, broker_token
		FROM %s
		WHERE phone_number = $1`, r.tables.Profiles)

	return r.scanOne(ctx, query, phone)
}

func (r *ProfileRepository) scanOne(ctx context.Context, query string, arg any) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, arg).Scan(
		&profile.UserID, &profile.Bio, &profile.TradeThreshold,
		&profile.PhoneNumber, &profile.BrokerAPIKey, &profile.BrokerToken)
	if err != nil {
		if isNoRows(err) {
			return nil, &domain.NotFoundError{Message: "profile not found"}
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, profile *domain.UserProfile) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, bio, trade_threshold, phone_number, broker_api_key, broker_token, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			bio = EXCLUDED.bio,
			trade_threshold = EXCLUDED.trade_threshold,
			phone_number = EXCLUDED.phone_number,
			broker_api_key = EXCLUDED.broker_api_key,
			broker_token = EXCLUDED.broker_token,
			updated_at = EXCLUDED.updated_at`, r.tables.Profiles)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		profile.UserID, profile.Bio, profile.TradeThreshold, profile.PhoneNumber,
		profile.BrokerAPIKey, profile.BrokerToken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
