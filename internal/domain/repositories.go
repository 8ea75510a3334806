package domain

import (
	"context"
	"time"
)

// ConversationRepository is the transcript store. AppendMessage must be a
// single atomic append-plus-timestamp operation: two turns appending to the
// same conversation from different execution contexts may interleave in any
// order, and neither may observe or overwrite the other's in-flight state.
type ConversationRepository interface {
	Create(ctx context.Context, conv *Conversation) error
	Get(ctx context.Context, id, userID string) (*Conversation, error)
	List(ctx context.Context, userID string) ([]Conversation, error)
	Rename(ctx context.Context, id, userID, title string) error
	Delete(ctx context.Context, id, userID string) error

	// AppendMessages atomically pushes one or more messages and bumps
	// updated_at. Never read-modify-write.
	AppendMessages(ctx context.Context, id string, at time.Time, msgs ...Message) error
	SetTitle(ctx context.Context, id, title string) error
}

// ProfileRepository stores per-user settings. GetByPhone resolves inbound
// webhook messages to a user.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*UserProfile, error)
	GetByPhone(ctx context.Context, phone string) (*UserProfile, error)
	Upsert(ctx context.Context, profile *UserProfile) error
}

// StockDataRepository queries the local stock database seeded out-of-band.
type StockDataRepository interface {
	Query(ctx context.Context, filter StockQueryFilter) ([]StockRow, error)
	Get(ctx context.Context, symbol string) (*StockRow, error)
}

// PortfolioRepository persists virtual portfolios for simulated mode.
type PortfolioRepository interface {
	Get(ctx context.Context, userID string) (*SimPortfolio, error)
	Save(ctx context.Context, p *SimPortfolio) error
}

// LeaderboardRepository keeps one snapshot row per user.
type LeaderboardRepository interface {
	Upsert(ctx context.Context, snap *LeaderboardSnapshot) error
	Top(ctx context.Context, limit int) ([]LeaderboardSnapshot, error)
}
