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

// ConversationRepository stores conversations with their transcript as an
// append-only jsonb array.
type ConversationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

func NewConversationRepository(cfg RepositoryConfig) *ConversationRepository {
	return &ConversationRepository{
		pool:   cfg.Pool,
		tables: cfg.Tables,
		logger: cfg.Logger,
	}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, title, mode, messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.tables.Conversations)

	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	executor := GetExecutor(ctx, r.pool)
	_, err = executor.Exec(ctx, query,
		conv.ID, conv.UserID, conv.Title, string(conv.Mode), messages,
		conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return &domain.ValidationError{Message: "conversation already exists"}
		}
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Get(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, mode, messages, created_at, updated_at
		FROM %s
		WHERE id = $1 AND user_id = $2`, r.tables.Conversations)

	var (
		conv     domain.Conversation
		mode     string
		messages []byte
	)
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id, userID).Scan(
		&conv.ID, &conv.UserID, &conv.Title, &mode, &messages,
		&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, &domain.NotFoundError{Message: "conversation not found"}
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	conv.Mode = domain.ParseMode(mode)
	if err := json.Unmarshal(messages, &conv.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	return &conv, nil
}

// List returns the user's conversations newest first, without transcripts.
func (r *ConversationRepository) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, mode, created_at, updated_at
		FROM %s
		WHERE user_id = $1
		ORDER BY updated_at DESC`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []domain.Conversation{}
	for rows.Next() {
		var (
			conv domain.Conversation
			mode string
		)
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &mode,
			&conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv.Mode = domain.ParseMode(mode)
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (r *ConversationRepository) Rename(ctx context.Context, id, userID, title string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET title = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, userID, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: "conversation not found"}
	}
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: "conversation not found"}
	}
	return nil
}

// AppendMessages pushes messages onto the jsonb transcript in one atomic
// UPDATE. Concurrent turns appending to the same conversation interleave
// without ever observing each other's in-flight state; there is no
// read-modify-write anywhere on this path.
func (r *ConversationRepository) AppendMessages(ctx context.Context, id string, at time.Time, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET messages = messages || $2::jsonb, updated_at = $3
		WHERE id = $1`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, payload, at)
	if err != nil {
		return fmt.Errorf("append messages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: "conversation not found"}
	}
	return nil
}

func (r *ConversationRepository) SetTitle(ctx context.Context, id, title string) error {
	query := fmt.Sprintf(`UPDATE %s SET title = $2 WHERE id = $1`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, id, title)
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: "conversation not found"}
	}
	return nil
}
