package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tradedesk/internal/domain"
	"tradedesk/internal/orchestrator"
)

const sendAttempts = 3

// Task is one inbound webhook message queued for background processing.
type Task struct {
	UserID         string
	ConversationID string
	ReplyTo        string
	Text           string
}

// Queue runs webhook turns in the background. The webhook handler enqueues
// and answers the provider immediately; a worker drains the queue, runs
// the same turn pipeline as the streaming path, and delivers the reply to
// the provider. Delivery is at-least-once: a full queue rejects the task
// so the provider retries the webhook.
type Queue struct {
	tasks         chan Task
	turns         *orchestrator.Orchestrator
	conversations domain.ConversationRepository
	messenger     Messenger
	logger        *slog.Logger
}

// NewQueue creates a webhook task queue with a bounded buffer.
func NewQueue(
	size int,
	turns *orchestrator.Orchestrator,
	conversations domain.ConversationRepository,
	messenger Messenger,
	logger *slog.Logger,
) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		tasks:         make(chan Task, size),
		turns:         turns,
		conversations: conversations,
		messenger:     messenger,
		logger:        logger,
	}
}

// Enqueue offers a task to the queue without blocking. Returns false when
// the queue is full.
func (q *Queue) Enqueue(task Task) bool {
	select {
	case q.tasks <- task:
		return true
	default:
		q.logger.Warn("webhook queue full, rejecting task",
			"user_id", task.UserID,
			"conversation_id", task.ConversationID,
		)
		return false
	}
}

// Run drains the queue until ctx is cancelled. Every task terminates with
// an explicit completed or failed log line.
func (q *Queue) Run(ctx context.Context) {
	q.logger.Info("webhook queue worker started", "capacity", cap(q.tasks))
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("webhook queue worker stopped")
			return
		case task := <-q.tasks:
			start := time.Now()
			if err := q.process(ctx, task); err != nil {
				q.logger.Error("webhook task failed",
					"user_id", task.UserID,
					"conversation_id", task.ConversationID,
					"duration", time.Since(start),
					"error", err,
				)
				continue
			}
			q.logger.Info("webhook task completed",
				"user_id", task.UserID,
				"conversation_id", task.ConversationID,
				"duration", time.Since(start),
			)
		}
	}
}

func (q *Queue) process(ctx context.Context, task Task) error {
	conv, err := q.conversations.Get(ctx, task.ConversationID, task.UserID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	events := q.turns.ProcessTurn(ctx, orchestrator.TurnRequest{
		UserID:         task.UserID,
		ConversationID: conv.ID,
		Text:           task.Text,
		Mode:           conv.Mode,
		History:        conv.Messages,
		KeepTitle:      true,
	})

	reply := renderReply(events)
	if reply == "" {
		return fmt.Errorf("turn produced no reply text")
	}
	return q.send(ctx, task.ReplyTo, reply)
}

// renderReply flattens a turn's event stream into one plain-text message.
// Structured frames the web client renders as tables become readable text.
func renderReply(events <-chan orchestrator.Event) string {
	var b strings.Builder
	for ev := range events {
		switch ev.Kind {
		case orchestrator.EventText:
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(ev.Data)
		case orchestrator.EventHoldings:
			if text := formatHoldings(ev.Data); text != "" {
				if b.Len() > 0 {
					b.WriteString("\n\n")
				}
				b.WriteString(text)
			}
		}
	}
	return b.String()
}

func formatHoldings(payload string) string {
	var holdings []domain.Holding
	if err := json.Unmarshal([]byte(payload), &holdings); err != nil || len(holdings) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Your Holdings:")
	for _, h := range holdings {
		fmt.Fprintf(&b, "\n- %s: %d @ %.2f (P&L %.2f)",
			h.TradingSymbol, h.Quantity, h.AveragePrice, h.PnL)
	}
	return b.String()
}

// send delivers the reply with bounded retries.
func (q *Queue) send(ctx context.Context, to, body string) error {
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err = q.messenger.SendMessage(ctx, to, body); err == nil {
			return nil
		}
		q.logger.Warn("reply delivery failed",
			"to", to,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return fmt.Errorf("deliver reply after %d attempts: %w", sendAttempts, err)
}
