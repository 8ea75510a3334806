package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tradedesk/internal/domain"
	"tradedesk/internal/safety"
	"tradedesk/internal/tools"
)

const baseSystemInstruction = "You are a personalized trading assistant. " +
	"You have full permission to access the user's portfolio (holdings), place orders, " +
	"and fetch market data on their behalf using the provided tools. Do not refuse these " +
	"requests based on privacy; the user has authenticated and authorized this. Your goal " +
	"is to help the user study market trends, understand financial concepts, and learn " +
	"about trading algorithms. You have access to a local database of stock market data " +
	"which you can query using the 'query_market_data' tool to find stocks based on " +
	"sector, price, PE ratio, and market cap. Use this tool when the user asks to find, " +
	"list, or screen for stocks (e.g., 'undervalued banks', 'large cap IT'). You can also " +
	"provide technical analysis and news. Always state that your analysis is for " +
	"educational purposes only and does not constitute financial advice. Explain your " +
	"reasoning to help the user learn."

// TurnRequest is one inbound user message bound to its conversation.
type TurnRequest struct {
	UserID         string
	ConversationID string
	Text           string
	Mode           domain.Mode
	History        []domain.Message
	Attachments    []Attachment
	// KeepTitle suppresses first-exchange title generation. Background
	// channels locate their conversation by its fixed title, so a rename
	// would orphan it.
	KeepTitle bool
}

// Orchestrator drives a turn end to end: safety gate, model call, tool
// execution, follow-up, structured events, and durable persistence.
type Orchestrator struct {
	gate          *safety.Gate
	model         domain.ModelClient
	executor      *tools.Executor
	conversations domain.ConversationRepository
	profiles      domain.ProfileRepository
	logger        *slog.Logger
}

func New(
	gate *safety.Gate,
	model domain.ModelClient,
	executor *tools.Executor,
	conversations domain.ConversationRepository,
	profiles domain.ProfileRepository,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		gate:          gate,
		model:         model,
		executor:      executor,
		conversations: conversations,
		profiles:      profiles,
		logger:        logger,
	}
}

// ProcessTurn runs one turn and returns its finite event stream. The
// channel is buffered so persistence completes even when the consumer
// walks away; it always ends with exactly one EventDone.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) <-chan Event {
	events := make(chan Event, 64)
	go func() {
		defer close(events)
		o.runTurn(ctx, req, events)
		events <- doneEvent()
	}()
	return events
}

func (o *Orchestrator) runTurn(ctx context.Context, req TurnRequest, events chan<- Event) {
	o.appendMessage(ctx, req.ConversationID, domain.RoleUser, req.Text)

	ok, gateMsg, assessment := o.gate.Decide(ctx, req.Text)
	if !ok {
		o.logger.Info("turn blocked",
			"conversation_id", req.ConversationID,
			"category", assessment.Category,
			"risk", assessment.FinalRisk)
		o.appendMessage(ctx, req.ConversationID, domain.RoleAssistant, gateMsg)
		events <- textEvent(gateMsg)
		return
	}

	profile, err := o.profiles.Get(ctx, req.UserID)
	if err != nil {
		o.logger.Warn("profile lookup failed, proceeding without",
			"user_id", req.UserID, "error", err)
		profile = nil
	}

	system := baseSystemInstruction
	if profile != nil && profile.Bio != "" {
		system += fmt.Sprintf(" The user has provided the following bio: '%s'. "+
			"Adapt your persona and responses accordingly.", profile.Bio)
	}

	chat := o.model.NewChat(system, tools.Catalog(req.Mode), req.History)
	reply, err := chat.Send(ctx, buildParts(req.Text, req.Attachments))
	if err != nil {
		o.failTurn(ctx, req, events, err)
		return
	}

	assistantText := reply.Text
	if reply.Call != nil {
		result, structured := o.executeCall(ctx, req, profile, reply.Call)
		if structured != nil {
			events <- *structured
		}
		followUp, err := chat.SendToolResult(ctx, reply.Call.Name, result.Response())
		if err != nil {
			o.failTurn(ctx, req, events, err)
			return
		}
		assistantText = followUp.Text
	}

	if ok, msg := o.gate.FilterResponse(assistantText); !ok {
		assistantText = msg
	}

	// Persist before emitting so an abandoned consumer cannot lose the turn.
	o.appendMessage(ctx, req.ConversationID, domain.RoleAssistant, assistantText)
	events <- textEvent(assistantText)

	if len(req.History) == 0 && !req.KeepTitle {
		o.emitTitle(ctx, req, assistantText, events)
	}
}

// executeCall parses, normalizes, and executes the model's single tool
// call, and derives the structured client event the tool warrants.
func (o *Orchestrator) executeCall(ctx context.Context, req TurnRequest, profile *domain.UserProfile, fc *domain.FunctionCall) (domain.ToolResult, *Event) {
	tool, err := domain.ParseTool(fc.Name)
	if err != nil {
		o.logger.Warn("model requested unknown tool", "name", fc.Name)
		return domain.Errorf("Unknown tool: %s", fc.Name), nil
	}

	call := domain.ToolCall{Tool: tool, Args: fc.Args}
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	tools.Normalize(&call)

	o.logger.Info("executing tool",
		"conversation_id", req.ConversationID,
		"tool", tool,
		"mode", req.Mode)

	result := o.executor.Execute(ctx, tools.ExecContext{
		UserID:  req.UserID,
		Mode:    req.Mode,
		Profile: profile,
	}, call)

	return result, o.structuredEvent(tool, call, result)
}

// structuredEvent maps a successful tool result onto the tagged frame the
// client renders alongside the prose.
func (o *Orchestrator) structuredEvent(tool domain.Tool, call domain.ToolCall, result domain.ToolResult) *Event {
	if !result.Success {
		return nil
	}
	switch tool {
	case domain.ToolGetHoldings:
		return o.marshalEvent(EventHoldings, result.Payload["holdings"])
	case domain.ToolGetStockInfo:
		return o.marshalEvent(EventStocks, map[string]any{
			"type": "single",
			"data": result.Response(),
		})
	case domain.ToolGetMarketMovers:
		return o.marshalEvent(EventStocks, map[string]any{
			"type": "movers",
			"data": result.Response(),
		})
	case domain.ToolScreenStocks:
		strategy := tools.StringArg(call.Args, "strategy")
		if strategy == "" {
			strategy = "stock"
		}
		return o.marshalEvent(EventStocks, map[string]any{
			"type":  "list",
			"title": capitalize(strategy) + " Stocks",
			"data":  result.Payload["stocks"],
		})
	case domain.ToolQueryMarketData:
		return o.marshalEvent(EventStocks, map[string]any{
			"type":  "list",
			"title": "Market Query Results",
			"data":  result.Payload["stocks"],
		})
	default:
		return nil
	}
}

func (o *Orchestrator) marshalEvent(kind EventKind, payload any) *Event {
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.Warn("serializing structured event failed", "error", err)
		return nil
	}
	ev := taggedEvent(kind, string(data))
	return &ev
}

// failTurn contains a model failure: one error-text event, persisted like
// any other assistant message.
func (o *Orchestrator) failTurn(ctx context.Context, req TurnRequest, events chan<- Event, cause error) {
	o.logger.Error("turn failed", "conversation_id", req.ConversationID, "error", cause)
	errText := "AI error: " + cause.Error()
	o.appendMessage(ctx, req.ConversationID, domain.RoleAssistant, errText)
	events <- textEvent(errText)
}

// emitTitle generates and persists a conversation title after the first
// exchange. Best-effort: failures are logged, never surfaced.
func (o *Orchestrator) emitTitle(ctx context.Context, req TurnRequest, assistantText string, events chan<- Event) {
	title, err := o.model.Title(ctx, []domain.Message{
		{Role: domain.RoleUser, Content: req.Text},
		{Role: domain.RoleAssistant, Content: assistantText},
	})
	if err != nil {
		o.logger.Warn("title generation failed", "conversation_id", req.ConversationID, "error", err)
		return
	}
	if err := o.conversations.SetTitle(ctx, req.ConversationID, title); err != nil {
		o.logger.Warn("persisting title failed", "conversation_id", req.ConversationID, "error", err)
		return
	}
	if ev := o.marshalEvent(EventTitle, map[string]string{"title": title}); ev != nil {
		events <- *ev
	}
}

func (o *Orchestrator) appendMessage(ctx context.Context, conversationID string, role domain.Role, content string) {
	now := time.Now().UTC()
	err := o.conversations.AppendMessages(ctx, conversationID, now, domain.Message{
		Role:      role,
		Content:   content,
		CreatedAt: now,
	})
	if err != nil {
		o.logger.Error("appending message failed",
			"conversation_id", conversationID, "role", role, "error", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
