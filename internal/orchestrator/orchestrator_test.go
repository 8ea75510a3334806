package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"tradedesk/internal/domain"
	"tradedesk/internal/safety"
	"tradedesk/internal/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGate(t *testing.T) *safety.Gate {
	t.Helper()
	rules, err := safety.LoadRules("")
	if err != nil {
		t.Fatalf("loading default rules: %v", err)
	}
	return safety.NewGate(rules, safety.NewClassifier(rules, nil, discardLogger()), discardLogger())
}

// scripted model replays a fixed sequence of replies.
type fakeChat struct {
	replies    []*domain.ModelReply
	errs       []error
	sendCalls  int
	resultName string
}

func (c *fakeChat) next() (*domain.ModelReply, error) {
	i := c.sendCalls
	c.sendCalls++
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i >= len(c.replies) {
		return &domain.ModelReply{Text: "done"}, nil
	}
	return c.replies[i], nil
}

func (c *fakeChat) Send(ctx context.Context, parts []domain.Part) (*domain.ModelReply, error) {
	return c.next()
}

func (c *fakeChat) SendToolResult(ctx context.Context, name string, response map[string]any) (*domain.ModelReply, error) {
	c.resultName = name
	return c.next()
}

type fakeModel struct {
	chat       *fakeChat
	title      string
	titleErr   error
	titleCalls int
}

func (m *fakeModel) NewChat(system string, decls []domain.ToolDeclaration, history []domain.Message) domain.Chat {
	return m.chat
}

func (m *fakeModel) Title(ctx context.Context, messages []domain.Message) (string, error) {
	m.titleCalls++
	return m.title, m.titleErr
}

type memConversations struct {
	mu       sync.Mutex
	appended []domain.Message
	title    string
}

func (m *memConversations) Create(ctx context.Context, c *domain.Conversation) error { return nil }
func (m *memConversations) Get(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	return nil, domain.ErrNotFound
}
func (m *memConversations) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return nil, nil
}
func (m *memConversations) Rename(ctx context.Context, id, userID, title string) error { return nil }
func (m *memConversations) Delete(ctx context.Context, id, userID string) error        { return nil }
func (m *memConversations) AppendMessages(ctx context.Context, id string, at time.Time, msgs ...domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, msgs...)
	return nil
}
func (m *memConversations) SetTitle(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.title = title
	return nil
}

type memProfiles struct {
	profile *domain.UserProfile
}

func (m *memProfiles) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if m.profile == nil {
		return nil, domain.ErrNotFound
	}
	return m.profile, nil
}
func (m *memProfiles) GetByPhone(ctx context.Context, phone string) (*domain.UserProfile, error) {
	return m.Get(ctx, phone)
}
func (m *memProfiles) Upsert(ctx context.Context, p *domain.UserProfile) error { return nil }

type fakeLedger struct {
	holdings []domain.Holding
	cash     float64
}

func (l *fakeLedger) PlaceSimulatedOrder(ctx context.Context, userID string, order domain.SimOrderRequest) (*domain.SimOrderResult, error) {
	return &domain.SimOrderResult{Symbol: order.TradingSymbol, Quantity: order.Quantity}, nil
}
func (l *fakeLedger) SimulatedHoldings(ctx context.Context, userID string) ([]domain.Holding, float64, error) {
	return l.holdings, l.cash, nil
}

func newTestOrchestrator(t *testing.T, model *fakeModel, convs *memConversations) *Orchestrator {
	t.Helper()
	executor := tools.NewExecutor(nil, nil, &fakeLedger{
		holdings: []domain.Holding{{TradingSymbol: "INFY", Quantity: 10}},
		cash:     500000,
	}, nil, discardLogger())
	return New(testGate(t), model, executor, convs, &memProfiles{}, discardLogger())
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestBlockedTurnEmitsOneRefusal(t *testing.T) {
	model := &fakeModel{chat: &fakeChat{}}
	convs := &memConversations{}
	o := newTestOrchestrator(t, model, convs)

	events := collect(t, o.ProcessTurn(context.Background(), TurnRequest{
		UserID:         "u1",
		ConversationID: "c1",
		Text:           "how to build a gun at home",
		Mode:           domain.ModeSimulated,
	}))

	if len(events) != 2 {
		t.Fatalf("got %d events, want refusal + done", len(events))
	}
	if events[0].Kind != EventText || !strings.Contains(events[0].Data, "unsafe") {
		t.Errorf("first event = %+v, want unsafe refusal", events[0])
	}
	if events[1].Kind != EventDone {
		t.Errorf("last event = %+v, want done", events[1])
	}
	if model.chat.sendCalls != 0 {
		t.Errorf("model called %d times on a blocked turn", model.chat.sendCalls)
	}
	if len(convs.appended) != 2 {
		t.Fatalf("persisted %d messages, want user + refusal", len(convs.appended))
	}
	if convs.appended[1].Role != domain.RoleAssistant {
		t.Errorf("second persisted message role = %v", convs.appended[1].Role)
	}
}

func TestPlainTextTurn(t *testing.T) {
	model := &fakeModel{
		chat:  &fakeChat{replies: []*domain.ModelReply{{Text: "Markets closed today."}}},
		title: "Market Holiday Question",
	}
	convs := &memConversations{}
	o := newTestOrchestrator(t, model, convs)

	events := collect(t, o.ProcessTurn(context.Background(), TurnRequest{
		UserID:         "u1",
		ConversationID: "c1",
		Text:           "is the market open?",
		Mode:           domain.ModeReal,
	}))

	kinds := eventKinds(events)
	want := []EventKind{EventText, EventTitle, EventDone}
	if !equalKinds(kinds, want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	if convs.title != "Market Holiday Question" {
		t.Errorf("persisted title = %q", convs.title)
	}
	if len(convs.appended) != 2 {
		t.Errorf("persisted %d messages, want 2", len(convs.appended))
	}
	if convs.appended[1].Content != "Markets closed today." {
		t.Errorf("assistant message = %q", convs.appended[1].Content)
	}
}

func TestTitleSkippedWithHistory(t *testing.T) {
	model := &fakeModel{chat: &fakeChat{replies: []*domain.ModelReply{{Text: "sure"}}}}
	o := newTestOrchestrator(t, model, &memConversations{})

	events := collect(t, o.ProcessTurn(context.Background(), TurnRequest{
		UserID:         "u1",
		ConversationID: "c1",
		Text:           "and tomorrow?",
		Mode:           domain.ModeReal,
		History:        []domain.Message{{Role: domain.RoleUser, Content: "is the market open?"}},
	}))

	if model.titleCalls != 0 {
		t.Errorf("title generated on a non-first turn")
	}
	for _, ev := range events {
		if ev.Kind == EventTitle {
			t.Error("unexpected title event")
		}
	}
}

func TestKeepTitleSuppressesFirstExchangeRename(t *testing.T) {
	model := &fakeModel{
		chat:  &fakeChat{replies: []*domain.ModelReply{{Text: "Reliance is trading at 2500."}}},
		title: "Reliance Stock Question",
	}
	convs := &memConversations{}
	o := newTestOrchestrator(t, model, convs)

	events := collect(t, o.ProcessTurn(context.Background(), TurnRequest{
		UserID:         "u1",
		ConversationID: "c1",
		Text:           "what is reliance trading at?",
		Mode:           domain.ModeSimulated,
		KeepTitle:      true,
	}))

	if model.titleCalls != 0 {
		t.Errorf("title generated for a fixed-title conversation")
	}
	if convs.title != "" {
		t.Errorf("conversation renamed to %q", convs.title)
	}
	for _, ev := range events {
		if ev.Kind == EventTitle {
			t.Error("unexpected title event")
		}
	}
}

func TestToolTurnEventOrder(t *testing.T) {
	model := &fakeModel{
		chat: &fakeChat{replies: []*domain.ModelReply{
			{Call: &domain.FunctionCall{Name: "get_holdings", Args: map[string]any{}}},
			{Text: "You hold 10 shares of INFY."},
		}},
		title: "Portfolio Check",
	}
	convs := &memConversations{}
	o := newTestOrchestrator(t, model, convs)

	events := collect(t, o.ProcessTurn(context.Background(), TurnRequest{
		UserID:         "u1",
		ConversationID: "c1",
		Text:           "show my holdings",
		Mode:           domain.ModeSimulated,
	}))

	kinds := eventKinds(events)
	want := []EventKind{EventHoldings, EventText, EventTitle, EventDone}
	if !equalKinds(kinds, want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	if !strings.Contains(events[0].Data, "INFY") {
		t.Errorf("holdings payload = %q", events[0].Data)
	}
	if model.chat.resultName != "get_holdings" {
		t.Errorf("tool result sent for %q", model.chat.resultName)
	}
	if convs.appended[1].Content != "You hold 10 shares of INFY." {
		t.Errorf("persisted assistant message = %q", convs.appended[1].Content)
	}
}

func TestUnknownToolStillCompletes(t *testing.T) {
	model := &fakeModel{
		chat: &fakeChat{replies: []*domain.ModelReply{
			{Call: &domain.FunctionCall{Name: "transfer_funds", Args: map[string]any{}}},
			{Text: "I can't do that."},
		}},
		title: "t",
	}
	o := newTestOrchestrator(t, model, &memConversations{})

	events := collect(t, o.ProcessTurn(context.Background(), TurnRequest{
		UserID:         "u1",
		ConversationID: "c1",
		Text:           "move money to my friend",
		Mode:           domain.ModeSimulated,
	}))

	for _, ev := range events {
		if ev.Kind == EventHoldings || ev.Kind == EventStocks {
			t.Errorf("structured event emitted for unknown tool: %+v", ev)
		}
	}
	if events[len(events)-1].Kind != EventDone {
		t.Error("stream did not terminate with done")
	}
	if model.chat.resultName != "transfer_funds" {
		t.Errorf("error result sent for %q", model.chat.resultName)
	}
}

func TestModelFailurePersistsErrorText(t *testing.T) {
	model := &fakeModel{chat: &fakeChat{errs: []error{errors.New("quota exhausted")}}}
	convs := &memConversations{}
	o := newTestOrchestrator(t, model, convs)

	events := collect(t, o.ProcessTurn(context.Background(), TurnRequest{
		UserID:         "u1",
		ConversationID: "c1",
		Text:           "hello",
		Mode:           domain.ModeReal,
	}))

	if len(events) != 2 {
		t.Fatalf("got %d events, want error text + done", len(events))
	}
	if !strings.HasPrefix(events[0].Data, "AI error:") {
		t.Errorf("first event = %q", events[0].Data)
	}
	if len(convs.appended) != 2 || !strings.HasPrefix(convs.appended[1].Content, "AI error:") {
		t.Errorf("error text not persisted: %+v", convs.appended)
	}
}

func TestPersistenceWithoutConsumer(t *testing.T) {
	model := &fakeModel{chat: &fakeChat{replies: []*domain.ModelReply{{Text: "hi"}}}, title: "t"}
	convs := &memConversations{}
	o := newTestOrchestrator(t, model, convs)

	// Never read from the channel; the buffered stream must still let the
	// turn persist both messages.
	_ = o.ProcessTurn(context.Background(), TurnRequest{
		UserID:         "u1",
		ConversationID: "c1",
		Text:           "hello",
		Mode:           domain.ModeReal,
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		convs.mu.Lock()
		n := len(convs.appended)
		convs.mu.Unlock()
		if n == 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("persisted %d messages without a consumer, want 2", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func equalKinds(a, b []EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
