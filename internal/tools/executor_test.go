package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"tradedesk/internal/domain"
)

type fakeBroker struct {
	placeCalls int
	orderID    string
	err        error
	holdings   []domain.Holding
}

func (f *fakeBroker) PlaceOrder(_ context.Context, _ domain.BrokerCredentials, _ domain.OrderRequest) (string, error) {
	f.placeCalls++
	return f.orderID, f.err
}

func (f *fakeBroker) Holdings(_ context.Context, _ domain.BrokerCredentials) ([]domain.Holding, error) {
	return f.holdings, f.err
}

type fakeMarket struct {
	price    float64
	quoteErr error
}

func (f *fakeMarket) Quote(_ context.Context, symbol string) (*domain.StockQuote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &domain.StockQuote{Symbol: strings.ToUpper(symbol), CurrentPrice: f.price, Currency: "INR"}, nil
}

func (f *fakeMarket) Movers(_ context.Context) (*domain.MarketMovers, error) {
	return &domain.MarketMovers{}, nil
}

func (f *fakeMarket) Screen(_ context.Context, _ string) ([]domain.ScreenedStock, error) {
	return nil, nil
}

func (f *fakeMarket) History(_ context.Context, _, _ string) ([]domain.PricePoint, error) {
	return nil, nil
}

func (f *fakeMarket) News(_ context.Context, _ string) ([]domain.NewsItem, error) {
	return nil, nil
}

func (f *fakeMarket) Query(_ context.Context, _ domain.StockQueryFilter) ([]domain.StockRow, error) {
	return nil, nil
}

type fakeLedger struct {
	placeCalls int
	result     *domain.SimOrderResult
	err        error
}

func (f *fakeLedger) PlaceSimulatedOrder(_ context.Context, _ string, _ domain.SimOrderRequest) (*domain.SimOrderResult, error) {
	f.placeCalls++
	return f.result, f.err
}

func (f *fakeLedger) SimulatedHoldings(_ context.Context, _ string) ([]domain.Holding, float64, error) {
	return nil, 0, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func realProfile(threshold *float64) *domain.UserProfile {
	return &domain.UserProfile{
		UserID:         "u1",
		TradeThreshold: threshold,
		BrokerAPIKey:   "key",
		BrokerToken:    "token",
	}
}

func f64(v float64) *float64 { return &v }

func TestThresholdVetoNeverReachesBroker(t *testing.T) {
	broker := &fakeBroker{orderID: "ord-1"}
	market := &fakeMarket{price: 500}
	enforcer := NewThresholdEnforcer(market, false, testLogger())
	exec := NewExecutor(broker, market, &fakeLedger{}, enforcer, testLogger())

	call := domain.ToolCall{
		Tool: domain.ToolPlaceOrder,
		Args: map[string]any{
			"tradingsymbol":    "TCS",
			"exchange":         "NSE",
			"transaction_type": "BUY",
			"quantity":         100, // 100 * 500 = 50000 > 10000 ceiling
		},
	}
	Normalize(&call)

	result := exec.Execute(context.Background(), ExecContext{
		UserID:  "u1",
		Mode:    domain.ModeReal,
		Profile: realProfile(f64(10000)),
	}, call)

	if result.Success {
		t.Fatal("over-threshold order succeeded, want veto")
	}
	if broker.placeCalls != 0 {
		t.Errorf("broker.PlaceOrder called %d times, want 0", broker.placeCalls)
	}
	if !strings.Contains(result.Message, "threshold") {
		t.Errorf("veto message = %q, want threshold mention", result.Message)
	}
}

func TestThresholdUsesExplicitPrice(t *testing.T) {
	broker := &fakeBroker{orderID: "ord-2"}
	// Quote would say 500, but an explicit price of 50 keeps the order
	// under the ceiling; the quote must not be consulted.
	market := &fakeMarket{quoteErr: errors.New("should not be called")}
	enforcer := NewThresholdEnforcer(market, false, testLogger())
	exec := NewExecutor(broker, market, &fakeLedger{}, enforcer, testLogger())

	call := domain.ToolCall{
		Tool: domain.ToolPlaceOrder,
		Args: map[string]any{
			"tradingsymbol":    "TCS",
			"exchange":         "NSE",
			"transaction_type": "BUY",
			"quantity":         10,
			"price":            50.0,
		},
	}
	result := exec.Execute(context.Background(), ExecContext{
		UserID:  "u1",
		Mode:    domain.ModeReal,
		Profile: realProfile(f64(10000)),
	}, call)

	if !result.Success {
		t.Fatalf("order rejected: %s", result.Message)
	}
	if broker.placeCalls != 1 {
		t.Errorf("broker.PlaceOrder called %d times, want 1", broker.placeCalls)
	}
}

func TestThresholdFailOpenVersusFailClosed(t *testing.T) {
	tests := []struct {
		name        string
		failClosed  bool
		wantSuccess bool
	}{
		{"fail-open waives check", false, true},
		{"fail-closed rejects", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker := &fakeBroker{orderID: "ord-3"}
			market := &fakeMarket{quoteErr: errors.New("feed down")}
			enforcer := NewThresholdEnforcer(market, tt.failClosed, testLogger())
			exec := NewExecutor(broker, market, &fakeLedger{}, enforcer, testLogger())

			call := domain.ToolCall{
				Tool: domain.ToolPlaceOrder,
				Args: map[string]any{
					"tradingsymbol":    "TCS",
					"exchange":         "NSE",
					"transaction_type": "BUY",
					"quantity":         100,
				},
			}
			result := exec.Execute(context.Background(), ExecContext{
				UserID:  "u1",
				Mode:    domain.ModeReal,
				Profile: realProfile(f64(10000)),
			}, call)

			if result.Success != tt.wantSuccess {
				t.Errorf("success = %v, want %v (message %q)", result.Success, tt.wantSuccess, result.Message)
			}
			wantCalls := 0
			if tt.wantSuccess {
				wantCalls = 1
			}
			if broker.placeCalls != wantCalls {
				t.Errorf("broker calls = %d, want %d", broker.placeCalls, wantCalls)
			}
		})
	}
}

func TestMalformedQuantityFailsSoftAtExecution(t *testing.T) {
	broker := &fakeBroker{}
	ledger := &fakeLedger{}
	exec := NewExecutor(broker, &fakeMarket{price: 100}, ledger,
		NewThresholdEnforcer(&fakeMarket{price: 100}, false, testLogger()), testLogger())

	call := domain.ToolCall{
		Tool: domain.ToolPlaceOrder,
		Args: map[string]any{
			"tradingsymbol":    "TCS",
			"transaction_type": "BUY",
			"quantity":         "abc",
		},
	}
	Normalize(&call)

	for _, mode := range []domain.Mode{domain.ModeReal, domain.ModeSimulated} {
		result := exec.Execute(context.Background(), ExecContext{
			UserID:  "u1",
			Mode:    mode,
			Profile: realProfile(nil),
		}, call)
		if result.Success {
			t.Errorf("mode %s: malformed quantity succeeded", mode)
		}
		if !strings.Contains(result.Message, "quantity") {
			t.Errorf("mode %s: message %q lacks quantity diagnosis", mode, result.Message)
		}
	}
	if broker.placeCalls != 0 || ledger.placeCalls != 0 {
		t.Error("collaborators were called for malformed quantity")
	}
}

func TestExecutorWrapsCollaboratorFailures(t *testing.T) {
	broker := &fakeBroker{err: errors.New("exchange closed")}
	exec := NewExecutor(broker, &fakeMarket{price: 100}, &fakeLedger{},
		NewThresholdEnforcer(&fakeMarket{price: 100}, false, testLogger()), testLogger())

	call := domain.ToolCall{
		Tool: domain.ToolPlaceOrder,
		Args: map[string]any{
			"tradingsymbol":    "INFY",
			"exchange":         "NSE",
			"transaction_type": "SELL",
			"quantity":         5,
		},
	}
	result := exec.Execute(context.Background(), ExecContext{
		UserID:  "u1",
		Mode:    domain.ModeReal,
		Profile: realProfile(nil),
	}, call)

	if result.Success {
		t.Fatal("broker failure reported as success")
	}
	if !strings.Contains(result.Message, "exchange closed") {
		t.Errorf("message = %q, want wrapped collaborator error", result.Message)
	}
}

func TestMissingCredentialsRejected(t *testing.T) {
	exec := NewExecutor(&fakeBroker{}, &fakeMarket{price: 100}, &fakeLedger{},
		NewThresholdEnforcer(&fakeMarket{price: 100}, false, testLogger()), testLogger())

	result := exec.Execute(context.Background(), ExecContext{
		UserID:  "u1",
		Mode:    domain.ModeReal,
		Profile: &domain.UserProfile{UserID: "u1"},
	}, domain.ToolCall{Tool: domain.ToolGetHoldings})

	if result.Success {
		t.Fatal("holdings without credentials succeeded")
	}
	if !strings.Contains(result.Message, "credentials") {
		t.Errorf("message = %q, want credentials mention", result.Message)
	}
}
