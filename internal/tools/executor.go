package tools

import (
	"context"
	"fmt"
	"log/slog"

	"tradedesk/internal/domain"
)

// ExecContext carries the per-turn identity the executor needs: whose
// portfolio to touch, which mode to dispatch into, and the profile holding
// brokerage credentials and the trade ceiling.
type ExecContext struct {
	UserID  string
	Mode    domain.Mode
	Profile *domain.UserProfile
}

// Executor maps a (mode, tool, normalized args) triple onto one
// collaborator call. All collaborator failures are wrapped into a failed
// ToolResult; nothing escapes this boundary.
type Executor struct {
	broker    domain.Brokerage
	market    domain.MarketData
	ledger    domain.Ledger
	threshold *ThresholdEnforcer
	logger    *slog.Logger
}

// NewExecutor wires the executor to its collaborators.
func NewExecutor(
	broker domain.Brokerage,
	market domain.MarketData,
	ledger domain.Ledger,
	threshold *ThresholdEnforcer,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		broker:    broker,
		market:    market,
		ledger:    ledger,
		threshold: threshold,
		logger:    logger,
	}
}

// Execute dispatches one normalized tool call. The switch over the closed
// tool set is exhaustive; unknown names are rejected by domain.ParseTool
// before a ToolCall can exist.
func (e *Executor) Execute(ctx context.Context, ec ExecContext, call domain.ToolCall) domain.ToolResult {
	switch call.Tool {
	case domain.ToolPlaceOrder:
		if ec.Mode == domain.ModeSimulated {
			return e.placeSimulatedOrder(ctx, ec, call)
		}
		return e.placeOrder(ctx, ec, call)
	case domain.ToolGetHoldings:
		if ec.Mode == domain.ModeSimulated {
			return e.simulatedHoldings(ctx, ec)
		}
		return e.holdings(ctx, ec)
	case domain.ToolGetStockInfo:
		return e.stockInfo(ctx, call)
	case domain.ToolGetMarketMovers:
		return e.marketMovers(ctx)
	case domain.ToolScreenStocks:
		return e.screenStocks(ctx, call)
	case domain.ToolGetStockHistory:
		return e.stockHistory(ctx, call)
	case domain.ToolGetCompanyNews:
		return e.companyNews(ctx, call)
	case domain.ToolQueryMarketData:
		return e.queryMarketData(ctx, call)
	default:
		return domain.Errorf("unknown tool: %s", call.Tool)
	}
}

func (e *Executor) placeOrder(ctx context.Context, ec ExecContext, call domain.ToolCall) domain.ToolResult {
	qty, ok := IntArg(call.Args, "quantity")
	if !ok || qty <= 0 {
		return domain.Errorf("invalid quantity %v: must be a positive whole number", call.Args["quantity"])
	}

	// Per-trade ceiling applies to real order placement only, and only
	// when the user configured one.
	if ec.Profile != nil && ec.Profile.TradeThreshold != nil {
		if veto := e.threshold.Check(ctx, &call, *ec.Profile.TradeThreshold); veto != nil {
			return *veto
		}
	}

	if ec.Profile == nil || ec.Profile.BrokerAPIKey == "" || ec.Profile.BrokerToken == "" {
		return domain.Errorf("Failed to place order: %v", domain.ErrNoCredentials)
	}

	order := domain.OrderRequest{
		TradingSymbol:   StringArg(call.Args, "tradingsymbol"),
		Exchange:        StringArg(call.Args, "exchange"),
		TransactionType: StringArg(call.Args, "transaction_type"),
		Quantity:        qty,
		OrderType:       orDefault(StringArg(call.Args, "order_type"), "MARKET"),
		Product:         orDefault(StringArg(call.Args, "product"), "CNC"),
	}

	creds := domain.BrokerCredentials{
		APIKey:      ec.Profile.BrokerAPIKey,
		AccessToken: ec.Profile.BrokerToken,
	}
	orderID, err := e.broker.PlaceOrder(ctx, creds, order)
	if err != nil {
		return domain.Errorf("Failed to place order: %v", err)
	}

	return domain.ToolResult{
		Success: true,
		Message: "Order placed successfully",
		Payload: map[string]any{
			"order_id": orderID,
			"details": map[string]any{
				"tradingsymbol":    order.TradingSymbol,
				"exchange":         order.Exchange,
				"transaction_type": order.TransactionType,
				"quantity":         order.Quantity,
				"order_type":       order.OrderType,
				"product":          order.Product,
			},
		},
	}
}

func (e *Executor) placeSimulatedOrder(ctx context.Context, ec ExecContext, call domain.ToolCall) domain.ToolResult {
	qty, ok := IntArg(call.Args, "quantity")
	if !ok || qty <= 0 {
		return domain.Errorf("invalid quantity %v: must be a positive whole number", call.Args["quantity"])
	}

	order := domain.SimOrderRequest{
		TradingSymbol:   StringArg(call.Args, "tradingsymbol"),
		TransactionType: StringArg(call.Args, "transaction_type"),
		Quantity:        qty,
		Price:           FloatArg(call.Args, "price"),
		Exchange:        orDefault(StringArg(call.Args, "exchange"), "NSE"),
		OrderType:       orDefault(StringArg(call.Args, "order_type"), "MARKET"),
	}

	fill, err := e.ledger.PlaceSimulatedOrder(ctx, ec.UserID, order)
	if err != nil {
		return domain.Errorf("Simulation error: %v", err)
	}

	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Simulated %s order placed for %d %s at %.2f",
			order.TransactionType, fill.Quantity, fill.Symbol, fill.Price),
		Payload: map[string]any{"details": fill},
	}
}

func (e *Executor) holdings(ctx context.Context, ec ExecContext) domain.ToolResult {
	if ec.Profile == nil || ec.Profile.BrokerAPIKey == "" || ec.Profile.BrokerToken == "" {
		return domain.Errorf("Failed to get holdings: %v", domain.ErrNoCredentials)
	}
	creds := domain.BrokerCredentials{
		APIKey:      ec.Profile.BrokerAPIKey,
		AccessToken: ec.Profile.BrokerToken,
	}
	holdings, err := e.broker.Holdings(ctx, creds)
	if err != nil {
		return domain.Errorf("Failed to get holdings: %v", err)
	}
	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Retrieved %d holdings", len(holdings)),
		Payload: map[string]any{"holdings": holdings},
	}
}

func (e *Executor) simulatedHoldings(ctx context.Context, ec ExecContext) domain.ToolResult {
	holdings, cash, err := e.ledger.SimulatedHoldings(ctx, ec.UserID)
	if err != nil {
		return domain.Errorf("Error fetching simulated holdings: %v", err)
	}
	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Retrieved %d simulated holdings", len(holdings)),
		Payload: map[string]any{"holdings": holdings, "cash": cash},
	}
}

func (e *Executor) stockInfo(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	symbol := StringArg(call.Args, "symbol")
	quote, err := e.market.Quote(ctx, symbol)
	if err != nil {
		return domain.Errorf("Failed to fetch info for %s: %v", symbol, err)
	}
	return domain.ToolResult{
		Success: true,
		Payload: map[string]any{
			"symbol":         quote.Symbol,
			"name":           quote.Name,
			"current_price":  quote.CurrentPrice,
			"previous_close": quote.PreviousClose,
			"open":           quote.Open,
			"day_high":       quote.DayHigh,
			"day_low":        quote.DayLow,
			"market_cap":     quote.MarketCap,
			"pe_ratio":       quote.PERatio,
			"52_week_high":   quote.WeekHigh52,
			"52_week_low":    quote.WeekLow52,
			"currency":       quote.Currency,
		},
	}
}

func (e *Executor) marketMovers(ctx context.Context) domain.ToolResult {
	movers, err := e.market.Movers(ctx)
	if err != nil {
		return domain.Errorf("Failed to fetch market movers: %v", err)
	}
	return domain.ToolResult{
		Success: true,
		Payload: map[string]any{
			"top_gainers": movers.TopGainers,
			"top_losers":  movers.TopLosers,
		},
	}
}

func (e *Executor) screenStocks(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	strategy := StringArg(call.Args, "strategy")
	stocks, err := e.market.Screen(ctx, strategy)
	if err != nil {
		return domain.Errorf("Failed to screen stocks: %v", err)
	}
	return domain.ToolResult{
		Success: true,
		Payload: map[string]any{
			"strategy": strategy,
			"count":    len(stocks),
			"stocks":   stocks,
		},
	}
}

func (e *Executor) stockHistory(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	symbol := StringArg(call.Args, "symbol")
	period := orDefault(StringArg(call.Args, "period"), "1mo")
	points, err := e.market.History(ctx, symbol, period)
	if err != nil {
		return domain.Errorf("Failed to fetch history for %s: %v", symbol, err)
	}
	return domain.ToolResult{
		Success: true,
		Payload: map[string]any{"symbol": symbol, "period": period, "data": points},
	}
}

func (e *Executor) companyNews(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	symbol := StringArg(call.Args, "symbol")
	items, err := e.market.News(ctx, symbol)
	if err != nil {
		return domain.Errorf("Failed to fetch news for %s: %v", symbol, err)
	}
	return domain.ToolResult{
		Success: true,
		Payload: map[string]any{"symbol": symbol, "news": items},
	}
}

func (e *Executor) queryMarketData(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	filter := domain.StockQueryFilter{
		Sector:       StringArg(call.Args, "sector"),
		MinPrice:     FloatArg(call.Args, "min_price"),
		MaxPrice:     FloatArg(call.Args, "max_price"),
		MinPE:        FloatArg(call.Args, "min_pe"),
		MaxPE:        FloatArg(call.Args, "max_pe"),
		MinMarketCap: int64(FloatArg(call.Args, "min_market_cap")),
		SortBy:       StringArg(call.Args, "sort_by"),
	}
	rows, err := e.market.Query(ctx, filter)
	if err != nil {
		return domain.Errorf("Failed to query market data: %v", err)
	}
	return domain.ToolResult{
		Success: true,
		Payload: map[string]any{"count": len(rows), "stocks": rows},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
