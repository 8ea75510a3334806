package domain

import "context"

// OrderRequest is a normalized real-mode order.
type OrderRequest struct {
	TradingSymbol   string
	Exchange        string // NSE, BSE
	TransactionType string // BUY, SELL
	Quantity        int
	OrderType       string // MARKET, LIMIT
	Product         string // CNC, MIS, NRML
}

// BrokerCredentials authenticate one user against the brokerage.
type BrokerCredentials struct {
	APIKey      string
	AccessToken string
}

// Brokerage is the real-money collaborator. Implementations return plain
// errors; the tool executor is responsible for containing them.
type Brokerage interface {
	PlaceOrder(ctx context.Context, creds BrokerCredentials, order OrderRequest) (orderID string, err error)
	Holdings(ctx context.Context, creds BrokerCredentials) ([]Holding, error)
}

// MarketData is the quote/screening collaborator.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (*StockQuote, error)
	Movers(ctx context.Context) (*MarketMovers, error)
	Screen(ctx context.Context, strategy string) ([]ScreenedStock, error)
	History(ctx context.Context, symbol, period string) ([]PricePoint, error)
	News(ctx context.Context, symbol string) ([]NewsItem, error)
	Query(ctx context.Context, filter StockQueryFilter) ([]StockRow, error)
}

// SimOrderRequest is a normalized simulated-mode order. Price is the limit
// price; zero means fill at the live quote.
type SimOrderRequest struct {
	TradingSymbol   string
	TransactionType string
	Quantity        int
	Price           float64
	Exchange        string
	OrderType       string
}

// SimOrderResult reports a simulated fill.
type SimOrderResult struct {
	Symbol        string  `json:"symbol"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	TotalValue    float64 `json:"total_value"`
	RemainingCash float64 `json:"remaining_cash"`
}

// Ledger is the virtual-ledger collaborator backing simulated mode.
// Same shape as the brokerage, scoped to a per-user cash/holdings document.
type Ledger interface {
	PlaceSimulatedOrder(ctx context.Context, userID string, order SimOrderRequest) (*SimOrderResult, error)
	SimulatedHoldings(ctx context.Context, userID string) ([]Holding, float64, error)
}
