package domain

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one persisted entry in a conversation's transcript.
// Messages are append-only: never mutated or deleted individually.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the durable record a transcript belongs to.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Mode      Mode      `json:"mode"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProfile carries the per-user settings the turn pipeline needs:
// a bio folded into the system instruction, an optional per-trade ceiling,
// and brokerage credentials for real-mode tools.
type UserProfile struct {
	UserID         string   `json:"user_id"`
	Bio            string   `json:"bio"`
	TradeThreshold *float64 `json:"trade_threshold"` // nil means no ceiling
	PhoneNumber    string   `json:"phone_number"`    // links inbound webhook messages
	BrokerAPIKey   string   `json:"-"`
	BrokerToken    string   `json:"-"`
}

// Holding is one position in a portfolio, real or simulated.
type Holding struct {
	TradingSymbol string  `json:"tradingsymbol"`
	Quantity      int     `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	LastPrice     float64 `json:"last_price"`
	PnL           float64 `json:"pnl"`
	PnLPercentage float64 `json:"pnl_percentage"`
	Value         float64 `json:"value"`
}

// StockQuote is the live (delayed) snapshot of a single symbol.
type StockQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close"`
	Open          float64 `json:"open"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	MarketCap     int64   `json:"market_cap"`
	PERatio       float64 `json:"pe_ratio"`
	WeekHigh52    float64 `json:"52_week_high"`
	WeekLow52     float64 `json:"52_week_low"`
	Currency      string  `json:"currency"`
}

// MoverEntry is one row in the gainers/losers tables.
type MoverEntry struct {
	Symbol    string  `json:"symbol"`
	ChangePct float64 `json:"change_pct"`
	Price     float64 `json:"price"`
}

// MarketMovers holds the day's top gainers and losers.
type MarketMovers struct {
	TopGainers []MoverEntry `json:"top_gainers"`
	TopLosers  []MoverEntry `json:"top_losers"`
}

// ScreenedStock is one match from the strategy screener.
type ScreenedStock struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Signal string  `json:"signal"`
}

// PricePoint is a single sample in a historical price series.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// NewsItem is one headline for a company.
type NewsItem struct {
	Title     string    `json:"title"`
	Publisher string    `json:"publisher"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
}

// StockQueryFilter selects rows from the local stock database.
// Zero values mean "no constraint".
type StockQueryFilter struct {
	Sector       string  `json:"sector"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	MinPE        float64 `json:"min_pe"`
	MaxPE        float64 `json:"max_pe"`
	MinMarketCap int64   `json:"min_market_cap"`
	SortBy       string  `json:"sort_by"` // market_cap, pe_ratio, current_price
}

// StockRow is one row from the local stock database.
type StockRow struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Sector       string  `json:"sector"`
	CurrentPrice float64 `json:"current_price"`
	PERatio      float64 `json:"pe_ratio"`
	MarketCap    int64   `json:"market_cap"`
}

// SimHolding is a position inside a virtual portfolio document.
type SimHolding struct {
	Quantity     int     `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
}

// SimPortfolio is the per-user cash/holdings document backing simulated mode.
type SimPortfolio struct {
	UserID   string                `json:"user_id"`
	Cash     float64               `json:"cash"`
	Holdings map[string]SimHolding `json:"holdings"`
}

// LeaderboardSnapshot summarizes a simulated portfolio for ranking.
type LeaderboardSnapshot struct {
	UserID               string    `json:"user_id"`
	TotalValue           float64   `json:"total_value"`
	DiversificationScore int       `json:"diversification_score"`
	UpdatedAt            time.Time `json:"updated_at"`
}
