package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"tradedesk/internal/domain"
)

// Client fetches market data from a Yahoo-compatible chart API and
// caches quotes for a short TTL to keep tool calls cheap.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *ristretto.Cache
	quoteTTL   time.Duration
	stocks     domain.StockDataRepository
	logger     *slog.Logger
}

func NewClient(baseURL string, quoteTTL time.Duration, stocks domain.StockDataRepository, logger *slog.Logger) (*Client, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating quote cache: %w", err)
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		cache:      cache,
		quoteTTL:   quoteTTL,
		stocks:     stocks,
		logger:     logger,
	}, nil
}

// NormalizeSymbol upper-cases a symbol and appends the NSE suffix
// when no exchange suffix is present.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".NS"
	}
	return s
}

func (c *Client) Quote(ctx context.Context, symbol string) (*domain.StockQuote, error) {
	sym := NormalizeSymbol(symbol)
	if cached, ok := c.cache.Get("quote:" + sym); ok {
		if q, ok := cached.(*domain.StockQuote); ok {
			return q, nil
		}
	}

	chart, err := c.fetchChart(ctx, sym, "5d", "1d")
	if err != nil {
		return nil, err
	}
	closes := chart.closes()
	if len(closes) == 0 {
		return nil, fmt.Errorf("no price data for %s", sym)
	}

	price := chart.Meta.RegularMarketPrice
	if price == 0 {
		price = closes[len(closes)-1]
	}
	prevClose := chart.Meta.ChartPreviousClose
	if prevClose == 0 && len(closes) > 1 {
		prevClose = closes[len(closes)-2]
	}

	quote := &domain.StockQuote{
		Symbol:        sym,
		Name:          chart.Meta.LongName,
		CurrentPrice:  price,
		PreviousClose: prevClose,
		DayHigh:       chart.Meta.RegularMarketDayHigh,
		DayLow:        chart.Meta.RegularMarketDayLow,
		WeekHigh52:    chart.Meta.FiftyTwoWeekHigh,
		WeekLow52:     chart.Meta.FiftyTwoWeekLow,
		Currency:      chart.Meta.Currency,
	}
	if quote.Name == "" {
		quote.Name = chart.Meta.ShortName
	}
	if open := chart.opens(); len(open) > 0 {
		quote.Open = open[len(open)-1]
	}

	// Fundamentals come from the local stock table when present.
	if c.stocks != nil {
		if row, err := c.stocks.Get(ctx, strings.TrimSuffix(sym, ".NS")); err == nil && row != nil {
			quote.MarketCap = row.MarketCap
			quote.PERatio = row.PERatio
			if quote.Name == "" {
				quote.Name = row.Name
			}
		}
	}

	c.cache.SetWithTTL("quote:"+sym, quote, 1, c.quoteTTL)
	return quote, nil
}

// Query answers structured stock-universe questions from the local
// stock table rather than the live API.
func (c *Client) Query(ctx context.Context, filter domain.StockQueryFilter) ([]domain.StockRow, error) {
	if c.stocks == nil {
		return nil, fmt.Errorf("stock database not configured")
	}
	return c.stocks.Query(ctx, filter)
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency             string  `json:"currency"`
		ExchangeName         string  `json:"exchangeName"`
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
		ChartPreviousClose   float64 `json:"chartPreviousClose"`
		RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
		RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
		FiftyTwoWeekHigh     float64 `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow      float64 `json:"fiftyTwoWeekLow"`
		LongName             string  `json:"longName"`
		ShortName            string  `json:"shortName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []float64 `json:"open"`
			High   []float64 `json:"high"`
			Low    []float64 `json:"low"`
			Close  []float64 `json:"close"`
			Volume []int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// closes returns the close series with null entries dropped.
func (r *chartResult) closes() []float64 {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	return dropNulls(r.Indicators.Quote[0].Close)
}

func (r *chartResult) opens() []float64 {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	return dropNulls(r.Indicators.Quote[0].Open)
}

func dropNulls(raw []float64) []float64 {
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v != 0 {
			out = append(out, v)
		}
	}
	return out
}

func (c *Client) fetchChart(ctx context.Context, symbol, rangeSpec, interval string) (*chartResult, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(rangeSpec), url.QueryEscape(interval))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building chart request: %w", err)
	}
	req.Header.Set("User-Agent", "tradedesk/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching chart for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading chart response for %s: %w", symbol, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart API returned %d for %s", resp.StatusCode, symbol)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding chart response for %s: %w", symbol, err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result for %s", symbol)
	}
	return &parsed.Chart.Result[0], nil
}
