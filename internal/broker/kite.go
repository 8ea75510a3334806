package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradedesk/internal/domain"
)

// Client talks to a Kite-compatible brokerage REST API. Credentials are
// per-user and passed on every call; the client itself holds no state
// beyond the endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

type apiEnvelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
}

// PlaceOrder submits a regular-variety order and returns the broker's
// order ID.
func (c *Client) PlaceOrder(ctx context.Context, creds domain.BrokerCredentials, order domain.OrderRequest) (string, error) {
	form := url.Values{}
	form.Set("tradingsymbol", order.TradingSymbol)
	form.Set("exchange", order.Exchange)
	form.Set("transaction_type", order.TransactionType)
	form.Set("quantity", strconv.Itoa(order.Quantity))
	form.Set("order_type", order.OrderType)
	form.Set("product", order.Product)

	data, err := c.do(ctx, creds, http.MethodPost, "/orders/regular", form)
	if err != nil {
		return "", err
	}

	var result struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decoding order response: %w", err)
	}
	if result.OrderID == "" {
		return "", fmt.Errorf("brokerage returned no order ID")
	}
	c.logger.Info("order placed", "order_id", result.OrderID, "symbol", order.TradingSymbol)
	return result.OrderID, nil
}

// Holdings fetches the user's long-term holdings.
func (c *Client) Holdings(ctx context.Context, creds domain.BrokerCredentials) ([]domain.Holding, error) {
	data, err := c.do(ctx, creds, http.MethodGet, "/portfolio/holdings", nil)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		TradingSymbol string  `json:"tradingsymbol"`
		Quantity      int     `json:"quantity"`
		AveragePrice  float64 `json:"average_price"`
		LastPrice     float64 `json:"last_price"`
		PnL           float64 `json:"pnl"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding holdings response: %w", err)
	}

	holdings := make([]domain.Holding, 0, len(rows))
	for _, r := range rows {
		h := domain.Holding{
			TradingSymbol: r.TradingSymbol,
			Quantity:      r.Quantity,
			AveragePrice:  r.AveragePrice,
			LastPrice:     r.LastPrice,
			PnL:           r.PnL,
			Value:         float64(r.Quantity) * r.LastPrice,
		}
		if invested := float64(r.Quantity) * r.AveragePrice; invested > 0 {
			h.PnLPercentage = r.PnL / invested * 100
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}

func (c *Client) do(ctx context.Context, creds domain.BrokerCredentials, method, path string, form url.Values) (json.RawMessage, error) {
	if creds.APIKey == "" || creds.AccessToken == "" {
		return nil, domain.ErrNoCredentials
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building brokerage request: %w", err)
	}
	req.Header.Set("X-Kite-Version", "3")
	req.Header.Set("Authorization", "token "+creds.APIKey+":"+creds.AccessToken)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling brokerage %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading brokerage response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("brokerage returned %d with unparseable body", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &domain.UnauthorizedError{Message: "brokerage rejected credentials: " + envelope.Message}
	}
	if resp.StatusCode != http.StatusOK || envelope.Status != "success" {
		msg := envelope.Message
		if msg == "" {
			msg = fmt.Sprintf("brokerage returned %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("brokerage error: %s", msg)
	}
	return envelope.Data, nil
}
