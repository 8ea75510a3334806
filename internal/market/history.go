package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradedesk/internal/domain"
)

// periodSpecs maps the user-facing period names onto chart API range
// and interval parameters.
var periodSpecs = map[string]struct{ rangeSpec, interval string }{
	"1d":  {"1d", "5m"},
	"5d":  {"5d", "30m"},
	"1mo": {"1mo", "1d"},
	"3mo": {"3mo", "1d"},
	"6mo": {"6mo", "1d"},
	"1y":  {"1y", "1wk"},
	"5y":  {"5y", "1mo"},
}

// History returns the price series for a symbol over a named period.
func (c *Client) History(ctx context.Context, symbol, period string) ([]domain.PricePoint, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = "1mo"
	}
	spec, ok := periodSpecs[period]
	if !ok {
		return nil, fmt.Errorf("unsupported history period %q", period)
	}

	chart, err := c.fetchChart(ctx, NormalizeSymbol(symbol), spec.rangeSpec, spec.interval)
	if err != nil {
		return nil, err
	}
	if len(chart.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no price data for %s", symbol)
	}

	closes := chart.Indicators.Quote[0].Close
	points := make([]domain.PricePoint, 0, len(chart.Timestamp))
	for i, ts := range chart.Timestamp {
		if i >= len(closes) || closes[i] == 0 {
			continue
		}
		points = append(points, domain.PricePoint{
			Time:  time.Unix(ts, 0).UTC(),
			Value: closes[i],
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no price data for %s", symbol)
	}
	return points, nil
}
