package market

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tradedesk/internal/domain"
)

const smaWindow = 50

// Screen filters the Nifty 50 universe by a named strategy. Supported
// strategies compare the last close against the 50-day simple moving
// average.
func (c *Client) Screen(ctx context.Context, strategy string) ([]domain.ScreenedStock, error) {
	strategy = strings.ToLower(strings.TrimSpace(strategy))
	var wantAbove bool
	switch strategy {
	case "bullish_sma", "bullish":
		wantAbove = true
	case "bearish_sma", "bearish":
		wantAbove = false
	default:
		return nil, fmt.Errorf("unknown screening strategy %q", strategy)
	}

	series := c.fetchCloses(ctx, "3mo", "1d")
	return screenBySMA(series, smaWindow, wantAbove), nil
}

// screenBySMA returns symbols whose last close sits on the requested
// side of the simple moving average. Series shorter than the window
// are skipped.
func screenBySMA(series map[string][]float64, window int, wantAbove bool) []domain.ScreenedStock {
	matches := []domain.ScreenedStock{}
	for symbol, closes := range series {
		if len(closes) < window {
			continue
		}
		avg := sma(closes, window)
		last := closes[len(closes)-1]
		above := last > avg
		if above != wantAbove {
			continue
		}
		signal := fmt.Sprintf("Price above %d-day SMA (%.2f)", window, avg)
		if !above {
			signal = fmt.Sprintf("Price below %d-day SMA (%.2f)", window, avg)
		}
		matches = append(matches, domain.ScreenedStock{
			Symbol: symbol,
			Price:  last,
			Signal: signal,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Symbol < matches[j].Symbol })
	return matches
}

// sma averages the trailing window of a close series.
func sma(closes []float64, window int) float64 {
	sum := 0.0
	for _, v := range closes[len(closes)-window:] {
		sum += v
	}
	return sum / float64(window)
}
