package market

import (
	"context"
	"sort"
	"sync"

	"tradedesk/internal/domain"
)

const (
	moversTopN       = 5
	fetchConcurrency = 8
)

// Movers scans the Nifty 50 universe and ranks day-over-day moves.
// Symbols that fail to fetch are skipped rather than failing the scan.
func (c *Client) Movers(ctx context.Context) (*domain.MarketMovers, error) {
	series := c.fetchCloses(ctx, "2d", "1d")
	entries := rankMovers(series)
	return splitMovers(entries, moversTopN), nil
}

// fetchCloses pulls close series for the whole universe with bounded
// concurrency. Failed symbols are logged and omitted.
func (c *Client) fetchCloses(ctx context.Context, rangeSpec, interval string) map[string][]float64 {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		sem    = make(chan struct{}, fetchConcurrency)
		series = make(map[string][]float64, len(nifty50))
	)
	for _, symbol := range nifty50 {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			chart, err := c.fetchChart(ctx, NormalizeSymbol(symbol), rangeSpec, interval)
			if err != nil {
				c.logger.Warn("skipping symbol in universe scan", "symbol", symbol, "error", err)
				return
			}
			closes := chart.closes()
			if len(closes) == 0 {
				return
			}
			mu.Lock()
			series[symbol] = closes
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return series
}

// rankMovers computes percent change from the last two closes of each
// series, sorted by change descending. Series shorter than two points
// are dropped.
func rankMovers(series map[string][]float64) []domain.MoverEntry {
	entries := make([]domain.MoverEntry, 0, len(series))
	for symbol, closes := range series {
		if len(closes) < 2 {
			continue
		}
		prev, last := closes[len(closes)-2], closes[len(closes)-1]
		if prev == 0 {
			continue
		}
		entries = append(entries, domain.MoverEntry{
			Symbol:    symbol,
			ChangePct: (last - prev) / prev * 100,
			Price:     last,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ChangePct > entries[j].ChangePct })
	return entries
}

func splitMovers(entries []domain.MoverEntry, n int) *domain.MarketMovers {
	movers := &domain.MarketMovers{
		TopGainers: []domain.MoverEntry{},
		TopLosers:  []domain.MoverEntry{},
	}
	for i := 0; i < len(entries) && i < n; i++ {
		movers.TopGainers = append(movers.TopGainers, entries[i])
	}
	for i := len(entries) - 1; i >= 0 && len(movers.TopLosers) < n; i-- {
		movers.TopLosers = append(movers.TopLosers, entries[i])
	}
	return movers
}
