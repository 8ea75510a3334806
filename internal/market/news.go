package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tradedesk/internal/domain"
)

const maxNewsItems = 5

type searchResponse struct {
	News []struct {
		Title               string `json:"title"`
		Publisher           string `json:"publisher"`
		Link                string `json:"link"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
	} `json:"news"`
}

// News returns recent headlines for a symbol from the search endpoint.
func (c *Client) News(ctx context.Context, symbol string) ([]domain.NewsItem, error) {
	sym := NormalizeSymbol(symbol)
	u := fmt.Sprintf("%s/v1/finance/search?q=%s&newsCount=%d", c.baseURL, url.QueryEscape(sym), maxNewsItems)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building news request: %w", err)
	}
	req.Header.Set("User-Agent", "tradedesk/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching news for %s: %w", sym, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading news response for %s: %w", sym, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned %d for %s", resp.StatusCode, sym)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding news response for %s: %w", sym, err)
	}

	items := make([]domain.NewsItem, 0, len(parsed.News))
	for _, n := range parsed.News {
		if len(items) == maxNewsItems {
			break
		}
		items = append(items, domain.NewsItem{
			Title:     n.Title,
			Publisher: n.Publisher,
			Link:      n.Link,
			Published: time.Unix(n.ProviderPublishTime, 0).UTC(),
		})
	}
	return items, nil
}
