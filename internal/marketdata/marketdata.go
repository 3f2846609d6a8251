// Package marketdata proxies live index quotes from the NSE public API.
//
// The upstream is slow, rate-limited and frequently down, so the client is
// built to degrade: any fetch or parse failure yields a snapshot with
// marketStatus "Unavailable" and nil indices instead of an error. Responses
// are cached in Redis for a short TTL when a cache is configured.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultURL is the NSE all-indices endpoint.
const DefaultURL = "https://www.nseindia.com/api/allIndices"

const (
	fetchTimeout = 5 * time.Second
	cacheKey     = "marketdata:snapshot"
	cacheTTL     = 60 * time.Second

	// The upstream rejects requests without a browser-looking User-Agent.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// StatusUnavailable is the degraded marketStatus value.
const StatusUnavailable = "Unavailable"

// IndexQuote is one tracked index in API shape.
type IndexQuote struct {
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PrevClose     float64 `json:"prev_close"`
}

// Snapshot is the proxy response: overall market status plus the three
// tracked indices. An index missing upstream is nil.
type Snapshot struct {
	MarketStatus string      `json:"market_status"`
	Nifty50      *IndexQuote `json:"nifty50"`
	Nifty100     *IndexQuote `json:"nifty100"`
	NiftyBank    *IndexQuote `json:"nifty_bank"`
	FetchedAt    time.Time   `json:"fetched_at"`
}

// upstream mirrors the subset of the NSE payload we read.
type upstream struct {
	MarketStatus string `json:"marketStatus"`
	Data         []struct {
		Index         string  `json:"index"`
		Last          float64 `json:"last"`
		Variation     float64 `json:"variation"`
		PercentChange float64 `json:"percentChange"`
		Open          float64 `json:"open"`
		High          float64 `json:"high"`
		Low           float64 `json:"low"`
		PreviousClose float64 `json:"previousClose"`
	} `json:"data"`
}

// Client fetches and caches market snapshots. cache may be nil, in which
// case every call hits the upstream.
type Client struct {
	httpClient *http.Client
	url        string
	cache      *redis.Client
	logger     *slog.Logger
}

// NewClient creates a market data client. url falls back to DefaultURL when
// empty; cache is optional.
func NewClient(url string, cache *redis.Client, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: fetchTimeout},
		url:        url,
		cache:      cache,
		logger:     logger,
	}
}

// Snapshot returns the current market snapshot. It never fails: upstream or
// cache trouble produces the degraded "Unavailable" snapshot.
func (c *Client) Snapshot(ctx context.Context) *Snapshot {
	if cached := c.fromCache(ctx); cached != nil {
		return cached
	}

	snap, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("market data fetch failed", slog.String("error", err.Error()))
		return &Snapshot{MarketStatus: StatusUnavailable, FetchedAt: time.Now().UTC()}
	}

	c.toCache(ctx, snap)
	return snap
}

func (c *Client) fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching indices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}

	var payload upstream
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	snap := &Snapshot{
		MarketStatus: payload.MarketStatus,
		FetchedAt:    time.Now().UTC(),
	}
	if snap.MarketStatus == "" {
		snap.MarketStatus = "Unknown"
	}

	for _, entry := range payload.Data {
		quote := &IndexQuote{
			Name:          entry.Index,
			Value:         entry.Last,
			Change:        entry.Variation,
			PercentChange: entry.PercentChange,
			Open:          entry.Open,
			High:          entry.High,
			Low:           entry.Low,
			PrevClose:     entry.PreviousClose,
		}
		switch entry.Index {
		case "NIFTY 50":
			snap.Nifty50 = quote
		case "NIFTY 100":
			snap.Nifty100 = quote
		case "NIFTY BANK":
			snap.NiftyBank = quote
		}
	}

	return snap, nil
}

func (c *Client) fromCache(ctx context.Context) *Snapshot {
	if c.cache == nil {
		return nil
	}
	raw, err := c.cache.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("market data cache read failed", slog.String("error", err.Error()))
		}
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil
	}
	return &snap
}

func (c *Client) toCache(ctx context.Context, snap *Snapshot) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey, raw, cacheTTL).Err(); err != nil {
		c.logger.Warn("market data cache write failed", slog.String("error", err.Error()))
	}
}
