// Package listings fetches foreclosure auction listings from the
// marketplace search API and normalizes them into listing records.
package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nsyte-agents/auction-sync/internal/model"
)

// Source produces listing records for the reconciler.
type Source interface {
	// FetchState returns all current listings for a state, walking every
	// result page.
	FetchState(ctx context.Context, state string) ([]model.ListingRecord, error)
}

// Options configures the listings client.
type Options struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	PageSize   int
	// RateLimit is requests per second against the search API.
	RateLimit float64
}

// Client implements Source against the marketplace search API.
type Client struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
}

// NewClient creates a listings client with the given options.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "auction-sync/1.0"
	}
	if opts.PageSize == 0 {
		opts.PageSize = 100
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 5
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), int(math.Max(1, opts.RateLimit))),
	}
}

// searchItem is one listing as returned by the search API.
type searchItem struct {
	Address        string `json:"address"`
	City           string `json:"city"`
	State          string `json:"state"`
	OpeningBid     string `json:"opening_bid"`
	EstMarketValue string `json:"est_market_value"`
	AuctionDate    string `json:"auction_date"`
	Status         string `json:"status"`
	Completed      bool   `json:"completed"`
}

type searchResponse struct {
	Items    []searchItem `json:"items"`
	NextPage int          `json:"next_page"`
}

// FetchState returns all current listings for a state.
func (c *Client) FetchState(ctx context.Context, state string) ([]model.ListingRecord, error) {
	var records []model.ListingRecord
	scrapedAt := time.Now().UTC()

	page := 1
	for page > 0 {
		resp, err := c.fetchPage(ctx, state, page)
		if err != nil {
			return nil, eris.Wrapf(err, "listings: fetch %s page %d", state, page)
		}
		for _, item := range resp.Items {
			rec, err := fromSearchItem(item, scrapedAt)
			if err != nil {
				zap.L().Warn("skipping malformed listing",
					zap.String("state", state),
					zap.String("address", item.Address),
					zap.Error(err),
				)
				continue
			}
			records = append(records, rec)
		}
		page = resp.NextPage
	}

	zap.L().Info("fetched listings",
		zap.String("state", state),
		zap.Int("count", len(records)),
	)
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, state string, page int) (*searchResponse, error) {
	q := url.Values{}
	q.Set("state", state)
	q.Set("page", fmt.Sprint(page))
	q.Set("page_size", fmt.Sprint(c.opts.PageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.opts.BaseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "decode search response")
	}
	return &out, nil
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := range c.opts.MaxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		cloned := req.Clone(ctx)
		resp, err := c.client.Do(cloned)
		if err != nil {
			lastErr = err
			zap.L().Warn("search request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String())
			zap.L().Warn("search API error, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			c.backoff(ctx, attempt)
			continue
		}

		return resp, nil
	}

	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d) / 2))
	d = d + jitter

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
