package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"chartfeed/internal/datafeed"

	"golang.org/x/time/rate"
)

type RESTClient struct {
	baseURL    string
	category   Category
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewRESTClient creates a client for baseURL. rps caps outgoing requests per
// second; zero or less disables pacing.
func NewRESTClient(baseURL string, category Category, timeout time.Duration, rps float64) *RESTClient {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	if category == "" {
		category = CategoryLinear
	}
	return &RESTClient{
		baseURL:    baseURL,
		category:   category,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// GetInstruments fetches every instrument of the client's category, following pagination cursors.
func (c *RESTClient) GetInstruments(ctx context.Context) ([]Instrument, error) {
	var all []Instrument
	cursor := ""

	for {
		q := url.Values{}
		q.Set("category", string(c.category))
		q.Set("limit", "1000")
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var result InstrumentListResponse
		if err := c.get(ctx, "/v5/market/instruments-info", q, &result); err != nil {
			return nil, err
		}
		all = append(all, result.List...)

		if result.NextPageCursor == "" || result.NextPageCursor == cursor {
			break
		}
		cursor = result.NextPageCursor
	}

	return all, nil
}

// GetKlines fetches candles between start and end. Bybit returns them newest first.
func (c *RESTClient) GetKlines(ctx context.Context, symbol, interval string,
	start, end time.Time, limit int) ([]datafeed.RawBar, error) {
	if !IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid kline interval: %s", interval)
	}

	q := url.Values{}
	q.Set("category", string(c.category))
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(end.UnixMilli(), 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var result KlinesResponse
	if err := c.get(ctx, "/v5/market/kline", q, &result); err != nil {
		return nil, err
	}

	return ParseKlineList(result.List), nil
}

// get performs a paced GET and decodes the result field of the envelope into out.
func (c *RESTClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := c.baseURL + path + "?" + query.Encode()

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bybit error: status %d: %s", resp.StatusCode, body)
	}

	var rawResp BybitResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rawResp.RetCode != 0 {
		return fmt.Errorf("bybit error: code %d: %s", rawResp.RetCode, rawResp.RetMsg)
	}

	if err := json.Unmarshal(rawResp.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
