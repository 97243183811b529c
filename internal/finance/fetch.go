package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegramBotForecast/internal/simulation"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"

// errNotFound marks a response that will not improve on retry.
var errNotFound = errors.New("yahoo: symbol not found")

// YahooClient downloads daily closes from the Yahoo Finance chart API.
type YahooClient struct {
	HTTPClient *http.Client
	Hosts      []string // scheme://host, tried in order on every attempt
	Backoffs   []time.Duration
	Now        func() time.Time
	log        zerolog.Logger
}

func NewYahooClient(log zerolog.Logger) *YahooClient {
	return &YahooClient{
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		Hosts:      []string{"https://query1.finance.yahoo.com", "https://query2.finance.yahoo.com"},
		Backoffs:   []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second},
		Now:        time.Now,
		log:        log.With().Str("component", "yahoo").Logger(),
	}
}

// FetchDaily returns the daily closing series of symbol from start until now.
// The chart endpoint is tried first; the spark endpoint is the fallback.
func (c *YahooClient) FetchDaily(ctx context.Context, symbol string, start time.Time) (simulation.PriceSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return simulation.PriceSeries{}, fmt.Errorf("empty symbol: %w", ErrNoData)
	}
	now := c.Now()

	var yc yahooChartResp
	err := c.withRetry(ctx, func(host string) error {
		u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div,splits",
			host, url.PathEscape(symbol), start.Unix(), now.Unix())
		body, err := c.get(ctx, u, symbol)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &yc); err != nil {
			return fmt.Errorf("failed to parse yahoo json: %v; body: %s", err, preview(body))
		}
		return nil
	})
	if err == nil {
		if yc.Chart.Error != nil {
			return simulation.PriceSeries{}, fmt.Errorf("%s: %s: %w", symbol, yc.Chart.Error.Description, ErrNoData)
		}
		if len(yc.Chart.Result) == 0 || len(yc.Chart.Result[0].Indicators.Quote) == 0 {
			return simulation.PriceSeries{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
		}
		res := yc.Chart.Result[0]
		loc := exchangeLocation(res.Meta.ExchangeTimezoneName)
		return buildSeries(symbol, res.Timestamp, res.Indicators.Quote[0].Close, loc, start)
	}
	if errors.Is(err, errNotFound) {
		return simulation.PriceSeries{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	if ctx.Err() != nil {
		return simulation.PriceSeries{}, ctx.Err()
	}
	c.log.Warn().Err(err).Str("symbol", symbol).Msg("chart endpoint failed, trying spark")

	var sp yahooSparkResp
	err = c.withRetry(ctx, func(host string) error {
		u := fmt.Sprintf("%s/v7/finance/spark?symbols=%s&range=%s&interval=1d",
			host, url.QueryEscape(symbol), sparkRange(start, now))
		body, err := c.get(ctx, u, symbol)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &sp); err != nil {
			return fmt.Errorf("failed to parse yahoo spark json: %v", err)
		}
		if len(sp.Spark.Result) == 0 || len(sp.Spark.Result[0].Response) == 0 {
			return errNotFound
		}
		return nil
	})
	if errors.Is(err, errNotFound) {
		return simulation.PriceSeries{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	if err != nil {
		return simulation.PriceSeries{}, err
	}
	r := sp.Spark.Result[0].Response[0]
	return buildSeries(symbol, r.Timestamp, r.Close, exchangeLocation(r.Meta.ExchangeTimezoneName), start)
}

// withRetry runs fn against every host, backing off between rounds.
// It stops early on success, on errNotFound, or when ctx is done.
func (c *YahooClient) withRetry(ctx context.Context, fn func(host string) error) error {
	var lastErr error
	for attempt := 0; attempt < len(c.Backoffs)+1; attempt++ {
		for _, host := range c.Hosts {
			lastErr = fn(host)
			if lastErr == nil || errors.Is(lastErr, errNotFound) {
				return lastErr
			}
			c.log.Debug().Err(lastErr).Str("host", host).Int("attempt", attempt).Msg("yahoo request failed")
		}
		if attempt < len(c.Backoffs) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Backoffs[attempt]):
			}
		}
	}
	return lastErr
}

func (c *YahooClient) get(ctx context.Context, u, symbol string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", fmt.Sprintf("https://finance.yahoo.com/quote/%s/history", symbol))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read yahoo response: %w", readErr)
	}
	if resp.StatusCode == http.StatusTooManyRequests || strings.HasPrefix(string(body), "Edge: Too Many Requests") {
		return nil, fmt.Errorf("yahoo %s returned 429: Edge: Too Many Requests", req.URL.Host)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo %s returned %d: %s", req.URL.Host, resp.StatusCode, preview(body))
	}
	if strings.HasPrefix(string(body), "<") || strings.HasPrefix(string(body), "Edge:") {
		return nil, fmt.Errorf("yahoo returned non-json body: %s", preview(body))
	}
	return body, nil
}

// sparkRange picks the smallest spark range that covers start.
func sparkRange(start, now time.Time) string {
	years := now.Sub(start).Hours() / 24 / 365
	switch {
	case years <= 1:
		return "1y"
	case years <= 2:
		return "2y"
	case years <= 5:
		return "5y"
	case years <= 10:
		return "10y"
	default:
		return "max"
	}
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
