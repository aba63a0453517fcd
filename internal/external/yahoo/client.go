package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/pkg/config"
	"github.com/wonny/moneyflow/pkg/httputil"
	"github.com/wonny/moneyflow/pkg/logger"
	"github.com/wonny/moneyflow/pkg/metrics"
)

// ErrNoData is returned when no usable rows are available
var ErrNoData = errors.New("no quote data")

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Client fetches daily quotes from the Yahoo chart API
// ⭐ SSOT: Yahoo Finance API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	limiter    *rate.Limiter
	workers    int
	metrics    *metrics.Metrics // nil = 기록 안 함
}

// NewClient creates a new Yahoo chart client
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	baseURL := strings.TrimRight(cfg.Yahoo.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	limit := rate.Inf
	if cfg.Yahoo.RatePerSec > 0 {
		limit = rate.Limit(cfg.Yahoo.RatePerSec)
	}

	workers := cfg.Yahoo.Workers
	if workers < 1 {
		workers = 1
	}

	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "yahoo"),
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(limit, 1),
		workers:    workers,
	}
}

// WithMetrics records per-symbol request results and latency
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

// FetchQuotes fetches up to sessions rows for every symbol.
// Per-symbol failures are recorded in the set; ErrNoData is returned
// (together with the failures) when no symbol resolved.
func (c *Client) FetchQuotes(ctx context.Context, symbols []string, sessions int) (*contracts.QuoteSet, error) {
	quotes := contracts.NewQuoteSet()
	symbols = uniqueSymbols(symbols)
	if len(symbols) == 0 {
		return quotes, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.workers)

	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			start := time.Now()
			rows, err := c.FetchSymbol(ctx, sym, sessions)
			c.metrics.ObserveQuote(err, time.Since(start))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				quotes.Failures[sym] = err
				return nil
			}
			quotes.Series[sym] = rows
			return nil
		})
	}
	_ = g.Wait() // 종목별 실패는 Failures에 기록

	c.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"resolved":  len(quotes.Series),
		"failed":    len(quotes.Failures),
		"sessions":  sessions,
	}).Debug("Quotes fetched")

	if len(quotes.Series) == 0 {
		return quotes, ErrNoData
	}
	return quotes, nil
}

// FetchSymbol fetches the trailing sessions of one symbol, oldest first
func (c *Client) FetchSymbol(ctx context.Context, symbol string, sessions int) ([]contracts.QuoteRow, error) {
	if sessions < 1 {
		sessions = 1
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("range", chartRange(sessions))
	params.Set("interval", "1d")
	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// 404도 chart.error 본문을 포함하므로 먼저 파싱 시도
	rows, parseErr := parseChart(symbol, body)
	if resp.StatusCode != http.StatusOK {
		if parseErr != nil && !errors.Is(parseErr, ErrNoData) {
			return nil, fmt.Errorf("unexpected status code %d: %w", resp.StatusCode, parseErr)
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if parseErr != nil {
		return nil, parseErr
	}

	if len(rows) > sessions {
		rows = rows[len(rows)-sessions:]
	}
	return rows, nil
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

var _ contracts.QuoteSource = (*Client)(nil)
