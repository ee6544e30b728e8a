package tronscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/brojonat/tronlink/service/metrics"
	"github.com/go-resty/resty/v2"
)

const (
	// DefaultBaseURL is the public TronScan API host.
	DefaultBaseURL = "https://apilist.tronscan.org"

	// APIKeyHeader carries the TronScan API key.
	APIKeyHeader = "TRON-PRO-API-KEY"

	transactionPath     = "/api/transaction"
	transactionEndpoint = "transaction" // metrics label
)

var (
	// ErrAPI means the explorer answered but the body carried no data.
	// These are not retried.
	ErrAPI = errors.New("tronscan: api error")

	// ErrExhausted means every attempt failed at the transport level.
	ErrExhausted = errors.New("tronscan: retries exhausted")
)

// ClientConfig configures a Client. Zero values fall back to the defaults.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration // per request, default 23s
	MaxAttempts int           // default 3
	RetryDelay  time.Duration // fixed pause between attempts, default 1s, negative for none
	PageLimit   int           // page size used by Transactions, default 100
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 23 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	} else if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	if c.PageLimit <= 0 {
		c.PageLimit = DefaultLimit
	}
	return c
}

// Client fetches transaction history from the TronScan API.
// Results are memoized per query for the lifetime of the client, so one
// Client should be shared by every search that may revisit an address.
type Client struct {
	http        *resty.Client
	maxAttempts int
	retryDelay  time.Duration
	pageLimit   int
	cache       *Cache
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewClient creates a new TronScan client.
// If metrics is nil, no metrics will be recorded.
func NewClient(cfg ClientConfig, m *metrics.Metrics, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader(APIKeyHeader, cfg.APIKey)
	}

	return &Client{
		http:        httpClient,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		pageLimit:   cfg.PageLimit,
		cache:       NewCache(),
		metrics:     m,
		logger:      logger,
	}
}

// Session returns a client sharing this one's transport and settings but
// with an empty cache of its own. Long-running callers take one Session per
// search so failures and stale pages do not outlive it.
func (c *Client) Session() *Client {
	s := *c
	s.cache = NewCache()
	return &s
}

// Cache exposes the client's memoization cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Transactions returns the first ascending page of transactions for address.
// It is the query used by the connection search.
func (c *Client) Transactions(ctx context.Context, address string) ([]Transaction, error) {
	q := DefaultQuery(address)
	q.Limit = c.pageLimit
	return c.Fetch(ctx, q)
}

// Fetch returns the transactions matching q.
//
// The returned slice is empty whenever the fetch failed, exactly as for an
// address with no transactions. The error tells the two apart: it wraps
// ErrAPI when the explorer rejected the query and ErrExhausted when every
// attempt failed at the transport level.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Transaction, error) {
	txns, hit, err := c.cache.Do(q, func() ([]Transaction, error) {
		return c.fetchWithRetry(ctx, q)
	})

	if c.metrics != nil {
		if hit {
			c.metrics.RecordCacheLookup("hit")
		} else {
			c.metrics.RecordCacheLookup("miss")
		}
	}
	if hit {
		c.logger.DebugContext(ctx, "transaction cache hit", "address", q.Address, "page", q.Page)
	}

	if err != nil {
		return []Transaction{}, err
	}
	return txns, nil
}

// fetchWithRetry retries transport failures with a fixed pause.
// API-level errors return immediately.
func (c *Client) fetchWithRetry(ctx context.Context, q Query) ([]Transaction, error) {
	var lastErr error
	for attempt := range c.maxAttempts {
		txns, err := c.fetchOnce(ctx, q)
		if err == nil {
			return txns, nil
		}

		if errors.Is(err, ErrAPI) {
			c.logger.ErrorContext(ctx, "explorer api error",
				"address", q.Address,
				"error", err,
			)
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		c.logger.WarnContext(ctx, "request attempt failed",
			"address", q.Address,
			"attempt", attempt+1,
			"max_attempts", c.maxAttempts,
			"error", err,
		)

		if attempt == c.maxAttempts-1 {
			break
		}
		if c.metrics != nil {
			c.metrics.RecordAPIRetry(transactionEndpoint, "transport")
		}

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, c.maxAttempts, lastErr)
}

// fetchOnce issues a single request. Any error other than ErrAPI is a
// transport-level failure and may be retried.
func (c *Client) fetchOnce(ctx context.Context, q Query) ([]Transaction, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"address": q.Address,
			"sort":    string(q.Order),
			"start":   strconv.FormatInt(q.Start, 10),
			"end":     strconv.FormatInt(q.End, 10),
			"page":    strconv.Itoa(q.Page),
			"limit":   strconv.Itoa(q.Limit),
		}).
		Get(transactionPath)
	duration := time.Since(start).Seconds()

	status := "success"
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordAPICall(transactionEndpoint, status, duration)
		}
	}()

	if err != nil {
		status = "error"
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsSuccess() {
		status = "error"
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	var body transactionResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		status = "error"
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if body.Data == nil {
		status = "api_error"
		return nil, fmt.Errorf("%w: %s", ErrAPI, errorMessage(body.Error))
	}

	txns := make([]Transaction, 0, len(*body.Data))
	for _, raw := range *body.Data {
		txn, err := parseTransaction(raw)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable transaction",
				"address", q.Address,
				"error", err,
			)
			continue
		}
		txns = append(txns, txn)
	}

	if c.metrics != nil {
		c.metrics.RecordTransactionsPerCall(transactionEndpoint, len(txns))
	}
	c.logger.DebugContext(ctx, "fetched transactions",
		"address", q.Address,
		"page", q.Page,
		"count", len(txns),
		"total", body.Total,
	)

	return txns, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
