package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultTimeout bounds a whole request. Searches run within the request on
// the server, so it is generous.
const DefaultTimeout = 5 * time.Minute

// Search is a connection search report returned by the server.
type Search struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	Target          string    `json:"target"`
	MaxDepth        int       `json:"max_depth"`
	Workers         int       `json:"workers"`
	FollowJQ        string    `json:"follow_jq,omitempty"`
	Found           bool      `json:"found"`
	Inconclusive    bool      `json:"inconclusive"`
	FailedAddresses []string  `json:"failed_addresses,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Log             []string  `json:"log"`
}

// SearchRequest describes a search to run. Zero MaxDepth or Workers use the
// server defaults.
type SearchRequest struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	MaxDepth      int    `json:"max_depth,omitempty"`
	Workers       int    `json:"workers,omitempty"`
	FollowJQ      string `json:"follow_jq,omitempty"`
	CancelOnFound bool   `json:"cancel_on_found,omitempty"`
}

// Client is the HTTP client for the tronlink search service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new search service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Search runs a connection search on the server and waits for its report.
func (c *Client) Search(ctx context.Context, sr SearchRequest) (*Search, error) {
	body, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/searches", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var s Search
	if err := c.do(req, &s); err != nil {
		return nil, err
	}

	c.logger.Debug("search completed", "id", s.ID, "found", s.Found, "inconclusive", s.Inconclusive)
	return &s, nil
}

// Get retrieves a stored search by ID.
func (c *Client) Get(ctx context.Context, id string) (*Search, error) {
	u := fmt.Sprintf("%s/api/v1/searches/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var s Search
	if err := c.do(req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// List retrieves the most recent searches, newest first.
// A limit of zero uses the server default.
func (c *Client) List(ctx context.Context, limit int) ([]*Search, error) {
	u := c.baseURL + "/api/v1/searches"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result struct {
		Searches []*Search `json:"searches"`
	}
	if err := c.do(req, &result); err != nil {
		return nil, err
	}

	c.logger.Debug("searches listed", "count", len(result.Searches))
	return result.Searches, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
