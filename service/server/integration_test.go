package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/brojonat/tronlink/client"
	"github.com/brojonat/tronlink/service/metrics"
	natspkg "github.com/brojonat/tronlink/service/nats"
	"github.com/brojonat/tronlink/service/search"
	"github.com/brojonat/tronlink/service/server"
	"github.com/brojonat/tronlink/service/tronscan"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain is a TransactionSource where each address sends to the next one.
type chain []string

func (c chain) Transactions(ctx context.Context, address string) ([]tronscan.Transaction, error) {
	for i := 0; i < len(c)-1; i++ {
		if c[i] == address {
			return []tronscan.Transaction{{Hash: "h" + c[i], OwnerAddress: c[i], ToAddress: c[i+1]}}, nil
		}
	}
	return []tronscan.Transaction{}, nil
}

// TestServerIntegration runs real searches through the HTTP API with the client.
func TestServerIntegration(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	m := metrics.NewMetrics(prometheus.NewRegistry())
	orch := search.NewOrchestrator(chain{"TSource", "TMiddle", "TTarget"}, m, logger)
	publisher := natspkg.NewMockPublisher()

	srv := server.New(":0", orch, nil, publisher, server.Defaults{}, m, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := client.NewClient(ts.URL, nil, nil)
	ctx := context.Background()

	t.Run("reachable target", func(t *testing.T) {
		s, err := c.Search(ctx, client.SearchRequest{Source: "TSource", Target: "TTarget", MaxDepth: 2})
		require.NoError(t, err)
		assert.True(t, s.Found)
		assert.False(t, s.Inconclusive)
		assert.Contains(t, s.Log[len(s.Log)-1], "Connection found!")
	})

	t.Run("target beyond max depth", func(t *testing.T) {
		s, err := c.Search(ctx, client.SearchRequest{Source: "TSource", Target: "TTarget", MaxDepth: 1})
		require.NoError(t, err)
		assert.False(t, s.Found)
		assert.Contains(t, s.Log[len(s.Log)-1], "No connection found.")
	})

	t.Run("invalid jq filter", func(t *testing.T) {
		_, err := c.Search(ctx, client.SearchRequest{Source: "TSource", Target: "TTarget", FollowJQ: ".amount >"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jq filter")
	})

	t.Run("history without store", func(t *testing.T) {
		_, err := c.List(ctx, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not enabled")
	})

	assert.Equal(t, 2, publisher.GetPublishedEventCount())
}

// TestServerIntegration_ExplorerRecovers checks that a TronScan outage seen
// by one search is not replayed to the next one.
func TestServerIntegration_ExplorerRecovers(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	explorerAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		data := []map[string]any{}
		if r.URL.Query().Get("address") == "TSource" {
			data = append(data, map[string]any{"hash": "h1", "ownerAddress": "TSource", "toAddress": "TTarget"})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"total": len(data), "data": data})
	}))
	defer explorerAPI.Close()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	explorer := tronscan.NewClient(tronscan.ClientConfig{
		BaseURL:     explorerAPI.URL,
		APIKey:      "test-key",
		MaxAttempts: 1,
		RetryDelay:  -1,
	}, nil, logger)
	orch := search.NewSessionOrchestrator(func() search.TransactionSource {
		return explorer.Session()
	}, nil, logger)

	srv := server.New(":0", orch, nil, nil, server.Defaults{}, nil, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := client.NewClient(ts.URL, nil, nil)
	ctx := context.Background()
	req := client.SearchRequest{Source: "TSource", Target: "TTarget", MaxDepth: 1}

	s, err := c.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, s.Found)
	assert.True(t, s.Inconclusive)
	assert.Equal(t, []string{"TSource"}, s.FailedAddresses)

	down.Store(false)

	s, err = c.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, s.Found)
	assert.False(t, s.Inconclusive)
	assert.Empty(t, s.FailedAddresses)
}

// TestHealthEndpoint tests the health check endpoint.
func TestHealthEndpoint(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := server.New(":0", search.NewOrchestrator(chain{}, nil, logger), nil, nil, server.Defaults{}, nil, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))

	// Metrics are disabled when no collector is configured.
	resp2, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
