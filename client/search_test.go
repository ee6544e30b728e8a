package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/searches", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&body)
		require.NoError(t, err)

		assert.Equal(t, "TSource", body["source"])
		assert.Equal(t, "TTarget", body["target"])
		assert.Equal(t, float64(2), body["max_depth"])
		assert.NotContains(t, body, "workers")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":        "6f1c3c4e-8d53-4a40-9d3d-0b7e3c9d6a11",
			"source":    "TSource",
			"target":    "TTarget",
			"found":     true,
			"max_depth": 2,
			"workers":   1,
			"log":       []string{"[2025-01-02 03:04:05] Connection found!"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	s, err := client.Search(context.Background(), SearchRequest{Source: "TSource", Target: "TTarget", MaxDepth: 2})
	require.NoError(t, err)

	assert.Equal(t, "6f1c3c4e-8d53-4a40-9d3d-0b7e3c9d6a11", s.ID)
	assert.True(t, s.Found)
	assert.Equal(t, 2, s.MaxDepth)
	assert.Len(t, s.Log, 1)
}

func TestSearch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "max_depth must be between 1 and 6",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Search(context.Background(), SearchRequest{Source: "TSource", Target: "TTarget", MaxDepth: 9})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_depth must be between 1 and 6")
}

func TestGet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/searches/abc", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":               "abc",
			"inconclusive":     true,
			"failed_addresses": []string{"TBroken"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	s, err := client.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, s.Inconclusive)
	assert.Equal(t, []string{"TBroken"}, s.FailedAddresses)
}

func TestGet_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "search not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search not found")
}

func TestList_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/searches", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"searches": []map[string]interface{}{
				{"id": "a", "source": "TA"},
				{"id": "b", "source": "TB"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	searches, err := client.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, searches, 2)
	assert.Equal(t, "a", searches[0].ID)
	assert.Equal(t, "TB", searches[1].Source)
}

func TestParseErrorResponse_NonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.List(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
}
