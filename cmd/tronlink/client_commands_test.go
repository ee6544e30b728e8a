package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSearchCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/searches", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TSource", body["source"])
		assert.Equal(t, float64(2), body["max_depth"])
		assert.Equal(t, true, body["cancel_on_found"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "abc",
			"source": "TSource",
			"target": "TTarget",
			"found":  true,
			"log":    []string{"[2025-01-02 03:04:05] Connection found!"},
		})
	}))
	defer server.Close()

	err := newApp().Run([]string{
		"tronlink", "--server-url", server.URL, "client", "search",
		"--max-depth", "2", "--cancel-on-found", "--show-log",
		"TSource", "TTarget",
	})
	require.NoError(t, err)
}

func TestClientGetCommand_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/searches/missing", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "search not found"})
	}))
	defer server.Close()

	err := newApp().Run([]string{"tronlink", "--server-url", server.URL, "client", "get", "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search not found")
}

func TestClientListCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"searches": []map[string]interface{}{
				{"id": "a", "source": "TA", "target": "TB", "inconclusive": true},
			},
		})
	}))
	defer server.Close()

	err := newApp().Run([]string{"tronlink", "--server-url", server.URL, "--json", "client", "list", "--limit", "3"})
	require.NoError(t, err)
}
