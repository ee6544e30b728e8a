package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/brojonat/tronlink/service/db"
	natspkg "github.com/brojonat/tronlink/service/nats"
	"github.com/brojonat/tronlink/service/search"
	"github.com/google/uuid"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 100     // TRON base58 addresses are 34 chars, give buffer
	maxSearchDepth     = 6
	maxSearchWorkers   = 8
	maxFollowJQLength  = 1024
	defaultListLimit   = 20
	maxListLimit       = 100
)

var (
	// Valid TRON address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

type createSearchRequest struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	MaxDepth      int    `json:"max_depth"`
	Workers       int    `json:"workers"`
	FollowJQ      string `json:"follow_jq"`
	CancelOnFound bool   `json:"cancel_on_found"`
}

// handleCreateSearch returns a handler that runs a connection search and
// returns its report. The search runs within the request.
// POST /api/v1/searches
func handleCreateSearch(runner SearchRunner, store ReportStore, publisher natspkg.Publisher, defaults Defaults, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Limit request body size to prevent memory exhaustion
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req createSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode search request", "error", err)
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if req.MaxDepth == 0 {
			req.MaxDepth = defaults.MaxDepth
		}
		if req.Workers == 0 {
			req.Workers = defaults.Workers
		}

		if err := validateSearchRequest(req); err != nil {
			logger.Debug("invalid search request", "source", req.Source, "target", req.Target, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		report, err := runner.Run(r.Context(), search.Request{
			Source:        req.Source,
			Target:        req.Target,
			MaxDepth:      req.MaxDepth,
			Workers:       req.Workers,
			FollowJQ:      req.FollowJQ,
			CancelOnFound: req.CancelOnFound,
		})
		if err != nil {
			if errors.Is(err, search.ErrInvalidRequest) {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.Error("search failed", "source", req.Source, "target", req.Target, "error", err)
			writeError(w, "search failed", http.StatusInternalServerError)
			return
		}

		// Persisting and publishing are best effort; the caller still gets the report.
		if store != nil {
			if err := store.CreateSearch(r.Context(), report); err != nil {
				logger.Error("failed to store search", "search_id", report.ID, "error", err)
			}
		}
		if publisher != nil {
			if err := publisher.PublishSearchCompleted(r.Context(), natspkg.FromReport(report)); err != nil {
				logger.Error("failed to publish search event", "search_id", report.ID, "error", err)
			}
		}

		logger.Info("search completed",
			"search_id", report.ID,
			"source", report.Source,
			"target", report.Target,
			"outcome", report.Outcome(),
		)

		writeJSON(w, report, http.StatusOK)
	})
}

// handleGetSearch returns a handler that retrieves a stored search report.
// GET /api/v1/searches/{id}
func handleGetSearch(store ReportStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, "search history is not enabled", http.StatusServiceUnavailable)
			return
		}

		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, "invalid search id: must be a UUID", http.StatusBadRequest)
			return
		}

		report, err := store.GetSearch(r.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "search not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get search", "search_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, report, http.StatusOK)
	})
}

// handleListSearches returns a handler that lists recent search reports.
// GET /api/v1/searches?limit={limit}
func handleListSearches(store ReportStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, "search history is not enabled", http.StatusServiceUnavailable)
			return
		}

		limit := defaultListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxListLimit {
				writeError(w, fmt.Sprintf("limit must be an integer between 1 and %d", maxListLimit), http.StatusBadRequest)
				return
			}
			limit = n
		}

		reports, err := store.ListSearches(r.Context(), limit)
		if err != nil {
			logger.Error("failed to list searches", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Debug("searches listed", "count", len(reports))

		writeJSON(w, map[string]interface{}{
			"searches": reports,
		}, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func validateSearchRequest(req createSearchRequest) error {
	if err := validateAddress("source", req.Source); err != nil {
		return err
	}
	if err := validateAddress("target", req.Target); err != nil {
		return err
	}
	if req.MaxDepth < 1 || req.MaxDepth > maxSearchDepth {
		return errorf("max_depth must be between 1 and %d", maxSearchDepth)
	}
	if req.Workers < 1 || req.Workers > maxSearchWorkers {
		return errorf("workers must be between 1 and %d", maxSearchWorkers)
	}
	if len(req.FollowJQ) > maxFollowJQLength {
		return errorf("follow_jq too long: maximum length is %d characters", maxFollowJQLength)
	}
	return nil
}

// validateAddress validates a TRON address for security and format.
func validateAddress(field, address string) error {
	if address == "" {
		return errorf("%s address is required", field)
	}

	if len(address) > maxAddressLength {
		return errorf("%s address too long: maximum length is %d characters", field, maxAddressLength)
	}

	// Check for null bytes and control characters
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in %s address: control characters not allowed", field)
		}
	}

	if strings.ContainsAny(address, " ;/*") {
		return errorf("invalid characters in %s address: suspicious pattern detected", field)
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid %s address format: must contain only valid base58 characters", field)
	}

	return nil
}

func errorf(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
