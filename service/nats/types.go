package nats

import (
	"time"

	"github.com/brojonat/tronlink/service/search"
)

// SearchCompletedEvent is published to "searches.{lower(source)}" when a
// connection search finishes.
type SearchCompletedEvent struct {
	SearchID string `json:"search_id"`

	Source   string `json:"source"`
	Target   string `json:"target"`
	MaxDepth int    `json:"max_depth"`
	Workers  int    `json:"workers"`

	// Outcome is one of found, not_found or inconclusive.
	Outcome         string   `json:"outcome"`
	Found           bool     `json:"found"`
	FailedAddresses []string `json:"failed_addresses,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromReport converts a search report to an event for publishing.
// The log is left out; consumers fetch it from the API by ID.
func FromReport(r *search.Report) *SearchCompletedEvent {
	return &SearchCompletedEvent{
		SearchID:        r.ID.String(),
		Source:          r.Source,
		Target:          r.Target,
		MaxDepth:        r.MaxDepth,
		Workers:         r.Workers,
		Outcome:         r.Outcome(),
		Found:           r.Found,
		FailedAddresses: r.FailedAddresses,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		PublishedAt:     time.Now().UTC(),
	}
}
