package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/tronlink/service/search"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject_LowerCasesSource(t *testing.T) {
	assert.Equal(t, "searches.tabc123", Subject("TAbc123"))
}

func TestFromReport(t *testing.T) {
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	report := &search.Report{
		ID:              uuid.MustParse("6f1c3c4e-8d53-4a40-9d3d-0b7e3c9d6a11"),
		Source:          "TSource",
		Target:          "TTarget",
		MaxDepth:        3,
		Workers:         2,
		Inconclusive:    true,
		FailedAddresses: []string{"TBroken"},
		StartedAt:       started,
		FinishedAt:      started.Add(2 * time.Second),
		Log:             []string{"[2025-01-02 03:04:05] line"},
	}

	event := FromReport(report)

	assert.Equal(t, "6f1c3c4e-8d53-4a40-9d3d-0b7e3c9d6a11", event.SearchID)
	assert.Equal(t, "TSource", event.Source)
	assert.Equal(t, "TTarget", event.Target)
	assert.Equal(t, 3, event.MaxDepth)
	assert.Equal(t, 2, event.Workers)
	assert.Equal(t, "inconclusive", event.Outcome)
	assert.False(t, event.Found)
	assert.Equal(t, []string{"TBroken"}, event.FailedAddresses)
	assert.Equal(t, started, event.StartedAt)
	assert.False(t, event.PublishedAt.IsZero())

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"log"`)
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	ctx := context.Background()

	require.NoError(t, m.PublishSearchCompleted(ctx, &SearchCompletedEvent{SearchID: "1", Source: "TA"}))
	require.NoError(t, m.PublishSearchCompleted(ctx, &SearchCompletedEvent{SearchID: "2", Source: "TB"}))

	assert.Equal(t, 2, m.GetPublishedEventCount())
	forA := m.GetPublishedEventsForSubject("searches.ta")
	require.Len(t, forA, 1)
	assert.Equal(t, "1", forA[0].SearchID)

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.PublishSearchCompleted(ctx, &SearchCompletedEvent{SearchID: "3"}))
	assert.Equal(t, 2, m.GetPublishedEventCount())

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())

	m.Reset()
	assert.Equal(t, 0, m.GetPublishedEventCount())
	assert.False(t, m.IsClosed())
}
