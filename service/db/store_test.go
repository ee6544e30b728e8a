package db

import (
	"context"
	"testing"
	"time"

	"github.com/brojonat/tronlink/service/search"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReport(source string, started time.Time) *search.Report {
	return &search.Report{
		ID:         uuid.New(),
		Source:     source,
		Target:     "TTarget",
		MaxDepth:   3,
		Workers:    1,
		Found:      true,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Log: []string{
			"[2025-01-02 03:04:05] Starting connection search between " + source + " and TTarget",
			"[2025-01-02 03:04:08] Connection found!",
		},
	}
}

func TestCreateAndGetSearch(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond) // Truncate for comparison

	t.Run("found search round trips", func(t *testing.T) {
		report := newReport("TSourceA", now)
		require.NoError(t, store.CreateSearch(ctx, report))

		got, err := store.GetSearch(ctx, report.ID)
		require.NoError(t, err)

		assert.Equal(t, report.ID, got.ID)
		assert.Equal(t, "TSourceA", got.Source)
		assert.Equal(t, "TTarget", got.Target)
		assert.True(t, got.Found)
		assert.False(t, got.Inconclusive)
		assert.Empty(t, got.FailedAddresses)
		assert.Equal(t, report.Log, got.Log)
		assert.WithinDuration(t, now, got.StartedAt, time.Microsecond)
	})

	t.Run("inconclusive search keeps failed addresses", func(t *testing.T) {
		report := newReport("TSourceB", now)
		report.Found = false
		report.Inconclusive = true
		report.FailedAddresses = []string{"TBroken1", "TBroken2"}
		report.FollowJQ = `(.amount | tonumber) > 0`
		require.NoError(t, store.CreateSearch(ctx, report))

		got, err := store.GetSearch(ctx, report.ID)
		require.NoError(t, err)
		assert.True(t, got.Inconclusive)
		assert.Equal(t, []string{"TBroken1", "TBroken2"}, got.FailedAddresses)
		assert.Equal(t, report.FollowJQ, got.FollowJQ)
	})

	t.Run("duplicate id", func(t *testing.T) {
		report := newReport("TSourceC", now)
		require.NoError(t, store.CreateSearch(ctx, report))
		assert.Error(t, store.CreateSearch(ctx, report))
	})
}

func TestGetSearch_NotFound(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()

	_, err := store.GetSearch(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSearches_NewestFirst(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, source := range []string{"TOld", "TMiddle", "TNew"} {
		require.NoError(t, store.CreateSearch(ctx, newReport(source, base.Add(time.Duration(i)*time.Minute))))
	}

	reports, err := store.ListSearches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "TNew", reports[0].Source)
	assert.Equal(t, "TMiddle", reports[1].Source)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()

	assert.NoError(t, store.EnsureSchema(context.Background()))
}
