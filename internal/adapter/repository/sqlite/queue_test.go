package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/logger"
)

func openTestDB(t *testing.T) *QueueRepository {
	t.Helper()
	db, err := Open(":memory:", logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, Close(db))
	})
	return NewQueueRepository(db)
}

func track(id int64, title string) domain.Track {
	return domain.Track{
		ID:       id,
		Title:    title,
		Artist:   "artist",
		Duration: 3 * time.Minute,
		FileURL:  "https://example.com/stream/" + domain.FormatTrackID(id),
	}
}

func TestQueueRepository_AddIsIdempotent(t *testing.T) {
	repo := openTestDB(t)

	require.NoError(t, repo.Add(track(7, "original")))
	require.NoError(t, repo.Add(track(7, "renamed")))

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	entries, err := repo.All()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "original", entries[0].Title)
}

func TestQueueRepository_NeighborsOrderByID(t *testing.T) {
	repo := openTestDB(t)

	// Inserted out of order on purpose; neighbors follow numeric ID.
	for _, id := range []int64{30, 10, 20} {
		require.NoError(t, repo.Add(track(id, "t")))
	}

	next, err := repo.NeighborNext(10)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, int64(20), next.ID)

	prev, err := repo.NeighborPrevious(30)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, int64(20), prev.ID)

	next, err = repo.NeighborNext(30)
	require.NoError(t, err)
	assert.Nil(t, next)

	prev, err = repo.NeighborPrevious(10)
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestQueueRepository_FirstAndLast(t *testing.T) {
	repo := openTestDB(t)

	first, err := repo.First()
	require.NoError(t, err)
	assert.Nil(t, first)

	for _, id := range []int64{5, 2, 9} {
		require.NoError(t, repo.Add(track(id, "t")))
	}

	first, err = repo.First()
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(2), first.ID)

	last, err := repo.Last()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(9), last.ID)
}

func TestQueueRepository_ClearExcept(t *testing.T) {
	repo := openTestDB(t)

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, repo.Add(track(id, "t")))
	}

	require.NoError(t, repo.ClearExcept(2))

	entries, err := repo.All()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ID)

	// Keeping an ID that was never stored empties the queue.
	require.NoError(t, repo.ClearExcept(99))
	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestQueueRepository_TouchMarksMostRecent(t *testing.T) {
	repo := openTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	repo.SetClock(func() time.Time { return clock })

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, repo.Add(track(id, "t")))
		clock = clock.Add(time.Second)
	}

	clock = base.Add(time.Hour)
	require.NoError(t, repo.Touch(2))

	recent, err := repo.MostRecentlyTouched()
	require.NoError(t, err)
	require.NotNil(t, recent)
	assert.Equal(t, int64(2), recent.ID)
	assert.Equal(t, base.Add(time.Hour), recent.TouchedAt.UTC())
}

func TestQueueRepository_TouchUnknownIDIsNoop(t *testing.T) {
	repo := openTestDB(t)

	require.NoError(t, repo.Add(track(1, "t")))
	require.NoError(t, repo.Touch(42))

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestQueueRepository_RandomExcluding(t *testing.T) {
	repo := openTestDB(t)

	require.NoError(t, repo.Add(track(1, "only")))

	pick, err := repo.RandomExcluding(1)
	require.NoError(t, err)
	assert.Nil(t, pick)

	require.NoError(t, repo.Add(track(2, "other")))

	for i := 0; i < 10; i++ {
		pick, err = repo.RandomExcluding(1)
		require.NoError(t, err)
		require.NotNil(t, pick)
		assert.Equal(t, int64(2), pick.ID)
	}
}

func TestQueueRepository_RoundTripPreservesTrackFields(t *testing.T) {
	repo := openTestDB(t)

	in := domain.Track{
		ID:         11,
		Title:      "Night Drive",
		Artist:     "Neon City",
		Album:      "Afterglow",
		Duration:   4*time.Minute + 12*time.Second,
		FileURL:    "https://example.com/stream/11",
		CoverURL:   "https://example.com/cover/11",
		UploaderID: 3,
		CreatedAt:  time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Add(in))

	entries, err := repo.All()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0].Track
	got.CreatedAt = got.CreatedAt.UTC()
	assert.Equal(t, in, got)
}
