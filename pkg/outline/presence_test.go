package outline_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteline/noteline/pkg/outline"
	"github.com/noteline/noteline/pkg/store/memory"
)

func newPresenceFixture(t *testing.T) (context.Context, *memory.Store, *outline.PresenceTracker, *time.Time) {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { st.Close() })
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := outline.NewPresenceTracker(st, zerolog.Nop(), func() time.Time { return now })
	return context.Background(), st, tracker, &now
}

func TestRegisterOrRefresh(t *testing.T) {
	ctx, st, tracker, clock := newPresenceFixture(t)

	require.NoError(t, tracker.RegisterOrRefresh(ctx, "alice"))
	records, err := st.Presence().Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	first := records[0]

	// Refreshing keeps the record and its id, only lastSeen moves.
	*clock = clock.Add(20 * time.Second)
	require.NoError(t, tracker.RegisterOrRefresh(ctx, "alice"))
	records, err = st.Presence().Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, first.LastSeen.Add(20*time.Second), records[0].LastSeen)
}

func TestCollectGarbage(t *testing.T) {
	ctx, st, tracker, clock := newPresenceFixture(t)
	base := *clock

	require.NoError(t, tracker.RegisterOrRefresh(ctx, "stale"))
	*clock = base.Add(59 * time.Second)
	require.NoError(t, tracker.RegisterOrRefresh(ctx, "fresh"))

	t.Run("keeps records inside the ttl", func(t *testing.T) {
		removed, err := tracker.CollectGarbage(ctx, base.Add(59*time.Second), outline.PresenceTTL)
		require.NoError(t, err)
		assert.Zero(t, removed, "record 59s old with ttl 60s must survive")
	})

	t.Run("boundary record survives", func(t *testing.T) {
		removed, err := tracker.CollectGarbage(ctx, base.Add(outline.PresenceTTL), outline.PresenceTTL)
		require.NoError(t, err)
		assert.Zero(t, removed, "record exactly ttl old must survive")
	})

	t.Run("removes records past the ttl", func(t *testing.T) {
		removed, err := tracker.CollectGarbage(ctx, base.Add(61*time.Second), outline.PresenceTTL)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		records, err := st.Presence().Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "fresh", records[0].Name)
	})
}

func TestDeregister(t *testing.T) {
	ctx, st, tracker, _ := newPresenceFixture(t)
	require.NoError(t, tracker.RegisterOrRefresh(ctx, "alice"))
	require.NoError(t, tracker.RegisterOrRefresh(ctx, "bob"))

	tracker.Deregister(ctx, "alice")
	records, err := st.Presence().Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "bob", records[0].Name)

	// Deregistering an unknown user is a quiet no-op.
	tracker.Deregister(ctx, "nobody")
}

func TestListRecent(t *testing.T) {
	ctx, _, tracker, clock := newPresenceFixture(t)
	base := *clock

	require.NoError(t, tracker.RegisterOrRefresh(ctx, "zoe"))
	*clock = base.Add(45 * time.Second)
	require.NoError(t, tracker.RegisterOrRefresh(ctx, "mallory"))
	*clock = base.Add(80 * time.Second)
	require.NoError(t, tracker.RegisterOrRefresh(ctx, "alice"))

	now := base.Add(90 * time.Second)
	infos, err := tracker.ListRecent(ctx, now, outline.PresenceDisplayWindow, "alice")
	require.NoError(t, err)
	require.Len(t, infos, 3)

	t.Run("sorted by name with self annotated", func(t *testing.T) {
		assert.Equal(t, "alice", infos[0].Name)
		assert.True(t, infos[0].IsSelf)
		assert.Equal(t, "mallory", infos[1].Name)
		assert.False(t, infos[1].IsSelf)
		assert.Equal(t, "zoe", infos[2].Name)
	})

	t.Run("liveness buckets", func(t *testing.T) {
		assert.Equal(t, "Active now", infos[0].Status, "10s old")
		assert.Equal(t, "45s ago", infos[1].Status)
		assert.Equal(t, "1m ago", infos[2].Status, "90s old")
	})

	t.Run("records outside the window are omitted", func(t *testing.T) {
		later := base.Add(170 * time.Second)
		infos, err := tracker.ListRecent(ctx, later, outline.PresenceDisplayWindow, "alice")
		require.NoError(t, err)
		require.Len(t, infos, 1, "only the record exactly at the 90s boundary stays")
		assert.Equal(t, "alice", infos[0].Name)
	})
}
