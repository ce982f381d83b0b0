package outline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/store"
)

// Presence timing constants. The GC ttl is deliberately shorter than the
// display window: a record flickers out of the view before it is
// physically deleted, so a just-refreshed user never disappears and
// reappears around a sweep.
const (
	// PresenceTTL is the staleness threshold after which a record is
	// eligible for garbage collection.
	PresenceTTL = 60 * time.Second

	// PresenceDisplayWindow bounds the read-only view of recent users.
	PresenceDisplayWindow = 90 * time.Second

	// HeartbeatInterval is how often a session refreshes its own record.
	HeartbeatInterval = 10 * time.Second

	// SweepInterval is how often each replica runs the garbage collector.
	// Every connected replica sweeps independently; duplicate deletes are
	// tolerated as no-ops.
	SweepInterval = 15 * time.Second
)

// PresenceInfo is one row of the display view returned by ListRecent.
type PresenceInfo struct {
	Name string `json:"name"`
	// IsSelf marks the caller's own record.
	IsSelf bool `json:"isSelf"`
	// Status is the human-readable liveness bucket: "Active now" under
	// 30s, "Ns ago" under a minute, "Nm ago" beyond.
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// PresenceTracker maintains the who-is-here view with decentralized,
// clock-based liveness. Registration is idempotent: join, heartbeat tick,
// focus changes, and input activity all funnel into RegisterOrRefresh.
type PresenceTracker struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewPresenceTracker creates a tracker over the given store. The clock is
// injectable for tests; pass nil for time.Now.
func NewPresenceTracker(st store.Store, log zerolog.Logger, now func() time.Time) *PresenceTracker {
	if now == nil {
		now = time.Now
	}
	return &PresenceTracker{
		store: st,
		log:   log.With().Str("component", "presence").Logger(),
		now:   now,
	}
}

// RegisterOrRefresh creates the user's presence record, or stamps the
// existing one with a fresh lastSeen. Safe to call from every activity
// event; repeated calls are cheap and idempotent.
func (t *PresenceTracker) RegisterOrRefresh(ctx context.Context, userID string) error {
	records, err := t.store.Presence().Snapshot(ctx)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].Name == userID {
			rec := records[i]
			rec.LastSeen = t.now()
			if err := t.store.Presence().ReplaceAt(ctx, i, rec); err != nil {
				return fmt.Errorf("refresh presence for %q: %w", userID, err)
			}
			return nil
		}
	}

	id, err := t.store.NextID(ctx, store.CounterUser)
	if err != nil {
		return err
	}
	_, err = t.store.Presence().Append(ctx, models.PresenceRecord{
		ID:       models.PresenceID(id),
		Name:     userID,
		LastSeen: t.now(),
	})
	if err != nil {
		return err
	}
	t.log.Debug().Str("user", userID).Msg("registered presence")
	return nil
}

// Deregister removes the user's record, best effort. The page-unload path
// cannot report errors, so failures (including a torn-down connection)
// are swallowed.
func (t *PresenceTracker) Deregister(ctx context.Context, userID string) {
	records, err := t.store.Presence().Snapshot(ctx)
	if err != nil {
		t.log.Debug().Err(err).Str("user", userID).Msg("deregister skipped")
		return
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Name == userID {
			if err := t.store.Presence().RemoveAt(ctx, i); err != nil {
				t.log.Debug().Err(err).Str("user", userID).Msg("deregister remove failed")
			}
		}
	}
}

// CollectGarbage removes every record whose lastSeen is older than ttl.
// Every replica runs this on its own timer, so two replicas may race to
// delete the same record; an index that no longer resolves is a no-op.
// A record exactly at the boundary survives: eligibility is lastSeen
// strictly before now-ttl.
func (t *PresenceTracker) CollectGarbage(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	records, err := t.store.Presence().Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := now.Add(-ttl)
	removed := 0
	// Walk the snapshot from the end so earlier indices stay valid as
	// records are removed.
	for i := len(records) - 1; i >= 0; i-- {
		if !records[i].LastSeen.Before(cutoff) {
			continue
		}
		if err := t.store.Presence().RemoveAt(ctx, i); err != nil {
			if errors.Is(err, store.ErrIndexOutOfRange) {
				continue // another replica got there first
			}
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		t.log.Debug().Int("removed", removed).Msg("presence sweep")
	}
	return removed, nil
}

// ListRecent returns the display view: records seen within the display
// window, sorted by name, with the caller's own entry annotated. The
// window is wider than the GC ttl on purpose; see the constants above.
func (t *PresenceTracker) ListRecent(ctx context.Context, now time.Time, window time.Duration, selfID string) ([]PresenceInfo, error) {
	records, err := t.store.Presence().Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PresenceInfo, 0, len(records))
	for _, rec := range records {
		if rec.LastSeen.Before(now.Add(-window)) {
			continue
		}
		out = append(out, PresenceInfo{
			Name:     rec.Name,
			IsSelf:   rec.Name == selfID,
			Status:   livenessBucket(now.Sub(rec.LastSeen)),
			LastSeen: rec.LastSeen,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func livenessBucket(age time.Duration) string {
	secs := int(age.Seconds())
	switch {
	case secs < 30:
		return "Active now"
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	default:
		return fmt.Sprintf("%dm ago", secs/60)
	}
}
