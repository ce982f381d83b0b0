package outline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noteline/noteline/pkg/store"
)

// Session ties one user's connection to the shared document: it owns the
// engine, vote ledger, presence tracker, and change bridge, and runs the
// presence heartbeat and garbage collection loops until closed.
//
// The session id is a fresh UUID per connection, distinct from the user's
// identity: two tabs of the same user are two sessions with one presence
// name.
type Session struct {
	ID       string
	UserName string

	Engine   *Engine
	Votes    *VoteLedger
	Presence *PresenceTracker
	Bridge   *Bridge

	log       zerolog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession opens a session for userName, registers its presence, and
// starts the heartbeat and sweep loops.
func NewSession(ctx context.Context, st store.Store, userName string, log zerolog.Logger) (*Session, error) {
	bridge, err := NewBridge(st, log)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:       uuid.NewString(),
		UserName: userName,
		Engine:   NewEngine(st, log, nil),
		Votes:    NewVoteLedger(st, log),
		Presence: NewPresenceTracker(st, log, nil),
		Bridge:   bridge,
		done:     make(chan struct{}),
	}
	s.log = log.With().Str("component", "session").Str("session", s.ID).Logger()

	if err := s.Presence.RegisterOrRefresh(ctx, userName); err != nil {
		bridge.Close()
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(loopCtx)
	s.log.Info().Str("user", userName).Msg("session opened")
	return s, nil
}

// run drives the two periodic presence duties. Heartbeats refresh this
// session's own record; sweeps collect everyone's expired records, so
// stale entries disappear even when their owner crashed without closing.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()
	sweep := time.NewTicker(SweepInterval)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := s.Presence.RegisterOrRefresh(ctx, s.UserName); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("presence heartbeat failed")
			}
		case <-sweep.C:
			if _, err := s.Presence.CollectGarbage(ctx, time.Now(), PresenceTTL); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("presence sweep failed")
			}
		}
	}
}

// ActiveUsers lists the users currently shown in the presence panel,
// with this session's own entry marked.
func (s *Session) ActiveUsers(ctx context.Context) ([]PresenceInfo, error) {
	return s.Presence.ListRecent(ctx, time.Now(), PresenceDisplayWindow, s.UserName)
}

// Close stops the loops, best-effort deregisters presence, and detaches
// the bridge. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Presence.Deregister(ctx, s.UserName)
		s.Bridge.Close()
		s.log.Info().Msg("session closed")
	})
}
