package outline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noteline/noteline/pkg/store"
)

// DebounceWindow is how long the bridge coalesces change bursts before
// rebuilding the outline view and notifying observers.
const DebounceWindow = 50 * time.Millisecond

// Observer receives the rebuilt outline after the store changed and the
// debounce window elapsed. Callbacks run on the bridge's timer goroutine
// and must not block.
type Observer func(entries []OutlineEntry)

// Bridge subscribes to every collection of the store and fans changes out
// to observers, debounced so a burst of mutations (a cascade delete, an
// import) produces one rebuild instead of one per record.
type Bridge struct {
	store store.Store
	log   zerolog.Logger

	mu        sync.Mutex
	timer     *time.Timer
	observers map[int]Observer
	nextObs   int
	cancels   []func()
	closed    bool
}

// NewBridge wires subscriptions to all collections of the store. Call
// Close to detach them.
func NewBridge(st store.Store, log zerolog.Logger) (*Bridge, error) {
	b := &Bridge{
		store:     st,
		log:       log.With().Str("component", "bridge").Logger(),
		observers: make(map[int]Observer),
	}
	for _, name := range store.AllCollections() {
		cancel, err := st.Subscribe(name, b.changed)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.cancels = append(b.cancels, cancel)
	}
	return b, nil
}

// AddObserver registers an observer and returns its removal function.
func (b *Bridge) AddObserver(fn Observer) (remove func()) {
	b.mu.Lock()
	id := b.nextObs
	b.nextObs++
	b.observers[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.observers, id)
		b.mu.Unlock()
	}
}

// changed is the subscription callback. Each change restarts the
// debounce timer, so the flush fires once the store has been quiet for
// a full window.
func (b *Bridge) changed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(DebounceWindow, b.flush)
}

func (b *Bridge) flush() {
	entries, err := NewEngine(b.store, b.log, nil).HierarchyView(context.Background())
	if err != nil {
		b.log.Warn().Err(err).Msg("rebuild after change failed")
		return
	}
	b.mu.Lock()
	fns := make([]Observer, 0, len(b.observers))
	for _, fn := range b.observers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(entries)
	}
}

// Close detaches the store subscriptions and stops any pending flush.
// Observers receive nothing after Close returns.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.observers = map[int]Observer{}
	cancels := b.cancels
	b.cancels = nil
	b.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
