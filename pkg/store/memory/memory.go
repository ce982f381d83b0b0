// Package memory implements the [store.Store] contract in process memory.
//
// It is the reference implementation of the substrate's ordered-collection
// semantics: every primitive is serialized under a single mutex, snapshots
// are copies, and change notifications fan out to local subscribers after
// the mutation has been applied. Tests and single-replica deployments use
// it directly; the SurrealDB and PostgreSQL backends are expected to match
// its observable behavior.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/store"
)

// Store holds the five document collections and the id counters behind a
// single mutex. Notifications run synchronously after each mutation, on
// the mutating goroutine, with the mutex released.
type Store struct {
	mu     sync.Mutex
	closed bool

	notes       *collection[models.Note]
	comments    *collection[models.Comment]
	votes       *collection[models.Vote]
	attachments *collection[models.FileAttachment]
	presence    *collection[models.PresenceRecord]

	counters map[store.Counter]int64

	subMu   sync.Mutex
	nextSub int
	subs    map[store.CollectionName]map[int]func()
}

// New creates an empty in-memory store.
func New() *Store {
	s := &Store{
		counters: make(map[store.Counter]int64),
		subs:     make(map[store.CollectionName]map[int]func()),
	}
	s.notes = newCollection[models.Note](s, store.CollectionNotes)
	s.comments = newCollection[models.Comment](s, store.CollectionComments)
	s.votes = newCollection[models.Vote](s, store.CollectionVotes)
	s.attachments = newCollection[models.FileAttachment](s, store.CollectionAttachments)
	s.presence = newCollection[models.PresenceRecord](s, store.CollectionPresence)
	return s
}

func (s *Store) Notes() store.Collection[models.Note] { return s.notes }
func (s *Store) Comments() store.Collection[models.Comment] { return s.comments }
func (s *Store) Votes() store.Collection[models.Vote] { return s.votes }
func (s *Store) Attachments() store.Collection[models.FileAttachment] { return s.attachments }
func (s *Store) Presence() store.Collection[models.PresenceRecord] { return s.presence }

func (s *Store) NextID(ctx context.Context, counter store.Counter) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", store.ErrUnavailable
	}
	s.counters[counter]++
	return strconv.FormatInt(s.counters[counter], 10), nil
}

func (s *Store) ResetCounters(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrUnavailable
	}
	for _, c := range store.AllCounters() {
		s.counters[c] = 0
	}
	return nil
}

func (s *Store) Subscribe(name store.CollectionName, fn func()) (func(), error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	if s.subs[name] == nil {
		s.subs[name] = make(map[int]func())
	}
	s.subs[name][id] = fn
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs[name], id)
			s.subMu.Unlock()
		})
	}
	return cancel, nil
}

// Migrate is a no-op: there is no schema to prepare in memory.
func (s *Store) Migrate(ctx context.Context) error { return nil }

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Store) notify(name store.CollectionName) {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs[name]))
	for _, fn := range s.subs[name] {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// collection is one ordered slice guarded by the parent store's mutex.
type collection[T any] struct {
	parent  *Store
	name    store.CollectionName
	records []T
}

func newCollection[T any](parent *Store, name store.CollectionName) *collection[T] {
	return &collection[T]{parent: parent, name: name}
}

func (c *collection[T]) Append(ctx context.Context, record T) (T, error) {
	c.parent.mu.Lock()
	if c.parent.closed {
		c.parent.mu.Unlock()
		var zero T
		return zero, store.ErrUnavailable
	}
	c.records = append(c.records, record)
	c.parent.mu.Unlock()
	c.parent.notify(c.name)
	return record, nil
}

func (c *collection[T]) InsertAt(ctx context.Context, index int, record T) error {
	c.parent.mu.Lock()
	if c.parent.closed {
		c.parent.mu.Unlock()
		return store.ErrUnavailable
	}
	if index < 0 || index > len(c.records) {
		c.parent.mu.Unlock()
		return store.ErrIndexOutOfRange
	}
	c.records = append(c.records, record)
	copy(c.records[index+1:], c.records[index:])
	c.records[index] = record
	c.parent.mu.Unlock()
	c.parent.notify(c.name)
	return nil
}

func (c *collection[T]) RemoveAt(ctx context.Context, index int) error {
	c.parent.mu.Lock()
	if c.parent.closed {
		c.parent.mu.Unlock()
		return store.ErrUnavailable
	}
	if index < 0 || index >= len(c.records) {
		c.parent.mu.Unlock()
		return store.ErrIndexOutOfRange
	}
	c.records = append(c.records[:index], c.records[index+1:]...)
	c.parent.mu.Unlock()
	c.parent.notify(c.name)
	return nil
}

func (c *collection[T]) ReplaceAt(ctx context.Context, index int, record T) error {
	c.parent.mu.Lock()
	if c.parent.closed {
		c.parent.mu.Unlock()
		return store.ErrUnavailable
	}
	if index < 0 || index >= len(c.records) {
		c.parent.mu.Unlock()
		return store.ErrIndexOutOfRange
	}
	c.records[index] = record
	c.parent.mu.Unlock()
	c.parent.notify(c.name)
	return nil
}

func (c *collection[T]) Snapshot(ctx context.Context) ([]T, error) {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	if c.parent.closed {
		return nil, store.ErrUnavailable
	}
	out := make([]T, len(c.records))
	copy(out, c.records)
	return out, nil
}

func (c *collection[T]) Len(ctx context.Context) (int, error) {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	if c.parent.closed {
		return 0, store.ErrUnavailable
	}
	return len(c.records), nil
}
