// Package store defines the contract between the outline core and the
// replicated storage substrate.
//
// The substrate is assumed to provide flat, insertion-ordered collections
// with safe concurrent insert-at-index and remove-at-index primitives,
// shared monotonically increasing counters, and no-payload change
// notifications delivered to every replica. The core never sees the
// replication or merge machinery itself; it only issues ordered-collection
// calls through [Store] and reacts to change signals.
//
// Three backends implement the contract:
//
//   - [github.com/noteline/noteline/pkg/store/memory.Store]: mutex-guarded
//     slices with local fan-out notifications; the reference semantics used
//     by tests and single-replica runs.
//   - [github.com/noteline/noteline/pkg/store/surrealdb.Store]: one
//     SurrealDB table per collection, ordered by a sequence field, with
//     change notifications driven by live queries.
//   - [github.com/noteline/noteline/pkg/store/postgres.Store]: GORM-backed
//     tables for durable single-replica deployments.
//
// Snapshot semantics: Snapshot returns a point-in-time copy; iterating it
// is safe even while the underlying collection mutates concurrently.
// Indices passed to InsertAt, RemoveAt, and ReplaceAt refer to the
// collection as it is at call time, which under concurrent remote edits
// may already differ from the snapshot the caller derived them from. The
// core re-snapshots before acting to keep that window small; it cannot be
// closed entirely.
package store

import (
	"context"
	"errors"

	"github.com/noteline/noteline/pkg/models"
)

// ErrUnavailable is returned when the backing replicated store is not
// connected. Callers treat it as fatal for the session rather than
// retrying; reconnection belongs to the connection layer, not the core.
var ErrUnavailable = errors.New("store: replicated store unavailable")

// ErrIndexOutOfRange is returned by positional primitives when the index
// no longer resolves, typically because a concurrent remote edit shifted
// the collection. Garbage-collection paths tolerate it as a no-op.
var ErrIndexOutOfRange = errors.New("store: index out of range")

// ErrReadOnly is returned by mutating primitives while the document is
// held read-only, for instance during maintenance or archive export.
var ErrReadOnly = errors.New("store: document is read-only")

// CollectionName identifies one of the five document collections for
// subscription purposes.
type CollectionName string

const (
	CollectionNotes       CollectionName = "notes"
	CollectionComments    CollectionName = "comments"
	CollectionVotes       CollectionName = "votes"
	CollectionAttachments CollectionName = "file_attachments"
	CollectionPresence    CollectionName = "presence"
)

// AllCollections lists every collection name, in document order.
func AllCollections() []CollectionName {
	return []CollectionName{
		CollectionNotes,
		CollectionComments,
		CollectionVotes,
		CollectionAttachments,
		CollectionPresence,
	}
}

// Counter names one of the shared id counters in the document root.
type Counter string

const (
	CounterNote     Counter = "lastNoteId"
	CounterComment  Counter = "lastCommentId"
	CounterVote     Counter = "lastVoteId"
	CounterUser     Counter = "lastUserId"
	CounterFile     Counter = "lastFileId"
)

// AllCounters lists every counter name.
func AllCounters() []Counter {
	return []Counter{CounterNote, CounterComment, CounterVote, CounterUser, CounterFile}
}

// Collection is one flat, insertion-ordered collection of records.
//
// All mutating primitives are assumed to be serialized individually by the
// substrate across replicas; no batching or transaction spans more than
// one call. Get-style reads go through Snapshot; there is deliberately no
// random-access read, mirroring the substrate's array model.
type Collection[T any] interface {
	// Append adds a record at the end of the collection and returns it.
	Append(ctx context.Context, record T) (T, error)

	// InsertAt places a record at the given index, shifting later records
	// up by one. The index must be in [0, Len].
	InsertAt(ctx context.Context, index int, record T) error

	// RemoveAt deletes the record at the given index, shifting later
	// records down by one. Returns ErrIndexOutOfRange if the index no
	// longer resolves.
	RemoveAt(ctx context.Context, index int) error

	// ReplaceAt swaps the record at the given index for a new one without
	// changing its position. Used instead of in-place field mutation
	// because the substrate may relocate records on write.
	ReplaceAt(ctx context.Context, index int, record T) error

	// Snapshot returns a point-in-time copy of the collection, in order.
	Snapshot(ctx context.Context) ([]T, error)

	// Len reports the current number of records.
	Len(ctx context.Context) (int, error)
}

// Store is the Entity Store Adapter: the single funnel through which the
// outline core reads and mutates the replicated document.
type Store interface {
	Notes() Collection[models.Note]
	Comments() Collection[models.Comment]
	Votes() Collection[models.Vote]
	Attachments() Collection[models.FileAttachment]
	Presence() Collection[models.PresenceRecord]

	// NextID atomically increments the named shared counter and returns
	// the new value rendered as a decimal string. The counter is itself a
	// replicated value, so concurrent increments from independent replicas
	// may in rare cases allocate the same value before the increment has
	// propagated; the document accepts that gap rather than solving it
	// here.
	NextID(ctx context.Context, counter Counter) (string, error)

	// ResetCounters sets every id counter back to zero. Only the
	// clear-all path uses it.
	ResetCounters(ctx context.Context) error

	// Subscribe registers a callback invoked whenever the named collection
	// changes, locally or on a remote replica. The signal carries no
	// payload; consumers re-snapshot. The returned cancel func detaches
	// the subscription and is safe to call more than once.
	Subscribe(name CollectionName, fn func()) (cancel func(), err error)

	// Migrate initializes whatever schema the backend needs. Idempotent.
	Migrate(ctx context.Context) error

	// Close releases the backing connection. The store is unusable
	// afterwards; subsequent calls surface ErrUnavailable.
	Close() error
}
