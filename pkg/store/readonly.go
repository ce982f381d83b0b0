package store

import (
	"context"

	"github.com/noteline/noteline/pkg/models"
)

// ReadOnlyStore wraps a Store and rejects every mutating primitive while
// the isReadOnly probe reports true. Reads, snapshots, and subscriptions
// pass through untouched.
//
// The probe is evaluated on every call, so the application can flip in and
// out of maintenance mode at runtime without rebuilding the store. Used
// for maintenance windows and for holding a document still during archive
// export.
type ReadOnlyStore struct {
	inner      Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a read-only wrapper around a store.
func NewReadOnlyStore(inner Store, isReadOnly func() bool) *ReadOnlyStore {
	return &ReadOnlyStore{inner: inner, isReadOnly: isReadOnly}
}

// Unwrap returns the underlying store.
func (r *ReadOnlyStore) Unwrap() Store { return r.inner }

func (r *ReadOnlyStore) guard() error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

func (r *ReadOnlyStore) Notes() Collection[models.Note] {
	return guardedCollection[models.Note]{inner: r.inner.Notes(), guard: r.guard}
}

func (r *ReadOnlyStore) Comments() Collection[models.Comment] {
	return guardedCollection[models.Comment]{inner: r.inner.Comments(), guard: r.guard}
}

func (r *ReadOnlyStore) Votes() Collection[models.Vote] {
	return guardedCollection[models.Vote]{inner: r.inner.Votes(), guard: r.guard}
}

func (r *ReadOnlyStore) Attachments() Collection[models.FileAttachment] {
	return guardedCollection[models.FileAttachment]{inner: r.inner.Attachments(), guard: r.guard}
}

func (r *ReadOnlyStore) Presence() Collection[models.PresenceRecord] {
	return guardedCollection[models.PresenceRecord]{inner: r.inner.Presence(), guard: r.guard}
}

func (r *ReadOnlyStore) NextID(ctx context.Context, counter Counter) (string, error) {
	if err := r.guard(); err != nil {
		return "", err
	}
	return r.inner.NextID(ctx, counter)
}

func (r *ReadOnlyStore) ResetCounters(ctx context.Context) error {
	if err := r.guard(); err != nil {
		return err
	}
	return r.inner.ResetCounters(ctx)
}

func (r *ReadOnlyStore) Subscribe(name CollectionName, fn func()) (func(), error) {
	return r.inner.Subscribe(name, fn)
}

func (r *ReadOnlyStore) Migrate(ctx context.Context) error { return r.inner.Migrate(ctx) }
func (r *ReadOnlyStore) Close() error                      { return r.inner.Close() }

// guardedCollection applies the read-only probe to every mutating
// primitive of a single collection.
type guardedCollection[T any] struct {
	inner Collection[T]
	guard func() error
}

func (g guardedCollection[T]) Append(ctx context.Context, record T) (T, error) {
	if err := g.guard(); err != nil {
		var zero T
		return zero, err
	}
	return g.inner.Append(ctx, record)
}

func (g guardedCollection[T]) InsertAt(ctx context.Context, index int, record T) error {
	if err := g.guard(); err != nil {
		return err
	}
	return g.inner.InsertAt(ctx, index, record)
}

func (g guardedCollection[T]) RemoveAt(ctx context.Context, index int) error {
	if err := g.guard(); err != nil {
		return err
	}
	return g.inner.RemoveAt(ctx, index)
}

func (g guardedCollection[T]) ReplaceAt(ctx context.Context, index int, record T) error {
	if err := g.guard(); err != nil {
		return err
	}
	return g.inner.ReplaceAt(ctx, index, record)
}

func (g guardedCollection[T]) Snapshot(ctx context.Context) ([]T, error) {
	return g.inner.Snapshot(ctx)
}

func (g guardedCollection[T]) Len(ctx context.Context) (int, error) {
	return g.inner.Len(ctx)
}
