// Package surrealdb implements the store contract on SurrealDB using the
// surrealcbor codec over a websocket connection.
//
// Each collection is one table. Collection order is a float64 seq field:
// appends extend the sequence by a fixed step and positional inserts take
// the midpoint between neighbors, renumbering the whole table when the
// gap is exhausted. Change subscriptions map onto live queries, one per
// table, fanned out to all local subscribers.
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/store"
)

// seqStep is the spacing between consecutive seq values on append. A
// wide step leaves room for many midpoint inserts before a renumber.
const seqStep = 1024

// row wraps one collection record with its ordering key and SurrealDB
// record id. The payload nests under a single field so the table schema
// stays uniform across entity types.
type row[T any] struct {
	ID     *surrealmodels.RecordID `json:"id,omitempty"`
	Seq    float64                 `json:"seq"`
	Record T                       `json:"record"`
}

// Store implements the store contract over one SurrealDB database.
type Store struct {
	db  *surrealdb.DB
	log zerolog.Logger

	notes       *collection[models.Note]
	comments    *collection[models.Comment]
	votes       *collection[models.Vote]
	attachments *collection[models.FileAttachment]
	presence    *collection[models.PresenceRecord]

	subMu   sync.Mutex
	nextSub int
	lives   map[store.CollectionName]*liveState
}

type liveState struct {
	liveID string
	subs   map[int]func()
}

// New connects to SurrealDB over websocket with the surrealcbor codec.
// The codec matters: the default marshaling mangles time.Time, which
// every record here carries.
func New(ctx context.Context, wsURL, namespace, database, username, password string, log zerolog.Logger) (*Store, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse surrealdb url: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("connect to surrealdb: %w", err)
	}

	if username != "" && password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": username,
			"pass": password,
		}); err != nil {
			return nil, fmt.Errorf("sign in: %w", err)
		}
	}
	if err := db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("use %s/%s: %w", namespace, database, err)
	}

	s := &Store{
		db:    db,
		log:   log.With().Str("component", "surrealstore").Logger(),
		lives: make(map[store.CollectionName]*liveState),
	}
	s.notes = &collection[models.Note]{store: s, table: store.CollectionNotes}
	s.comments = &collection[models.Comment]{store: s, table: store.CollectionComments}
	s.votes = &collection[models.Vote]{store: s, table: store.CollectionVotes}
	s.attachments = &collection[models.FileAttachment]{store: s, table: store.CollectionAttachments}
	s.presence = &collection[models.PresenceRecord]{store: s, table: store.CollectionPresence}
	return s, nil
}

func (s *Store) Notes() store.Collection[models.Note] { return s.notes }
func (s *Store) Comments() store.Collection[models.Comment] { return s.comments }
func (s *Store) Votes() store.Collection[models.Vote] { return s.votes }
func (s *Store) Attachments() store.Collection[models.FileAttachment] { return s.attachments }
func (s *Store) Presence() store.Collection[models.PresenceRecord] { return s.presence }

type counterRow struct {
	ID    *surrealmodels.RecordID `json:"id,omitempty"`
	Value int64                   `json:"value"`
}

// NextID atomically increments the named counter and returns its new
// value. The UPSERT creates the counter record on first use.
func (s *Store) NextID(ctx context.Context, counter store.Counter) (string, error) {
	res, err := surrealdb.Query[[]counterRow](ctx, s.db,
		"UPSERT type::thing('counters', $name) SET value += 1 RETURN AFTER",
		map[string]any{"name": string(counter)})
	if err != nil {
		return "", fmt.Errorf("increment counter %s: %w", counter, err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return "", fmt.Errorf("increment counter %s: %w", counter, store.ErrUnavailable)
	}
	return strconv.FormatInt((*res)[0].Result[0].Value, 10), nil
}

func (s *Store) ResetCounters(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, s.db, "DELETE counters", nil); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}

// Subscribe registers fn for changes on one table. The first subscriber
// of a table opens a live query; the last cancel kills it. Notifications
// include this client's own writes, matching the local backend where a
// mutation always reaches its own subscribers.
func (s *Store) Subscribe(name store.CollectionName, fn func()) (func(), error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ls, ok := s.lives[name]
	if !ok {
		ctx := context.Background()
		liveID, err := surrealdb.Live(ctx, s.db, surrealmodels.Table(name), false)
		if err != nil {
			return nil, fmt.Errorf("live query on %s: %w", name, err)
		}
		notifications, err := s.db.LiveNotifications(liveID.String())
		if err != nil {
			_ = surrealdb.Kill(ctx, s.db, liveID.String())
			return nil, fmt.Errorf("live notifications on %s: %w", name, err)
		}
		ls = &liveState{liveID: liveID.String(), subs: make(map[int]func())}
		s.lives[name] = ls
		go s.pump(name, notifications)
	}

	id := s.nextSub
	s.nextSub++
	ls.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(ls.subs, id)
			dead := len(ls.subs) == 0
			if dead {
				delete(s.lives, name)
			}
			s.subMu.Unlock()
			if dead {
				if err := surrealdb.Kill(context.Background(), s.db, ls.liveID); err != nil {
					s.log.Debug().Err(err).Str("table", string(name)).Msg("kill live query failed")
				}
			}
		})
	}, nil
}

// pump drains one table's live notification channel until Kill closes
// it, waking every current subscriber per notification.
func (s *Store) pump(name store.CollectionName, notifications chan connection.Notification) {
	for range notifications {
		s.subMu.Lock()
		ls, ok := s.lives[name]
		var fns []func()
		if ok {
			fns = make([]func(), 0, len(ls.subs))
			for _, fn := range ls.subs {
				fns = append(fns, fn)
			}
		}
		s.subMu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
	s.log.Debug().Str("table", string(name)).Msg("live query closed")
}

// Migrate is a no-op: SurrealDB creates tables implicitly on first
// insert, and the seq ordering needs no declared schema.
func (s *Store) Migrate(ctx context.Context) error { return nil }

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

type collection[T any] struct {
	store *Store
	table store.CollectionName
}

// load returns the table's rows in seq order.
func (c *collection[T]) load(ctx context.Context) ([]row[T], error) {
	res, err := surrealdb.Query[[]row[T]](ctx, c.store.db,
		"SELECT * FROM type::table($tb) ORDER BY seq ASC",
		map[string]any{"tb": string(c.table)})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.table, err)
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	return (*res)[0].Result, nil
}

func (c *collection[T]) Append(ctx context.Context, record T) (T, error) {
	rows, err := c.load(ctx)
	if err != nil {
		return record, err
	}
	seq := float64(seqStep)
	if n := len(rows); n > 0 {
		seq = rows[n-1].Seq + seqStep
	}
	_, err = surrealdb.Create[row[T]](ctx, c.store.db, string(c.table), row[T]{Seq: seq, Record: record})
	if err != nil {
		return record, fmt.Errorf("append to %s: %w", c.table, err)
	}
	return record, nil
}

func (c *collection[T]) InsertAt(ctx context.Context, index int, record T) error {
	rows, err := c.load(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index > len(rows) {
		return fmt.Errorf("insert at %d into %s of length %d: %w", index, c.table, len(rows), store.ErrIndexOutOfRange)
	}

	var seq float64
	switch {
	case len(rows) == 0:
		seq = seqStep
	case index == 0:
		seq = rows[0].Seq - seqStep
	case index == len(rows):
		seq = rows[len(rows)-1].Seq + seqStep
	default:
		seq = (rows[index-1].Seq + rows[index].Seq) / 2
		if seq <= rows[index-1].Seq || seq >= rows[index].Seq {
			// Midpoint gap exhausted: renumber and retry once.
			if err := c.renumber(ctx, rows); err != nil {
				return err
			}
			return c.InsertAt(ctx, index, record)
		}
	}

	_, err = surrealdb.Create[row[T]](ctx, c.store.db, string(c.table), row[T]{Seq: seq, Record: record})
	if err != nil {
		return fmt.Errorf("insert into %s: %w", c.table, err)
	}
	return nil
}

// renumber rewrites every row's seq back onto the step grid.
func (c *collection[T]) renumber(ctx context.Context, rows []row[T]) error {
	for i, r := range rows {
		r.Seq = float64(i+1) * seqStep
		if _, err := surrealdb.Update[row[T]](ctx, c.store.db, *r.ID, r); err != nil {
			return fmt.Errorf("renumber %s: %w", c.table, err)
		}
	}
	return nil
}

func (c *collection[T]) RemoveAt(ctx context.Context, index int) error {
	rows, err := c.load(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(rows) {
		return fmt.Errorf("remove at %d from %s of length %d: %w", index, c.table, len(rows), store.ErrIndexOutOfRange)
	}
	if _, err := surrealdb.Delete[row[T]](ctx, c.store.db, *rows[index].ID); err != nil {
		return fmt.Errorf("remove from %s: %w", c.table, err)
	}
	return nil
}

func (c *collection[T]) ReplaceAt(ctx context.Context, index int, record T) error {
	rows, err := c.load(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(rows) {
		return fmt.Errorf("replace at %d in %s of length %d: %w", index, c.table, len(rows), store.ErrIndexOutOfRange)
	}
	updated := rows[index]
	updated.Record = record
	if _, err := surrealdb.Update[row[T]](ctx, c.store.db, *rows[index].ID, updated); err != nil {
		return fmt.Errorf("replace in %s: %w", c.table, err)
	}
	return nil
}

func (c *collection[T]) Snapshot(ctx context.Context) ([]T, error) {
	rows, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.Record
	}
	return out, nil
}

func (c *collection[T]) Len(ctx context.Context) (int, error) {
	type countRow struct {
		Count int64 `json:"count"`
	}
	res, err := surrealdb.Query[[]countRow](ctx, c.store.db,
		"SELECT count() AS count FROM type::table($tb) GROUP ALL",
		map[string]any{"tb": string(c.table)})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.table, err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return 0, nil
	}
	return int((*res)[0].Result[0].Count), nil
}
