// Package postgres implements the store contract on PostgreSQL using
// GORM. Each collection is a table of (seq, payload) rows, the payload
// being the JSON-encoded record; ordering uses the same float64 seq key
// as the SurrealDB backend so the two stay interchangeable.
//
// Change subscriptions fan out to subscribers within this process only.
// Cross-process delivery would need LISTEN/NOTIFY plumbing and is left
// to the SurrealDB backend, which has live queries natively.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/store"
)

const seqStep = 1024

// rowModel is the shared table shape for all five collections. GORM
// derives the table name per collection via Table().
type rowModel struct {
	ID      uint    `gorm:"primaryKey"`
	Seq     float64 `gorm:"index"`
	Payload []byte  `gorm:"type:jsonb"`
}

type counterModel struct {
	Name  string `gorm:"primaryKey"`
	Value int64
}

func (counterModel) TableName() string { return "counters" }

// Store implements the store contract over one PostgreSQL database.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger

	notes       *collection[models.Note]
	comments    *collection[models.Comment]
	votes       *collection[models.Vote]
	attachments *collection[models.FileAttachment]
	presence    *collection[models.PresenceRecord]

	subMu   sync.Mutex
	nextSub int
	subs    map[store.CollectionName]map[int]func()
}

// New opens a PostgreSQL store from a DSN. Schema setup is deferred to
// Migrate.
func New(dsn string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{
		db:   db,
		log:  log.With().Str("component", "pgstore").Logger(),
		subs: make(map[store.CollectionName]map[int]func()),
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

// NextID increments the named counter under a row lock so two sessions
// never mint the same id.
func (s *Store) NextID(ctx context.Context, counter store.Counter) (string, error) {
	var value int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row counterModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(counterModel{Name: string(counter)}).
			FirstOrCreate(&row).Error
		if err != nil {
			return err
		}
		row.Value++
		value = row.Value
		return tx.Save(&row).Error
	})
	if err != nil {
		return "", fmt.Errorf("increment counter %s: %w", counter, err)
	}
	return fmt.Sprintf("%d", value), nil
}

func (s *Store) ResetCounters(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&counterModel{}).Error; err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}

func (s *Store) Subscribe(name store.CollectionName, fn func()) (func(), error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs[name] == nil {
		s.subs[name] = make(map[int]func())
	}
	id := s.nextSub
	s.nextSub++
	s.subs[name][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs[name], id)
			s.subMu.Unlock()
		})
	}, nil
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

// Migrate creates the collection and counter tables. AutoMigrate only
// adds schema elements, so running it on every start is safe.
func (s *Store) Migrate(ctx context.Context) error {
	for _, name := range store.AllCollections() {
		if err := s.db.WithContext(ctx).Table(string(name)).AutoMigrate(&rowModel{}); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return s.db.WithContext(ctx).AutoMigrate(&counterModel{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type collection[T any] struct {
	store *Store
	table store.CollectionName
}

func (c *collection[T]) tx(ctx context.Context) *gorm.DB {
	return c.store.db.WithContext(ctx).Table(string(c.table))
}

func (c *collection[T]) load(ctx context.Context) ([]rowModel, error) {
	var rows []rowModel
	if err := c.tx(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load %s: %w", c.table, err)
	}
	return rows, nil
}

func (c *collection[T]) Append(ctx context.Context, record T) (T, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return record, fmt.Errorf("encode %s record: %w", c.table, err)
	}
	rows, err := c.load(ctx)
	if err != nil {
		return record, err
	}
	seq := float64(seqStep)
	if n := len(rows); n > 0 {
		seq = rows[n-1].Seq + seqStep
	}
	if err := c.tx(ctx).Create(&rowModel{Seq: seq, Payload: payload}).Error; err != nil {
		return record, fmt.Errorf("append to %s: %w", c.table, err)
	}
	c.store.notify(c.table)
	return record, nil
}

func (c *collection[T]) InsertAt(ctx context.Context, index int, record T) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", c.table, err)
	}
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
			if err := c.renumber(ctx, rows); err != nil {
				return err
			}
			return c.InsertAt(ctx, index, record)
		}
	}

	if err := c.tx(ctx).Create(&rowModel{Seq: seq, Payload: payload}).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", c.table, err)
	}
	c.store.notify(c.table)
	return nil
}

func (c *collection[T]) renumber(ctx context.Context, rows []rowModel) error {
	for i := range rows {
		rows[i].Seq = float64(i+1) * seqStep
		if err := c.tx(ctx).Where("id = ?", rows[i].ID).Update("seq", rows[i].Seq).Error; err != nil {
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
	if err := c.tx(ctx).Where("id = ?", rows[index].ID).Delete(&rowModel{}).Error; err != nil {
		return fmt.Errorf("remove from %s: %w", c.table, err)
	}
	c.store.notify(c.table)
	return nil
}

func (c *collection[T]) ReplaceAt(ctx context.Context, index int, record T) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", c.table, err)
	}
	rows, err := c.load(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(rows) {
		return fmt.Errorf("replace at %d in %s of length %d: %w", index, c.table, len(rows), store.ErrIndexOutOfRange)
	}
	if err := c.tx(ctx).Where("id = ?", rows[index].ID).Update("payload", payload).Error; err != nil {
		return fmt.Errorf("replace in %s: %w", c.table, err)
	}
	c.store.notify(c.table)
	return nil
}

func (c *collection[T]) Snapshot(ctx context.Context) ([]T, error) {
	rows, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		if err := json.Unmarshal(r.Payload, &out[i]); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", c.table, err)
		}
	}
	return out, nil
}

func (c *collection[T]) Len(ctx context.Context) (int, error) {
	var count int64
	if err := c.tx(ctx).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", c.table, err)
	}
	return int(count), nil
}
