package noteline

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/noteline/noteline/pkg/outline"
	"github.com/noteline/noteline/pkg/store"
	"github.com/noteline/noteline/pkg/store/memory"
	"github.com/noteline/noteline/pkg/store/postgres"
	"github.com/noteline/noteline/pkg/store/surrealdb"
)

// Config selects the backing store and server behavior. Defaults come
// from the environment so containerized deployments need no flags.
type Config struct {
	PostgresDSN   string
	SurrealDBURL  string
	SurrealDBNS   string
	SurrealDBDB   string
	SurrealDBUser string
	SurrealDBPass string

	// MemoryOnly runs against the in-process store, useful for demos
	// and tests. PostgresOnly forces the GORM backend; the default is
	// SurrealDB, whose live queries carry remote change notifications.
	MemoryOnly   bool
	PostgresOnly bool

	// ReadOnly starts the document in maintenance mode; every mutation
	// is rejected until toggled at runtime.
	ReadOnly bool

	ServerPort string
}

// App owns the store and the outline components built over it.
type App struct {
	store    store.Store
	config   *Config
	log      zerolog.Logger
	readOnly bool

	engine   *outline.Engine
	votes    *outline.VoteLedger
	presence *outline.PresenceTracker
}

// New connects the configured backend and wraps it with the read-only
// guard before any component sees it.
func New(ctx context.Context, config *Config, log zerolog.Logger) (*App, error) {
	var (
		backing store.Store
		err     error
	)
	switch {
	case config.MemoryOnly:
		backing = memory.New()
		log.Info().Msg("using in-memory store")
	case config.PostgresOnly:
		backing, err = postgres.New(config.PostgresDSN, log)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		log.Info().Msg("connected to PostgreSQL")
	default:
		backing, err = surrealdb.New(ctx,
			config.SurrealDBURL,
			config.SurrealDBNS,
			config.SurrealDBDB,
			config.SurrealDBUser,
			config.SurrealDBPass,
			log,
		)
		if err != nil {
			return nil, fmt.Errorf("connect to surrealdb: %w", err)
		}
		log.Info().Str("url", config.SurrealDBURL).Msg("connected to SurrealDB")
	}

	app := &App{
		config:   config,
		log:      log,
		readOnly: config.ReadOnly,
	}
	app.store = store.NewReadOnlyStore(backing, app.IsReadOnly)
	app.engine = outline.NewEngine(app.store, log, nil)
	app.votes = outline.NewVoteLedger(app.store, log)
	app.presence = outline.NewPresenceTracker(app.store, log, nil)
	return app, nil
}

func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *App) Store() store.Store { return a.store }

// SetReadOnly flips maintenance mode at runtime.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly = readOnly
	a.log.Info().Bool("readOnly", readOnly).Msg("read-only mode changed")
}

func (a *App) IsReadOnly() bool { return a.readOnly }

// Migrate prepares the backend's schema. A no-op for the memory and
// SurrealDB backends.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	return a.store.Migrate(ctx)
}

// Seed creates the starter outline when the document is empty. Running
// against a populated document is a no-op, so every instance of a
// scaled-out deployment can call it on boot.
func (a *App) Seed(ctx context.Context, cmd *SeedCommand) error {
	n, err := a.store.Notes().Len(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.Info().Int("notes", n).Msg("document already populated, skipping seed")
		return nil
	}
	return a.engine.SeedSampleOutline(ctx, cmd.Author)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
