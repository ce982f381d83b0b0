package noteline

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Main is the full application entry point: parse, connect, dispatch.
// cmd/noteline wraps it with signal handling.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("parse configuration: %w", err)
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	app, err := New(ctx, config, log)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *MigrateCommand:
		if err := app.Migrate(ctx, c); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *SeedCommand:
		if err := app.Seed(ctx, c); err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}
	case *ExportCommand:
		if err := app.Export(ctx, c); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
	case *ImportCommand:
		if err := app.Import(ctx, c); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
	return nil
}
