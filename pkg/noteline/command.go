package noteline

// Command is one discrete application operation selected on the command
// line. Parse produces the command, Main routes it to its App method.
type Command interface {
	// Name returns the sub-command identifier used for routing.
	Name() string
}

// RunCommand starts the HTTP server.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }

// MigrateCommand prepares the backing store's schema. Safe to run
// repeatedly; it only adds missing schema elements.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }

// SeedCommand populates an empty document with the sample outline.
type SeedCommand struct {
	// Author is recorded as the creator of the seeded notes.
	Author string
}

func (c *SeedCommand) Name() string { return "seed" }

// ExportCommand writes the whole document to a CBOR archive file.
type ExportCommand struct {
	Path string
}

func (c *ExportCommand) Name() string { return "export" }

// ImportCommand replaces the document's contents with a CBOR archive
// previously produced by export.
type ImportCommand struct {
	Path string
}

func (c *ImportCommand) Name() string { return "import" }
