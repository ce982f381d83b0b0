package noteline

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/store"
)

// Archive is the on-disk document snapshot: every collection in order,
// tagged with the schema version so an importer can refuse archives it
// does not understand.
type Archive struct {
	SchemaVersion string                  `cbor:"schemaVersion"`
	ExportedAt    time.Time               `cbor:"exportedAt"`
	Notes         []models.Note           `cbor:"notes"`
	Comments      []models.Comment        `cbor:"comments"`
	Votes         []models.Vote           `cbor:"votes"`
	Attachments   []models.FileAttachment `cbor:"fileAttachments"`
}

// Export writes the document to a CBOR archive. Presence is transient
// and deliberately left out. The document is held read-only for the
// duration so the collections snapshot consistently relative to each
// other.
func (a *App) Export(ctx context.Context, cmd *ExportCommand) error {
	wasReadOnly := a.IsReadOnly()
	a.SetReadOnly(true)
	defer a.SetReadOnly(wasReadOnly)

	archive := Archive{
		SchemaVersion: models.SchemaVersion,
		ExportedAt:    time.Now().UTC(),
	}
	var err error
	if archive.Notes, err = a.store.Notes().Snapshot(ctx); err != nil {
		return err
	}
	if archive.Comments, err = a.store.Comments().Snapshot(ctx); err != nil {
		return err
	}
	if archive.Votes, err = a.store.Votes().Snapshot(ctx); err != nil {
		return err
	}
	if archive.Attachments, err = a.store.Attachments().Snapshot(ctx); err != nil {
		return err
	}

	file, err := os.Create(cmd.Path)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", cmd.Path, err)
	}
	defer file.Close()

	if err := cbor.NewEncoder(file).Encode(archive); err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	a.log.Info().Str("path", cmd.Path).
		Int("notes", len(archive.Notes)).
		Int("comments", len(archive.Comments)).
		Msg("exported document")
	return nil
}

// Import replaces the document's contents with an archive. The existing
// document is cleared first; the two steps are not atomic, so run this
// against a quiesced instance.
func (a *App) Import(ctx context.Context, cmd *ImportCommand) error {
	file, err := os.Open(cmd.Path)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", cmd.Path, err)
	}
	defer file.Close()

	var archive Archive
	if err := cbor.NewDecoder(file).Decode(&archive); err != nil {
		return fmt.Errorf("decode archive: %w", err)
	}
	if archive.SchemaVersion != models.SchemaVersion {
		return fmt.Errorf("archive schema %q does not match %q", archive.SchemaVersion, models.SchemaVersion)
	}

	if err := a.engine.ClearAll(ctx); err != nil {
		return err
	}
	for _, n := range archive.Notes {
		if _, err := a.store.Notes().Append(ctx, n); err != nil {
			return fmt.Errorf("restore note %s: %w", n.ID, err)
		}
	}
	for _, c := range archive.Comments {
		if _, err := a.store.Comments().Append(ctx, c); err != nil {
			return fmt.Errorf("restore comment %s: %w", c.ID, err)
		}
	}
	for _, v := range archive.Votes {
		if _, err := a.store.Votes().Append(ctx, v); err != nil {
			return fmt.Errorf("restore vote %s: %w", v.ID, err)
		}
	}
	for _, f := range archive.Attachments {
		if _, err := a.store.Attachments().Append(ctx, f); err != nil {
			return fmt.Errorf("restore attachment %s: %w", f.ID, err)
		}
	}

	if err := a.restoreCounters(ctx, archive); err != nil {
		return err
	}
	a.log.Info().Str("path", cmd.Path).
		Int("notes", len(archive.Notes)).
		Msg("imported document")
	return nil
}

// restoreCounters advances each id counter past the highest restored id
// so new records never collide with imported ones. The counter contract
// only exposes increment, so each counter is stepped until it clears
// its collection's maximum.
func (a *App) restoreCounters(ctx context.Context, archive Archive) error {
	targets := map[store.Counter]int{
		store.CounterNote:    0,
		store.CounterComment: 0,
		store.CounterVote:    0,
		store.CounterFile:    0,
	}
	for _, n := range archive.Notes {
		bumpTarget(targets, store.CounterNote, n.ID.String())
	}
	for _, c := range archive.Comments {
		bumpTarget(targets, store.CounterComment, c.ID.String())
	}
	for _, v := range archive.Votes {
		bumpTarget(targets, store.CounterVote, v.ID.String())
	}
	for _, f := range archive.Attachments {
		bumpTarget(targets, store.CounterFile, f.ID.String())
	}

	for counter, max := range targets {
		for max > 0 {
			id, err := a.store.NextID(ctx, counter)
			if err != nil {
				return fmt.Errorf("advance counter %s: %w", counter, err)
			}
			if v, err := strconv.Atoi(id); err == nil && v >= max {
				break
			}
		}
	}
	return nil
}

func bumpTarget(targets map[store.Counter]int, counter store.Counter, id string) {
	if v, err := strconv.Atoi(id); err == nil && v > targets[counter] {
		targets[counter] = v
	}
}
