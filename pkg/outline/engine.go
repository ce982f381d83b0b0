package outline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/store"
)

// Engine orchestrates note creation, cascading deletion, and reordering,
// plus the comment and attachment operations tied to a note's lifecycle.
// Every mutation funnels through the store adapter; the engine holds no
// collection state of its own and re-snapshots before acting, so a
// snapshot never outlives one logical operation.
//
// Precondition checks run before the first store call: an operation either
// applies its full sequence of store calls or is abandoned untouched.
// There is no cancellation once the first call has been issued.
type Engine struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewEngine creates an engine over the given store. The clock is
// injectable for tests; pass nil for time.Now.
func NewEngine(st store.Store, log zerolog.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: st, log: log.With().Str("component", "engine").Logger(), now: now}
}

// Store returns the underlying store adapter.
func (e *Engine) Store() store.Store { return e.store }

// CreateNote appends a new note. For a child note the stored level is
// min(parent level+1, MaxNoteLevel). A non-empty parent id that does not
// resolve is a data error on this user-initiated path and fails loudly
// with ErrNotFound, unlike the hierarchy read path which promotes orphans
// to root.
func (e *Engine) CreateNote(ctx context.Context, title, content, authorID string, parentID models.NoteID) (models.Note, error) {
	level := 0
	if !parentID.IsZero() {
		_, parent, err := findNote(ctx, e.store, parentID)
		if err != nil {
			return models.Note{}, fmt.Errorf("resolve parent %s: %w", parentID, err)
		}
		level = parent.Level + 1
		if level > models.MaxNoteLevel {
			level = models.MaxNoteLevel
		}
	}

	id, err := e.store.NextID(ctx, store.CounterNote)
	if err != nil {
		return models.Note{}, err
	}
	note := models.Note{
		ID:        models.NoteID(id),
		Title:     title,
		Content:   content,
		Author:    authorID,
		Timestamp: e.now(),
		Votes:     0,
		ParentID:  parentID,
		Level:     level,
	}
	if _, err := e.store.Notes().Append(ctx, note); err != nil {
		return models.Note{}, err
	}
	e.log.Info().Str("note", id).Str("author", authorID).Int("level", level).Msg("created note")
	return note, nil
}

// DeleteNote removes a note together with its whole descendant subtree
// and every comment, vote, and attachment keyed to any note in that set.
//
// Only the note's author may delete it. On success the related
// collections are cleaned first, then the notes themselves are removed
// deepest descendants first, root note last: remote readers observing
// intermediate states see at worst a child whose related data is already
// gone, never a child whose parent vanished while comments still dangle.
func (e *Engine) DeleteNote(ctx context.Context, noteID models.NoteID, requesterID string) error {
	notes, err := e.store.Notes().Snapshot(ctx)
	if err != nil {
		return err
	}
	var target *models.Note
	for i := range notes {
		if notes[i].ID == noteID {
			target = &notes[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("delete note %s: %w", noteID, ErrNotFound)
	}
	if target.Author != requesterID {
		return fmt.Errorf("delete note %s: author is %q: %w", noteID, target.Author, ErrForbidden)
	}

	// One adjacency map for the whole cascade instead of a re-snapshot
	// per recursion level.
	children := make(map[models.NoteID][]models.NoteID, len(notes))
	for _, n := range notes {
		if !n.IsRoot() {
			children[n.ParentID] = append(children[n.ParentID], n.ID)
		}
	}

	// Breadth-first collection; reversing it gives the deepest-first
	// deletion order with the root last. The seen set guards against
	// parent cycles, which the read path tolerates by promoting to root.
	doomed := []models.NoteID{noteID}
	doomedSet := map[models.NoteID]bool{noteID: true}
	for i := 0; i < len(doomed); i++ {
		for _, child := range children[doomed[i]] {
			if !doomedSet[child] {
				doomedSet[child] = true
				doomed = append(doomed, child)
			}
		}
	}

	if err := e.removeRelatedData(ctx, doomedSet); err != nil {
		return err
	}

	for i := len(doomed) - 1; i >= 0; i-- {
		if err := removeNoteByID(ctx, e.store, doomed[i]); err != nil {
			return err
		}
	}

	e.log.Info().Str("note", noteID.String()).Int("descendants", len(doomed)-1).Msg("deleted note subtree")
	return nil
}

// removeRelatedData clears comments, votes, and attachments referencing
// any doomed note. Each collection is swept in a single reverse pass so
// removals do not invalidate the remaining indices of that snapshot.
func (e *Engine) removeRelatedData(ctx context.Context, doomed map[models.NoteID]bool) error {
	comments, err := e.store.Comments().Snapshot(ctx)
	if err != nil {
		return err
	}
	for i := len(comments) - 1; i >= 0; i-- {
		if doomed[comments[i].NoteID] {
			if err := e.store.Comments().RemoveAt(ctx, i); err != nil {
				return fmt.Errorf("remove comment %s: %w", comments[i].ID, err)
			}
		}
	}

	votes, err := e.store.Votes().Snapshot(ctx)
	if err != nil {
		return err
	}
	for i := len(votes) - 1; i >= 0; i-- {
		if doomed[votes[i].NoteID] {
			if err := e.store.Votes().RemoveAt(ctx, i); err != nil {
				return fmt.Errorf("remove vote %s: %w", votes[i].ID, err)
			}
		}
	}

	attachments, err := e.store.Attachments().Snapshot(ctx)
	if err != nil {
		return err
	}
	for i := len(attachments) - 1; i >= 0; i-- {
		if doomed[attachments[i].NoteID] {
			if err := e.store.Attachments().RemoveAt(ctx, i); err != nil {
				return fmt.Errorf("remove attachment %s: %w", attachments[i].ID, err)
			}
		}
	}
	return nil
}

// ReorderNote moves the dragged note to sit immediately above or below
// the target note in collection order. It is a sibling-order operation
// only: ParentID and Level are never rewritten, even when the drop lands
// the note among records with a different parent.
//
// No-op when dragged and target are the same note or either id does not
// resolve. The re-inserted record carries identical field values; the
// store may not support in-place relocation, hence remove-then-insert.
func (e *Engine) ReorderNote(ctx context.Context, draggedID, targetID models.NoteID, dropAbove bool) error {
	if draggedID == targetID {
		return nil
	}
	notes, err := e.store.Notes().Snapshot(ctx)
	if err != nil {
		return err
	}
	draggedIdx, targetIdx := -1, -1
	for i := range notes {
		switch notes[i].ID {
		case draggedID:
			draggedIdx = i
		case targetID:
			targetIdx = i
		}
	}
	if draggedIdx == -1 || targetIdx == -1 {
		return nil
	}
	dragged := notes[draggedIdx]

	if err := e.store.Notes().RemoveAt(ctx, draggedIdx); err != nil {
		return err
	}

	// The target's effective index shifts down by one once the dragged
	// record, which preceded it, is gone.
	newIdx := targetIdx
	if draggedIdx < targetIdx {
		newIdx--
	}
	if !dropAbove {
		newIdx++
	}
	if newIdx < 0 {
		newIdx = 0
	}
	if max := len(notes) - 1; newIdx > max {
		newIdx = max
	}

	if err := e.store.Notes().InsertAt(ctx, newIdx, dragged); err != nil {
		return err
	}
	e.log.Debug().Str("note", draggedID.String()).Int("index", newIdx).Msg("reordered note")
	return nil
}

// AddComment appends a comment to an existing note.
func (e *Engine) AddComment(ctx context.Context, noteID models.NoteID, content, authorID string) (models.Comment, error) {
	if _, _, err := findNote(ctx, e.store, noteID); err != nil {
		return models.Comment{}, err
	}
	id, err := e.store.NextID(ctx, store.CounterComment)
	if err != nil {
		return models.Comment{}, err
	}
	comment := models.Comment{
		ID:        models.CommentID(id),
		NoteID:    noteID,
		Content:   content,
		Author:    authorID,
		Timestamp: e.now(),
	}
	if _, err := e.store.Comments().Append(ctx, comment); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

// ListComments returns the note's comments ordered oldest first.
func (e *Engine) ListComments(ctx context.Context, noteID models.NoteID) ([]models.Comment, error) {
	comments, err := e.store.Comments().Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Comment, 0)
	for _, c := range comments {
		if c.NoteID == noteID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// GetCommentCount reports how many comments reference the note.
func (e *Engine) GetCommentCount(ctx context.Context, noteID models.NoteID) (int, error) {
	comments, err := e.store.Comments().Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range comments {
		if c.NoteID == noteID {
			n++
		}
	}
	return n, nil
}

// AddFileAttachment attaches an opaque payload to an existing note. The
// size bound is checked before any store call.
func (e *Engine) AddFileAttachment(ctx context.Context, noteID models.NoteID, fileName, fileType string, fileSize int64, fileData, uploaderID string) (models.FileAttachment, error) {
	if fileSize > models.MaxAttachmentSize {
		return models.FileAttachment{}, fmt.Errorf("%q is %d bytes: %w", fileName, fileSize, ErrAttachmentTooLarge)
	}
	if _, _, err := findNote(ctx, e.store, noteID); err != nil {
		return models.FileAttachment{}, err
	}
	id, err := e.store.NextID(ctx, store.CounterFile)
	if err != nil {
		return models.FileAttachment{}, err
	}
	attachment := models.FileAttachment{
		ID:         models.FileID(id),
		NoteID:     noteID,
		FileName:   fileName,
		FileType:   fileType,
		FileSize:   fileSize,
		FileData:   fileData,
		UploadedBy: uploaderID,
		UploadedAt: e.now(),
	}
	if _, err := e.store.Attachments().Append(ctx, attachment); err != nil {
		return models.FileAttachment{}, err
	}
	e.log.Info().Str("note", noteID.String()).Str("file", fileName).Int64("size", fileSize).Msg("attached file")
	return attachment, nil
}

// GetFileAttachments returns the note's attachments in collection order.
func (e *Engine) GetFileAttachments(ctx context.Context, noteID models.NoteID) ([]models.FileAttachment, error) {
	attachments, err := e.store.Attachments().Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.FileAttachment, 0)
	for _, a := range attachments {
		if a.NoteID == noteID {
			out = append(out, a)
		}
	}
	return out, nil
}

// DeleteFileAttachment removes one attachment. Only its uploader may
// delete it.
func (e *Engine) DeleteFileAttachment(ctx context.Context, fileID models.FileID, requesterID string) error {
	attachments, err := e.store.Attachments().Snapshot(ctx)
	if err != nil {
		return err
	}
	for i := range attachments {
		if attachments[i].ID != fileID {
			continue
		}
		if attachments[i].UploadedBy != requesterID {
			return fmt.Errorf("delete attachment %s: uploader is %q: %w", fileID, attachments[i].UploadedBy, ErrForbidden)
		}
		return e.store.Attachments().RemoveAt(ctx, i)
	}
	return fmt.Errorf("delete attachment %s: %w", fileID, ErrNotFound)
}

// ClearAll empties all five collections and resets every id counter.
// Confirmation is the boundary's concern; the engine assumes the caller
// already asked.
func (e *Engine) ClearAll(ctx context.Context) error {
	if err := clearCollection(ctx, e.store.Notes()); err != nil {
		return err
	}
	if err := clearCollection(ctx, e.store.Comments()); err != nil {
		return err
	}
	if err := clearCollection(ctx, e.store.Votes()); err != nil {
		return err
	}
	if err := clearCollection(ctx, e.store.Attachments()); err != nil {
		return err
	}
	if err := clearCollection(ctx, e.store.Presence()); err != nil {
		return err
	}
	if err := e.store.ResetCounters(ctx); err != nil {
		return err
	}
	e.log.Info().Msg("cleared document")
	return nil
}

// HierarchyView rebuilds the labeled outline from a fresh notes snapshot.
func (e *Engine) HierarchyView(ctx context.Context) ([]OutlineEntry, error) {
	notes, err := e.store.Notes().Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Flatten(OrganizeHierarchy(notes)), nil
}

// SeedSampleOutline creates the starter document used for fresh, empty
// containers: a project overview with two phases and two planning leaves.
func (e *Engine) SeedSampleOutline(ctx context.Context, authorID string) error {
	overview, err := e.CreateNote(ctx, "Project Overview", "This is the main project description with key objectives and scope.", authorID, "")
	if err != nil {
		return err
	}
	phase1, err := e.CreateNote(ctx, "Phase 1: Planning", "Initial planning and requirement gathering phase.", authorID, overview.ID)
	if err != nil {
		return err
	}
	if _, err := e.CreateNote(ctx, "Phase 2: Development", "Main development and implementation phase.", authorID, overview.ID); err != nil {
		return err
	}
	if _, err := e.CreateNote(ctx, "Requirements Analysis", "Detailed analysis of project requirements and constraints.", authorID, phase1.ID); err != nil {
		return err
	}
	if _, err := e.CreateNote(ctx, "Resource Planning", "Planning of human and technical resources needed.", authorID, phase1.ID); err != nil {
		return err
	}
	return nil
}

func clearCollection[T any](ctx context.Context, c store.Collection[T]) error {
	for {
		n, err := c.Len(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := c.RemoveAt(ctx, 0); err != nil {
			return err
		}
	}
}

// findNote re-snapshots the notes collection and locates the record by
// id, returning its current index.
func findNote(ctx context.Context, st store.Store, id models.NoteID) (int, models.Note, error) {
	notes, err := st.Notes().Snapshot(ctx)
	if err != nil {
		return 0, models.Note{}, err
	}
	for i := range notes {
		if notes[i].ID == id {
			return i, notes[i], nil
		}
	}
	return 0, models.Note{}, fmt.Errorf("note %s: %w", id, ErrNotFound)
}

// removeNoteByID re-snapshots to find the note's current index before
// removing it; earlier removals in a cascade shift positions.
func removeNoteByID(ctx context.Context, st store.Store, id models.NoteID) error {
	notes, err := st.Notes().Snapshot(ctx)
	if err != nil {
		return err
	}
	for i := range notes {
		if notes[i].ID == id {
			return st.Notes().RemoveAt(ctx, i)
		}
	}
	return nil // already gone; tolerate the duplicate delete
}
