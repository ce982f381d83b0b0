package models

import (
	"time"
)

// VoteType represents the direction of a vote on a note.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// Direction converts a vote type to its numeric counter effect:
// +1 for an upvote, -1 for a downvote.
func (v VoteType) Direction() int {
	if v == VoteUp {
		return 1
	}
	return -1
}

// VoteTypeFor maps a numeric direction to a vote type. Any positive
// direction is an upvote, anything else a downvote.
func VoteTypeFor(direction int) VoteType {
	if direction > 0 {
		return VoteUp
	}
	return VoteDown
}

// MaxNoteLevel is the deepest stored nesting level for a note. A child of
// a level-4 note is created at level 4 rather than deeper.
const MaxNoteLevel = 4

// MaxAttachmentSize is the upper bound on an attachment payload, in bytes.
const MaxAttachmentSize = 5 * 1024 * 1024

// SchemaVersion identifies the document layout this build reads and writes.
const SchemaVersion = "v2"

// Note is a single outline entry. Notes live in one flat, insertion-ordered
// collection; the tree view is derived from ParentID at read time and never
// stored. Level is fixed at creation from the parent's level and is not
// rewritten by reorder.
type Note struct {
	ID        NoteID    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	// Votes is the denormalized running total, kept equal to
	// upvotes minus downvotes over the votes collection.
	Votes    int    `json:"votes"`
	ParentID NoteID `json:"parentId"`
	Level    int    `json:"level"`
}

// IsRoot reports whether the note sits at the top of the outline.
func (n Note) IsRoot() bool { return n.ParentID == "" }

// Comment is an annotation on a note. Its lifecycle is tied to the owning
// note: deleting the note deletes its comments.
type Comment struct {
	ID        CommentID `json:"id"`
	NoteID    NoteID    `json:"noteId"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// Vote records one user's current vote on one note. At most one vote
// record exists per (NoteID, UserID) pair at any time; the core enforces
// this, not the store.
type Vote struct {
	ID       VoteID   `json:"id"`
	NoteID   NoteID   `json:"noteId"`
	UserID   string   `json:"userId"`
	VoteType VoteType `json:"voteType"`
}

// FileAttachment is an opaque payload attached to a note. FileData is an
// encoded blob (the original client stored base64 data URLs); the core
// never inspects it.
type FileAttachment struct {
	ID         FileID    `json:"id"`
	NoteID     NoteID    `json:"noteId"`
	FileName   string    `json:"fileName"`
	FileType   string    `json:"fileType"`
	FileSize   int64     `json:"fileSize"`
	FileData   string    `json:"fileData"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// PresenceRecord is a liveness heartbeat entry for one connected user.
// Name is the opaque user identity and is unique among live records.
type PresenceRecord struct {
	ID       PresenceID `json:"id"`
	Name     string     `json:"name"`
	LastSeen time.Time  `json:"lastSeen"`
}
