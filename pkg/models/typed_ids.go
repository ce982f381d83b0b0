package models

// Typed string IDs for each entity kind. Unlike UUID-keyed systems the
// outline document allocates ids from shared monotonically increasing
// counters held in the replicated document root, so an id is just the
// decimal rendering of the counter value at allocation time. The distinct
// types keep a NoteID from being handed to a comment lookup by accident.
//
// Counter allocation is not conflict-free across replicas: two replicas
// incrementing before the store has propagated can mint the same value.
// That gap belongs to the store boundary and is documented there, not
// papered over here.

// NoteID identifies a Note.
type NoteID string

func (id NoteID) String() string { return string(id) }
func (id NoteID) IsZero() bool   { return id == "" }

// CommentID identifies a Comment.
type CommentID string

func (id CommentID) String() string { return string(id) }
func (id CommentID) IsZero() bool   { return id == "" }

// VoteID identifies a Vote record.
type VoteID string

func (id VoteID) String() string { return string(id) }
func (id VoteID) IsZero() bool   { return id == "" }

// FileID identifies a FileAttachment.
type FileID string

func (id FileID) String() string { return string(id) }
func (id FileID) IsZero() bool   { return id == "" }

// PresenceID identifies a PresenceRecord.
type PresenceID string

func (id PresenceID) String() string { return string(id) }
func (id PresenceID) IsZero() bool   { return id == "" }
