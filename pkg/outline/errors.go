package outline

import "errors"

// Validation failures surface synchronously to the caller, which owns the
// user-facing messaging. Store unavailability is re-exported from the
// store package and treated as fatal for the session.
var (
	// ErrForbidden is returned when a caller tries to delete a note or
	// attachment they do not own. Never silently downgraded to a no-op.
	ErrForbidden = errors.New("outline: forbidden")

	// ErrNotFound is returned when a referenced id does not resolve.
	// Mutating operations abort before any store call; the hierarchy
	// read path never returns it (unresolved parents promote to root).
	ErrNotFound = errors.New("outline: not found")

	// ErrAttachmentTooLarge is returned when a file payload exceeds
	// models.MaxAttachmentSize. Rejected before any store call.
	ErrAttachmentTooLarge = errors.New("outline: attachment exceeds size limit")
)
