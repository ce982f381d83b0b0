// Package models defines the entity records of the collaborative outline
// document: notes, comments, votes, file attachments, and presence records.
//
// All entities are plain records stored in flat, insertion-ordered
// collections owned by a single document root. Entities reference each
// other only by typed string id, never by pointer, because the replicated
// store may relocate or replace records on mutation. The store enforces no
// uniqueness; invariants such as "one vote per user per note" and "one
// presence record per name" are maintained by the core engine in
// [github.com/noteline/noteline/pkg/outline].
//
// The hierarchy (parent/child) view of notes is derived, never persisted:
// a Note carries a ParentID and a creation-time Level, and the tree is
// rebuilt from the flat collection after every change notification.
package models
