package outline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/store"
)

// VoteLedger implements the per-(note,user) vote state machine on top of
// the votes collection and each note's denormalized counter.
//
// States are NoVote, Up, and Down. Casting the vote already held removes
// it (toggle off); casting the opposite vote removes the old record first
// and then appends the new one. The remove-then-add ordering matters: a
// concurrent reader observing between the two steps still sees at most
// one vote record for the pair, just a counter one step behind.
//
// After any sequence of calls, note.Votes equals the number of up votes
// minus the number of down votes over the collection for that note.
type VoteLedger struct {
	store store.Store
	log   zerolog.Logger
}

// NewVoteLedger creates a ledger over the given store.
func NewVoteLedger(st store.Store, log zerolog.Logger) *VoteLedger {
	return &VoteLedger{store: st, log: log.With().Str("component", "votes").Logger()}
}

// CastVote applies one press of the up (+1) or down (-1) button for the
// given user. The net counter effect of a single call is in {-2..+2}.
func (l *VoteLedger) CastVote(ctx context.Context, noteID models.NoteID, userID string, direction int) error {
	requested := models.VoteTypeFor(direction)

	if _, _, err := findNote(ctx, l.store, noteID); err != nil {
		return err
	}

	current, err := l.currentVote(ctx, noteID, userID)
	if err != nil {
		return err
	}

	// Same button pressed again: plain unvote.
	if current != nil && current.VoteType == requested {
		if err := l.removeVote(ctx, *current); err != nil {
			return err
		}
		l.log.Debug().Str("note", noteID.String()).Str("user", userID).
			Str("vote", string(requested)).Msg("removed vote")
		return nil
	}

	// First vote or a switch: undo any held vote before adding the new
	// one, so no intermediate state ever shows two records for the pair.
	if current != nil {
		if err := l.removeVote(ctx, *current); err != nil {
			return err
		}
	}
	if err := l.addVote(ctx, noteID, userID, requested); err != nil {
		return err
	}
	l.log.Debug().Str("note", noteID.String()).Str("user", userID).
		Str("vote", string(requested)).Bool("switched", current != nil).Msg("cast vote")
	return nil
}

// GetUserVote returns the vote the user currently holds on the note, or
// the empty string for none. Pure read.
func (l *VoteLedger) GetUserVote(ctx context.Context, noteID models.NoteID, userID string) (models.VoteType, error) {
	current, err := l.currentVote(ctx, noteID, userID)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", nil
	}
	return current.VoteType, nil
}

// GetVoteCount returns the note's running vote total. Pure read; returns
// ErrNotFound for an unknown note.
func (l *VoteLedger) GetVoteCount(ctx context.Context, noteID models.NoteID) (int, error) {
	_, note, err := findNote(ctx, l.store, noteID)
	if err != nil {
		return 0, err
	}
	return note.Votes, nil
}

func (l *VoteLedger) currentVote(ctx context.Context, noteID models.NoteID, userID string) (*models.Vote, error) {
	votes, err := l.store.Votes().Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for i := range votes {
		if votes[i].NoteID == noteID && votes[i].UserID == userID {
			return &votes[i], nil
		}
	}
	return nil, nil
}

// removeVote deletes the record and undoes its counter effect: removing
// an up vote subtracts one, removing a down vote adds one.
func (l *VoteLedger) removeVote(ctx context.Context, vote models.Vote) error {
	votes, err := l.store.Votes().Snapshot(ctx)
	if err != nil {
		return err
	}
	for i := range votes {
		if votes[i].ID == vote.ID {
			if err := l.store.Votes().RemoveAt(ctx, i); err != nil {
				return fmt.Errorf("remove vote %s: %w", vote.ID, err)
			}
			break
		}
	}
	return l.adjustNoteCounter(ctx, vote.NoteID, -vote.VoteType.Direction())
}

func (l *VoteLedger) addVote(ctx context.Context, noteID models.NoteID, userID string, voteType models.VoteType) error {
	if err := l.adjustNoteCounter(ctx, noteID, voteType.Direction()); err != nil {
		return err
	}
	id, err := l.store.NextID(ctx, store.CounterVote)
	if err != nil {
		return err
	}
	_, err = l.store.Votes().Append(ctx, models.Vote{
		ID:       models.VoteID(id),
		NoteID:   noteID,
		UserID:   userID,
		VoteType: voteType,
	})
	return err
}

// adjustNoteCounter rewrites the note record with its counter shifted by
// delta. ReplaceAt rather than field mutation: the substrate may relocate
// records, so writes always go through the positional primitive.
func (l *VoteLedger) adjustNoteCounter(ctx context.Context, noteID models.NoteID, delta int) error {
	idx, note, err := findNote(ctx, l.store, noteID)
	if err != nil {
		return err
	}
	note.Votes += delta
	if err := l.store.Notes().ReplaceAt(ctx, idx, note); err != nil {
		return fmt.Errorf("update vote counter for note %s: %w", noteID, err)
	}
	return nil
}
