package outline_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/outline"
	"github.com/noteline/noteline/pkg/store/memory"
)

func newVoteFixture(t *testing.T) (context.Context, *outline.Engine, *outline.VoteLedger, models.NoteID) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	t.Cleanup(func() { st.Close() })
	engine := outline.NewEngine(st, zerolog.Nop(), nil)
	n, err := engine.CreateNote(ctx, "Topic", "", "alice", "")
	require.NoError(t, err)
	return ctx, engine, outline.NewVoteLedger(st, zerolog.Nop()), n.ID
}

func TestCastVote(t *testing.T) {
	t.Run("upvote from no vote", func(t *testing.T) {
		ctx, _, ledger, id := newVoteFixture(t)
		require.NoError(t, ledger.CastVote(ctx, id, "bob", +1))

		count, err := ledger.GetVoteCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		held, err := ledger.GetUserVote(ctx, id, "bob")
		require.NoError(t, err)
		assert.Equal(t, models.VoteUp, held)
	})

	t.Run("same vote twice toggles off", func(t *testing.T) {
		ctx, _, ledger, id := newVoteFixture(t)
		require.NoError(t, ledger.CastVote(ctx, id, "bob", +1))
		require.NoError(t, ledger.CastVote(ctx, id, "bob", +1))

		count, err := ledger.GetVoteCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		held, err := ledger.GetUserVote(ctx, id, "bob")
		require.NoError(t, err)
		assert.Empty(t, held)
	})

	t.Run("switching direction swings the counter by two", func(t *testing.T) {
		ctx, _, ledger, id := newVoteFixture(t)
		require.NoError(t, ledger.CastVote(ctx, id, "bob", +1))
		require.NoError(t, ledger.CastVote(ctx, id, "bob", -1))

		count, err := ledger.GetVoteCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, -1, count)

		held, err := ledger.GetUserVote(ctx, id, "bob")
		require.NoError(t, err)
		assert.Equal(t, models.VoteDown, held)
	})

	t.Run("votes from different users accumulate", func(t *testing.T) {
		ctx, _, ledger, id := newVoteFixture(t)
		require.NoError(t, ledger.CastVote(ctx, id, "bob", +1))
		require.NoError(t, ledger.CastVote(ctx, id, "carol", +1))
		require.NoError(t, ledger.CastVote(ctx, id, "dave", -1))

		count, err := ledger.GetVoteCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("counter matches ledger after an arbitrary sequence", func(t *testing.T) {
		ctx, _, ledger, id := newVoteFixture(t)
		presses := []struct {
			user string
			dir  int
		}{
			{"bob", +1}, {"carol", -1}, {"bob", -1},
			{"dave", +1}, {"carol", -1}, {"bob", -1},
		}
		for _, p := range presses {
			require.NoError(t, ledger.CastVote(ctx, id, p.user, p.dir))
		}
		// bob: up, switch to down, toggle off -> none
		// carol: down, toggle off -> none
		// dave: up
		count, err := ledger.GetVoteCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		held, err := ledger.GetUserVote(ctx, id, "bob")
		require.NoError(t, err)
		assert.Empty(t, held)
	})

	t.Run("unknown note fails loudly", func(t *testing.T) {
		ctx, _, ledger, _ := newVoteFixture(t)
		err := ledger.CastVote(ctx, "999", "bob", +1)
		assert.ErrorIs(t, err, outline.ErrNotFound)
	})
}

func TestVoteReads(t *testing.T) {
	ctx, _, ledger, id := newVoteFixture(t)

	t.Run("no vote reads as empty", func(t *testing.T) {
		held, err := ledger.GetUserVote(ctx, id, "nobody")
		require.NoError(t, err)
		assert.Empty(t, held)
	})

	t.Run("count for unknown note is an error", func(t *testing.T) {
		_, err := ledger.GetVoteCount(ctx, "999")
		assert.ErrorIs(t, err, outline.ErrNotFound)
	})
}
