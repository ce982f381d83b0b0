package outline_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteline/noteline/pkg/outline"
	"github.com/noteline/noteline/pkg/store/memory"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	t.Cleanup(func() { st.Close() })

	alice, err := outline.NewSession(ctx, st, "alice", zerolog.Nop())
	require.NoError(t, err)
	bob, err := outline.NewSession(ctx, st, "bob", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		alice.Close()
		bob.Close()
	})

	t.Run("sessions get distinct ids", func(t *testing.T) {
		assert.NotEqual(t, alice.ID, bob.ID)
	})

	t.Run("opening registers presence", func(t *testing.T) {
		users, err := alice.ActiveUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "alice", users[0].Name)
		assert.True(t, users[0].IsSelf)
		assert.Equal(t, "bob", users[1].Name)
		assert.False(t, users[1].IsSelf)
	})

	t.Run("same user twice shares one presence record", func(t *testing.T) {
		again, err := outline.NewSession(ctx, st, "alice", zerolog.Nop())
		require.NoError(t, err)
		defer again.Close()

		users, err := again.ActiveUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})

	t.Run("engine and ledger share the document", func(t *testing.T) {
		note, err := alice.Engine.CreateNote(ctx, "Agenda", "", "alice", "")
		require.NoError(t, err)

		require.NoError(t, bob.Votes.CastVote(ctx, note.ID, "bob", 1))
		count, err := alice.Votes.GetVoteCount(ctx, note.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("close deregisters presence", func(t *testing.T) {
		bob.Close()
		bob.Close() // idempotent

		users, err := alice.ActiveUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "alice", users[0].Name)
	})
}
