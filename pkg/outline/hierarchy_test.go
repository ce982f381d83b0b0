package outline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/outline"
)

func note(id, parent models.NoteID, title string) models.Note {
	return models.Note{ID: id, ParentID: parent, Title: title}
}

func TestOrganizeHierarchy(t *testing.T) {
	t.Run("builds forest in collection order", func(t *testing.T) {
		notes := []models.Note{
			note("1", "", "Overview"),
			note("2", "1", "Phase 1"),
			note("3", "1", "Phase 2"),
			note("4", "2", "Requirements"),
		}
		forest := outline.OrganizeHierarchy(notes)
		require.Len(t, forest, 1)
		root := forest[0]
		assert.Equal(t, "Overview", root.Note.Title)
		require.Len(t, root.Children, 2)
		assert.Equal(t, "Phase 1", root.Children[0].Note.Title)
		assert.Equal(t, "Phase 2", root.Children[1].Note.Title)
		require.Len(t, root.Children[0].Children, 1)
		assert.Equal(t, "Requirements", root.Children[0].Children[0].Note.Title)
	})

	t.Run("promotes orphans to roots", func(t *testing.T) {
		notes := []models.Note{
			note("1", "", "Root"),
			note("2", "99", "Orphan"),
		}
		forest := outline.OrganizeHierarchy(notes)
		require.Len(t, forest, 2)
		assert.Equal(t, "Orphan", forest[1].Note.Title)
	})

	t.Run("promotes self-referential notes to roots", func(t *testing.T) {
		forest := outline.OrganizeHierarchy([]models.Note{note("7", "7", "Loop")})
		require.Len(t, forest, 1)
		assert.Empty(t, forest[0].Children)
	})

	t.Run("is deterministic for the same snapshot", func(t *testing.T) {
		notes := []models.Note{
			note("1", "", "A"),
			note("2", "1", "B"),
			note("3", "", "C"),
		}
		first := outline.Flatten(outline.OrganizeHierarchy(notes))
		second := outline.Flatten(outline.OrganizeHierarchy(notes))
		assert.Equal(t, first, second)
	})
}

func TestFlattenLabels(t *testing.T) {
	notes := []models.Note{
		note("1", "", "Root"),
		note("2", "1", "First"),
		note("3", "1", "Second"),
		note("4", "2", "Alpha"),
		note("5", "4", "Numeric"),
		note("6", "5", "Lower"),
		note("7", "6", "Bullet"),
	}
	entries := outline.Flatten(outline.OrganizeHierarchy(notes))
	require.Len(t, entries, 7)

	byTitle := map[string]outline.OutlineEntry{}
	for _, e := range entries {
		byTitle[e.Note.Title] = e
	}
	assert.Equal(t, "", byTitle["Root"].Label)
	assert.Equal(t, "I.", byTitle["First"].Label)
	assert.Equal(t, "II.", byTitle["Second"].Label)
	assert.Equal(t, "A.", byTitle["Alpha"].Label)
	assert.Equal(t, "1.", byTitle["Numeric"].Label)
	assert.Equal(t, "a)", byTitle["Lower"].Label)
	assert.Equal(t, "•", byTitle["Bullet"].Label)

	// Pre-order: parent always precedes its children.
	assert.Equal(t, "Root", entries[0].Note.Title)
	assert.Equal(t, "First", entries[1].Note.Title)
	assert.Equal(t, "Alpha", entries[2].Note.Title)
}

func TestOutlineLabel(t *testing.T) {
	assert.Equal(t, "IV.", outline.OutlineLabel(1, 3))
	assert.Equal(t, "IX.", outline.OutlineLabel(1, 8))
	assert.Equal(t, "C.", outline.OutlineLabel(2, 2))
	assert.Equal(t, "A.", outline.OutlineLabel(2, 26), "letters wrap after Z")
	assert.Equal(t, "12.", outline.OutlineLabel(3, 11))
	assert.Equal(t, "c)", outline.OutlineLabel(4, 2))
	assert.Equal(t, "•", outline.OutlineLabel(9, 0))
}
