package noteline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/outline"
)

func newTestApp(t *testing.T) (*App, http.Handler) {
	t.Helper()
	app, err := New(context.Background(), &Config{MemoryOnly: true, ServerPort: "0"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app, app.router(newLiveHub(zerolog.Nop()))
}

func doJSON(t *testing.T, handler http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func createNote(t *testing.T, handler http.Handler, user, title string, parent models.NoteID) models.Note {
	t.Helper()
	rec := doJSON(t, handler, "POST", "/api/notes", user, map[string]any{
		"title":    title,
		"parentId": parent,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var note models.Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
	return note
}

func TestNoteEndpoints(t *testing.T) {
	_, handler := newTestApp(t)

	t.Run("create requires a user header", func(t *testing.T) {
		rec := doJSON(t, handler, "POST", "/api/notes", "", map[string]any{"title": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create and read back through the outline", func(t *testing.T) {
		root := createNote(t, handler, "alice", "Overview", "")
		createNote(t, handler, "alice", "Phase 1", root.ID)

		rec := doJSON(t, handler, "GET", "/api/outline", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var entries []outline.OutlineEntry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "Overview", entries[0].Note.Title)
		assert.Equal(t, "I.", entries[1].Label)
	})

	t.Run("create rejects an unknown parent", func(t *testing.T) {
		rec := doJSON(t, handler, "POST", "/api/notes", "alice", map[string]any{
			"title":    "Lost",
			"parentId": "999",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete is author-only", func(t *testing.T) {
		note := createNote(t, handler, "alice", "Mine", "")
		rec := doJSON(t, handler, "DELETE", "/api/notes/"+note.ID.String(), "mallory", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = doJSON(t, handler, "DELETE", "/api/notes/"+note.ID.String(), "alice", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestVoteEndpoints(t *testing.T) {
	_, handler := newTestApp(t)
	note := createNote(t, handler, "alice", "Topic", "")
	path := fmt.Sprintf("/api/notes/%s/votes", note.ID)

	rec := doJSON(t, handler, "POST", path, "bob", map[string]int{"direction": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var state struct {
		Count    int             `json:"count"`
		UserVote models.VoteType `json:"userVote"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, 1, state.Count)
	assert.Equal(t, models.VoteUp, state.UserVote)

	// Same press toggles off.
	rec = doJSON(t, handler, "POST", path, "bob", map[string]int{"direction": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Zero(t, state.Count)
	assert.Empty(t, state.UserVote)

	rec = doJSON(t, handler, "POST", path, "bob", map[string]int{"direction": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommentAndFileEndpoints(t *testing.T) {
	_, handler := newTestApp(t)
	note := createNote(t, handler, "alice", "Topic", "")

	rec := doJSON(t, handler, "POST", fmt.Sprintf("/api/notes/%s/comments", note.ID), "bob",
		map[string]string{"content": "first"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, "GET", fmt.Sprintf("/api/notes/%s/comments", note.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var comments []models.Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "first", comments[0].Content)

	t.Run("oversize attachment", func(t *testing.T) {
		rec := doJSON(t, handler, "POST", fmt.Sprintf("/api/notes/%s/files", note.ID), "bob",
			map[string]any{"fileName": "big.bin", "fileSize": models.MaxAttachmentSize + 1})
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("attach and delete", func(t *testing.T) {
		rec := doJSON(t, handler, "POST", fmt.Sprintf("/api/notes/%s/files", note.ID), "bob",
			map[string]any{"fileName": "a.txt", "fileType": "text/plain", "fileSize": 3, "fileData": "abc"})
		require.Equal(t, http.StatusCreated, rec.Code)
		var file models.FileAttachment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))

		rec = doJSON(t, handler, "GET", fmt.Sprintf("/api/notes/%s/files", note.ID), "bob", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var listed []struct {
			models.FileAttachment
			SizeLabel string `json:"sizeLabel"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
		require.Len(t, listed, 1)
		assert.Equal(t, "a.txt", listed[0].FileName)
		assert.Equal(t, "3 Bytes", listed[0].SizeLabel)

		rec = doJSON(t, handler, "DELETE", "/api/files/"+file.ID.String(), "mallory", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = doJSON(t, handler, "DELETE", "/api/files/"+file.ID.String(), "bob", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestPresenceEndpoints(t *testing.T) {
	_, handler := newTestApp(t)

	rec := doJSON(t, handler, "POST", "/api/presence", "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, handler, "POST", "/api/presence", "bob", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, "GET", "/api/presence", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []outline.PresenceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 2)
	assert.True(t, infos[0].IsSelf, "alice sorts first and is self")
	assert.Equal(t, "Active now", infos[0].Status)

	rec = doJSON(t, handler, "DELETE", "/api/presence", "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, handler, "GET", "/api/presence", "bob", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Len(t, infos, 1)
}

func TestReadOnlyMode(t *testing.T) {
	app, handler := newTestApp(t)
	note := createNote(t, handler, "alice", "Before", "")

	rec := doJSON(t, handler, "POST", "/api/admin/read-only", "", map[string]bool{"readOnly": true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, app.IsReadOnly())

	rec = doJSON(t, handler, "POST", "/api/notes", "alice", map[string]any{"title": "Rejected"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Reads still work.
	rec = doJSON(t, handler, "GET", "/api/outline", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, "POST", "/api/admin/read-only", "", map[string]bool{"readOnly": false})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, handler, "DELETE", "/api/notes/"+note.ID.String(), "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClearEndpoint(t *testing.T) {
	_, handler := newTestApp(t)
	createNote(t, handler, "alice", "Doomed", "")

	rec := doJSON(t, handler, "POST", "/api/clear", "", map[string]bool{"confirm": false})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, "POST", "/api/clear", "", map[string]bool{"confirm": true})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, "GET", "/api/outline", "", nil)
	var entries []outline.OutlineEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Empty(t, entries)
}
