package noteline

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/noteline/noteline/pkg/models"
	"github.com/noteline/noteline/pkg/outline"
	"github.com/noteline/noteline/pkg/store"
)

// userHeader carries the acting user's name. The application trusts the
// boundary to have authenticated it; identity here is a display name,
// not a credential.
const userHeader = "X-Noteline-User"

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondOpError maps domain sentinels onto HTTP statuses.
func respondOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, outline.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, outline.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, outline.ErrAttachmentTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, store.ErrReadOnly):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := r.Header.Get(userHeader)
	if user == "" {
		respondError(w, http.StatusBadRequest, "missing "+userHeader+" header")
		return "", false
	}
	return user, true
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"readOnly": a.IsReadOnly(),
		"time":     time.Now().UTC(),
	})
}

// handleGetOutline returns the labeled, flattened hierarchy view.
func (a *App) handleGetOutline(w http.ResponseWriter, r *http.Request) {
	entries, err := a.engine.HierarchyView(r.Context())
	if err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (a *App) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := a.store.Notes().Snapshot(r.Context())
	if err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, notes)
}

func (a *App) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title    string        `json:"title"`
		Content  string        `json:"content"`
		ParentID models.NoteID `json:"parentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	note, err := a.engine.CreateNote(r.Context(), req.Title, req.Content, user, req.ParentID)
	if err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, note)
}

func (a *App) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := models.NoteID(mux.Vars(r)["id"])
	if err := a.engine.DeleteNote(r.Context(), id, user); err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleReorderNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetID  models.NoteID `json:"targetId"`
		DropAbove bool          `json:"dropAbove"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	id := models.NoteID(mux.Vars(r)["id"])
	if err := a.engine.ReorderNote(r.Context(), id, req.TargetID, req.DropAbove); err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleCastVote(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Direction int `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Direction == 0 {
		respondError(w, http.StatusBadRequest, "direction must be positive or negative")
		return
	}
	id := models.NoteID(mux.Vars(r)["id"])
	if err := a.votes.CastVote(r.Context(), id, user, req.Direction); err != nil {
		respondOpError(w, err)
		return
	}
	a.handleGetVotes(w, r)
}

func (a *App) handleGetVotes(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(userHeader)
	id := models.NoteID(mux.Vars(r)["id"])
	count, err := a.votes.GetVoteCount(r.Context(), id)
	if err != nil {
		respondOpError(w, err)
		return
	}
	var held models.VoteType
	if user != "" {
		held, err = a.votes.GetUserVote(r.Context(), id, user)
		if err != nil {
			respondOpError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":    count,
		"userVote": held,
	})
}

func (a *App) handleAddComment(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	id := models.NoteID(mux.Vars(r)["id"])
	comment, err := a.engine.AddComment(r.Context(), id, req.Content, user)
	if err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

func (a *App) handleListComments(w http.ResponseWriter, r *http.Request) {
	id := models.NoteID(mux.Vars(r)["id"])
	comments, err := a.engine.ListComments(r.Context(), id)
	if err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

func (a *App) handleAddFile(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
		FileSize int64  `json:"fileSize"`
		FileData string `json:"fileData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.FileName == "" {
		respondError(w, http.StatusBadRequest, "fileName is required")
		return
	}
	id := models.NoteID(mux.Vars(r)["id"])
	attachment, err := a.engine.AddFileAttachment(r.Context(), id, req.FileName, req.FileType, req.FileSize, req.FileData, user)
	if err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, attachment)
}

// fileView decorates an attachment with the display size label.
type fileView struct {
	models.FileAttachment
	SizeLabel string `json:"sizeLabel"`
}

func (a *App) handleListFiles(w http.ResponseWriter, r *http.Request) {
	id := models.NoteID(mux.Vars(r)["id"])
	files, err := a.engine.GetFileAttachments(r.Context(), id)
	if err != nil {
		respondOpError(w, err)
		return
	}
	views := make([]fileView, 0, len(files))
	for _, f := range files {
		views = append(views, fileView{FileAttachment: f, SizeLabel: outline.FormatFileSize(f.FileSize)})
	}
	respondJSON(w, http.StatusOK, views)
}

func (a *App) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := models.FileID(mux.Vars(r)["id"])
	if err := a.engine.DeleteFileAttachment(r.Context(), id, user); err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := a.presence.RegisterOrRefresh(r.Context(), user); err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleListPresence(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(userHeader)
	infos, err := a.presence.ListRecent(r.Context(), time.Now(), outline.PresenceDisplayWindow, user)
	if err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, infos)
}

func (a *App) handleLeave(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	a.presence.Deregister(r.Context(), user)
	respondJSON(w, http.StatusNoContent, nil)
}

// handleClear wipes the whole document. The confirm field stands in for
// the UI's confirmation dialog; without it the request is rejected.
func (a *App) handleClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if !req.Confirm {
		respondError(w, http.StatusBadRequest, "clear requires confirm=true")
		return
	}
	if err := a.engine.ClearAll(r.Context()); err != nil {
		respondOpError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleSetReadOnly toggles maintenance mode at runtime. Unsecured, as
// is the rest of the API; access control is the deployment's concern.
func (a *App) handleSetReadOnly(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReadOnly bool `json:"readOnly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	a.SetReadOnly(req.ReadOnly)
	respondJSON(w, http.StatusOK, map[string]bool{"readOnly": a.IsReadOnly()})
}
