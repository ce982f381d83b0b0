package noteline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/noteline/noteline/pkg/outline"
)

// Run starts the HTTP server and blocks until the context is cancelled
// or the listener fails. Shutdown drains in-flight requests for up to
// five seconds.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	bridge, err := outline.NewBridge(a.store, a.log)
	if err != nil {
		return fmt.Errorf("attach change bridge: %w", err)
	}
	defer bridge.Close()

	hub := newLiveHub(a.log)
	removeObserver := bridge.AddObserver(hub.broadcast)
	defer removeObserver()

	router := a.router(hub)

	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	a.log.Info().Str("addr", addr).Msg("starting noteline server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.closeAll()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (a *App) router(hub *liveHub) *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	// Outline and notes
	api.HandleFunc("/outline", a.handleGetOutline).Methods("GET")
	api.HandleFunc("/notes", a.handleListNotes).Methods("GET")
	api.HandleFunc("/notes", a.handleCreateNote).Methods("POST")
	api.HandleFunc("/notes/{id}", a.handleDeleteNote).Methods("DELETE")
	api.HandleFunc("/notes/{id}/reorder", a.handleReorderNote).Methods("POST")

	// Votes
	api.HandleFunc("/notes/{id}/votes", a.handleGetVotes).Methods("GET")
	api.HandleFunc("/notes/{id}/votes", a.handleCastVote).Methods("POST")

	// Comments
	api.HandleFunc("/notes/{id}/comments", a.handleListComments).Methods("GET")
	api.HandleFunc("/notes/{id}/comments", a.handleAddComment).Methods("POST")

	// Attachments
	api.HandleFunc("/notes/{id}/files", a.handleListFiles).Methods("GET")
	api.HandleFunc("/notes/{id}/files", a.handleAddFile).Methods("POST")
	api.HandleFunc("/files/{id}", a.handleDeleteFile).Methods("DELETE")

	// Presence
	api.HandleFunc("/presence", a.handleListPresence).Methods("GET")
	api.HandleFunc("/presence", a.handleHeartbeat).Methods("POST")
	api.HandleFunc("/presence", a.handleLeave).Methods("DELETE")

	// Document administration
	api.HandleFunc("/clear", a.handleClear).Methods("POST")
	api.HandleFunc("/admin/read-only", a.handleSetReadOnly).Methods("POST")

	// Live outline push
	api.HandleFunc("/live", hub.handleConnect(a.engine))

	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	return router
}
