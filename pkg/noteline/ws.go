package noteline

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/noteline/noteline/pkg/outline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the app's own origin; cross-origin
	// policy is the deployment's concern.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveHub pushes rebuilt outline views to connected websocket clients.
// Each broadcast carries the full flattened outline; clients replace
// their view wholesale rather than patching.
type liveHub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[string]*liveClient
	closed  bool
}

type liveClient struct {
	id   string
	conn *websocket.Conn
	send chan []outline.OutlineEntry
}

func newLiveHub(log zerolog.Logger) *liveHub {
	return &liveHub{
		log:     log.With().Str("component", "livehub").Logger(),
		clients: make(map[string]*liveClient),
	}
}

// broadcast fans the rebuilt view out to every client. A client whose
// buffer is full misses this update; the next rebuild supersedes it
// anyway since every push is the full view.
func (h *liveHub) broadcast(entries []outline.OutlineEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		select {
		case c.send <- entries:
		default:
		}
	}
}

// handleConnect upgrades the request and streams outline rebuilds until
// the client disconnects. The first frame is the current view, so a
// client needs no separate initial fetch.
func (h *liveHub) handleConnect(engine *outline.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &liveClient{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan []outline.OutlineEntry, 8),
		}

		entries, err := engine.HierarchyView(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("initial outline build failed")
			conn.Close()
			return
		}
		client.send <- entries

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			conn.Close()
			return
		}
		h.clients[client.id] = client
		h.mu.Unlock()
		h.log.Debug().Str("client", client.id).Msg("live client connected")

		go h.writePump(client)
		h.readPump(client)
	}
}

func (h *liveHub) writePump(c *liveClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case entries, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(entries); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the socket is push-only. It exists
// to notice disconnects and answer pings.
func (h *liveHub) readPump(c *liveClient) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *liveHub) drop(c *liveClient) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
	h.log.Debug().Str("client", c.id).Msg("live client disconnected")
}

func (h *liveHub) closeAll() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*liveClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = map[string]*liveClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.send)
		c.conn.Close()
	}
}
