package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hansbyte/pairgate/internal/session"
	"github.com/hansbyte/pairgate/pkg/api"
	"github.com/hansbyte/pairgate/pkg/log"
)

// Client represents a WebSocket client connection for event streaming
type Client struct {
	server *Server
	conn   *websocket.Conn
	events <-chan api.SessionEvent
	subID  uuid.UUID
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	wsBufferSize   = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEvents upgrades the connection and streams session events. An
// optional session query parameter narrows the stream to one session
func (s *Server) handleEvents(c *gin.Context) {
	var filter session.EventFilter
	if raw := c.Query("session"); raw != "" {
		filter = session.FilterSession(api.SanitizeNumber(raw))
	}

	// subscribe before completing the handshake so events published the
	// moment the dial returns are already routed to this connection
	subID, events := s.hub.Subscribe(filter)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.hub.Unsubscribe(subID)
		slog.Error("WebSocket upgrade failed", log.Error(err))
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		events: events,
		subID:  subID,
	}
	s.registerWebSocket(client)

	go client.run()
}

func (cl *Client) run() {
	defer func() {
		cl.server.unregisterWebSocket(cl)
		cl.server.hub.Unsubscribe(cl.subID)
		_ = cl.conn.Close()
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	gone := make(chan struct{})
	go cl.readUntilClosed(gone)

	for {
		select {
		case <-gone:
			return

		case ev, ok := <-cl.events:
			if !ok {
				_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(ev); err != nil {
				slog.Error("WebSocket write failed", log.Error(err))
				return
			}

		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := cl.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains incoming frames so control messages are still
// processed, signalling when the peer goes away
func (cl *Client) readUntilClosed(gone chan struct{}) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			close(gone)
			return
		}
	}
}

// Close tears down the connection from the server side
func (cl *Client) Close() {
	_ = cl.conn.Close()
}
