package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/mnrezaali/ai-prompt-generator/internal/conversation"
	"github.com/mnrezaali/ai-prompt-generator/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// WebSocketMessage is the envelope for both directions.
type WebSocketMessage struct {
	Type    string          `json:"type"`
	EventID string          `json:"event_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// sessionClient is one WebSocket connection following the session.
type sessionClient struct {
	conn   *websocket.Conn
	server *Server
	send   chan any
	ctx    context.Context
	cancel context.CancelFunc
}

// handleSessionWebSocket pushes every manager update to the client and
// accepts generate, refine, load and ping commands.
func (s *Server) handleSessionWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &sessionClient{
		conn:   conn,
		server: s,
		send:   make(chan any, 256),
		ctx:    ctx,
		cancel: cancel,
	}

	s.clients.Add(1)
	log.Debug("WebSocket client connected", "remote", r.RemoteAddr)

	updates := s.manager.Subscribe(ctx)
	client.queue(map[string]any{"type": "snapshot", "data": s.sessionResponse()})

	go client.forwardUpdates(updates)
	go client.writePump()
	go client.readPump()
}

// forwardUpdates relays manager updates until the client disconnects.
func (c *sessionClient) forwardUpdates(updates <-chan events.Event[conversation.Update]) {
	for ev := range updates {
		c.queue(map[string]any{
			"type":     "update",
			"event_id": ev.ID,
			"data":     ev.Payload,
		})
	}
}

// queue drops the message if the client cannot keep up.
func (c *sessionClient) queue(msg any) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	default:
		log.Debug("Dropping message for slow WebSocket client")
	}
}

// readPump handles incoming WebSocket messages
func (c *sessionClient) readPump() {
	defer func() {
		c.cancel()
		c.conn.Close()
		c.server.clients.Add(-1)
		log.Debug("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxBodyBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg WebSocketMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(msg)
	}
}

// writePump handles outgoing WebSocket messages
func (c *sessionClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(message); err != nil {
				log.Debug("WebSocket write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming WebSocket messages. Generation runs in
// the background; its progress arrives as updates.
func (c *sessionClient) handleMessage(msg WebSocketMessage) {
	m := c.server.manager
	switch msg.Type {
	case "ping":
		c.queue(WebSocketMessage{Type: "pong", EventID: msg.EventID})
	case "generate":
		var req GenerateSessionRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.sendError("Invalid message data", msg.EventID)
			return
		}
		brief, err := req.brief()
		if err != nil {
			c.sendError(err.Error(), msg.EventID)
			return
		}
		c.run(msg.EventID, func(ctx context.Context) error {
			_, err := m.Generate(ctx, brief)
			return err
		})
	case "refine":
		var req RefineSessionRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.sendError("Invalid message data", msg.EventID)
			return
		}
		c.run(msg.EventID, func(ctx context.Context) error {
			_, err := m.Refine(ctx, firstNonEmpty(req.Instruction, req.Message))
			return err
		})
	case "load":
		var req struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.sendError("Invalid message data", msg.EventID)
			return
		}
		if _, err := m.LoadFromHistory(req.ID); err != nil {
			c.sendError(err.Error(), msg.EventID)
		}
	default:
		c.sendError("Unknown message type", msg.EventID)
	}
}

// run executes op and reports completion. Disconnecting cancels op.
func (c *sessionClient) run(eventID string, op func(context.Context) error) {
	if c.server.manager.Busy() {
		c.sendError(conversation.ErrBusy.Error(), eventID)
		return
	}
	go func() {
		if err := op(c.ctx); err != nil {
			c.sendError(err.Error(), eventID)
			return
		}
		c.queue(WebSocketMessage{Type: "done", EventID: eventID})
	}()
}

// sendError sends an error message to the WebSocket client
func (c *sessionClient) sendError(message string, eventID string) {
	c.queue(WebSocketMessage{
		Type:    "error",
		Error:   message,
		EventID: eventID,
	})
}
