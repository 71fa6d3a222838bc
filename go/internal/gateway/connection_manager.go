package gateway

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/planningpoker/go/internal/events"
	"github.com/mcdev12/planningpoker/go/internal/room"
)

// ConnectionManager manages WebSocket subscriptions to rooms
type ConnectionManager struct {
	registry *room.Registry
	clock    clockwork.Clock

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	mu          sync.RWMutex
	connections map[string]*Connection
}

// Connection is one WebSocket client subscribed to a room
type Connection struct {
	*Channel
	Conn    *websocket.Conn
	Manager *ConnectionManager

	limiter *rate.Limiter
	release sync.Once
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(registry *room.Registry, config ConnectionConfig, clock clockwork.Clock) *ConnectionManager {
	return &ConnectionManager{
		registry: registry,
		clock:    clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		connections: make(map[string]*Connection),
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and subscribes it
// to the room. On upgrade failure the upgrader has already answered the request.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, roomID, userID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		Channel: NewChannel(roomID, userID, cm.config.SendBuffer, cm.clock.Now()),
		Conn:    conn,
		Manager: cm,
		limiter: rate.NewLimiter(cm.config.InboundRate, cm.config.InboundBurst),
	}

	cm.registerConnection(connection)

	if err := cm.registry.Subscribe(connection.RoomID, userID, connection.Channel); err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(cm.config.WriteTimeout))
		cm.releaseConnection(connection)
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	// Start connection handlers
	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Str("room_id", connection.RoomID).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", conn.RoomID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// releaseConnection unsubscribes and forgets a connection. Safe to call from
// both pumps.
func (cm *ConnectionManager) releaseConnection(conn *Connection) {
	conn.release.Do(func() {
		cm.registry.Unsubscribe(conn.RoomID, conn.UserID, conn.Channel)
		conn.Channel.Close()
		conn.Conn.Close()

		cm.mu.Lock()
		delete(cm.connections, conn.ID)
		cm.mu.Unlock()

		log.Info().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID).
			Str("room_id", conn.RoomID).
			Msg("connection unregistered")
	})
}

// CloseAll closes every open WebSocket connection
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		cm.releaseConnection(c)
	}
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	roomCounts := make(map[string]int)
	for _, conn := range cm.connections {
		roomCounts[conn.RoomID]++
	}

	return map[string]interface{}{
		"total_connections": len(cm.connections),
		"active_rooms":      cm.registry.Len(),
		"room_connections":  roomCounts,
	}
}

// writePump drains the channel into the WebSocket connection
func (c *Connection) writePump() {
	ticker := c.Manager.clock.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Manager.releaseConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Messages():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed: superseded, dropped or shutting down
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.Chan():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump submits inbound frames as events until the connection drops
func (c *Connection) readPump() {
	defer c.Manager.releaseConnection(c)

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage submits a frame as an event from this connection's participant
func (c *Connection) handleClientMessage(message []byte) {
	if !c.limiter.Allow() {
		log.Warn().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Msg("inbound rate limit exceeded, dropping event")
		return
	}

	payload, err := events.WithSender(message, c.UserID)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("discarding malformed client message")
		return
	}

	ev, err := events.Decode(payload)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("discarding invalid event")
		return
	}

	if err := c.Manager.registry.Submit(c.RoomID, ev); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("room_id", c.RoomID).
			Str("event_type", string(ev.Kind())).
			Msg("failed to apply client event")
	}
}
