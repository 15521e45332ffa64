package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/events"
)

// Close codes sent when a connection is refused after the upgrade.
const (
	CloseUnauthenticated = 4401
	CloseForbidden       = 4403
	CloseNotFound        = 4404
)

// ErrBroadcastBufferFull is returned by Publish when the dispatcher is
// saturated. The frame is dropped.
var ErrBroadcastBufferFull = errors.New("broadcast buffer full")

// MessageHandler processes one inbound frame from a connection.
type MessageHandler interface {
	HandleMessage(ctx context.Context, conn *Connection, data []byte)
}

// ConnectionManager tracks websocket connections by topic and fans frames
// out to them. A single dispatcher goroutine drains broadcasts, so frames
// published on one topic reach every subscriber in publish order.
type ConnectionManager struct {
	topics map[events.Topic]map[*Connection]bool
	mu     sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	registry *Registry

	broadcastCh chan BroadcastMessage
}

// Connection is one client socket.
type Connection struct {
	ID      string
	User    models.User
	GroupID int64 // zero for connections not bound to a group
	Topics  []events.Topic
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	handler   MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	held    bool // frames wait in pending until Prime
	pending [][]byte
}

// ConnectionConfig holds websocket tuning.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is one encoded frame bound for a topic.
type BroadcastMessage struct {
	Topic     events.Topic
	Payload   []byte
	EventType string
}

// DefaultConnectionConfig returns default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a connection manager. registry may be nil.
func NewConnectionManager(config ConnectionConfig, registry *Registry) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		topics: make(map[events.Topic]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		registry:    registry,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcasts until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Upgrade switches an HTTP request to the websocket protocol. On failure
// the upgrader has already replied to the client.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}
	return conn, nil
}

// Reject closes a freshly upgraded socket with code and reason.
func (cm *ConnectionManager) Reject(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(cm.config.WriteTimeout)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil {
		log.Debug().Err(err).Int("code", code).Msg("failed to send close frame")
	}
	conn.Close()
}

// Attach subscribes an upgraded socket to topics and starts its pumps.
// handler receives inbound frames; nil discards them. The connection is
// held: nothing reaches the socket until Prime is called.
func (cm *ConnectionManager) Attach(conn *websocket.Conn, user models.User, groupID int64, topics []events.Topic, handler MessageHandler) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		ID:          uuid.New().String(),
		User:        user,
		GroupID:     groupID,
		Topics:      topics,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		handler:     handler,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		held:        true,
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Int64("user_id", user.ID).
		Int64("group_id", groupID).
		Msg("WebSocket connection established")

	return connection
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, topic := range conn.Topics {
		if cm.topics[topic] == nil {
			cm.topics[topic] = make(map[*Connection]bool)
		}
		cm.topics[topic][conn] = true

		log.Debug().
			Str("connection_id", conn.ID).
			Str("topic", string(topic)).
			Int("total_connections", len(cm.topics[topic])).
			Msg("connection registered")
	}

	if cm.registry != nil && conn.GroupID != 0 {
		cm.registry.Join(conn.GroupID, conn.User.ID)
	}
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	removed := false
	for _, topic := range conn.Topics {
		connections, exists := cm.topics[topic]
		if !exists || !connections[conn] {
			continue
		}
		delete(connections, conn)
		removed = true
		if len(connections) == 0 {
			delete(cm.topics, topic)
		}
	}
	if !removed {
		return
	}

	if cm.registry != nil && conn.GroupID != 0 {
		cm.registry.Leave(conn.GroupID, conn.User.ID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Int64("user_id", conn.User.ID).
		Int64("group_id", conn.GroupID).
		Msg("connection unregistered")
}

// Publish encodes msg once and queues it for every subscriber of topic.
func (cm *ConnectionManager) Publish(_ context.Context, topic events.Topic, msg *events.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", msg.Type, err)
	}
	return cm.Deliver(topic, payload, string(msg.Type))
}

// Deliver queues an already encoded frame for every subscriber of topic.
func (cm *ConnectionManager) Deliver(topic events.Topic, payload []byte, eventType string) error {
	select {
	case cm.broadcastCh <- BroadcastMessage{Topic: topic, Payload: payload, EventType: eventType}:
		return nil
	default:
		log.Warn().Str("topic", string(topic)).Msg("broadcast channel full, dropping message")
		return ErrBroadcastBufferFull
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.topics[message.Topic]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		conn.enqueue(message.Payload)
	}

	log.Debug().
		Str("event_type", message.EventType).
		Str("topic", string(message.Topic)).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Subscribers returns the number of connections on topic.
func (cm *ConnectionManager) Subscribers(topic events.Topic) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.topics[topic])
}

// CloseAll disconnects every client.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	seen := make(map[*Connection]bool)
	for _, connections := range cm.topics {
		for conn := range connections {
			seen[conn] = true
		}
	}
	cm.mu.RUnlock()

	for conn := range seen {
		conn.Close()
	}
}

// ConnectionStats summarizes active connections.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveGroups     int            `json:"active_groups"`
	Topics           map[string]int `json:"topics"`
	OnlineUsers      map[int64]int  `json:"online_users,omitempty"`
}

// GetConnectionStats returns statistics about active connections.
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{Topics: make(map[string]int, len(cm.topics))}
	seen := make(map[*Connection]bool)
	for topic, connections := range cm.topics {
		stats.Topics[string(topic)] = len(connections)
		if kind, _, err := events.ParseTopic(topic); err == nil && kind == "group" {
			stats.ActiveGroups++
		}
		for conn := range connections {
			seen[conn] = true
		}
	}
	stats.TotalConnections = len(seen)
	if cm.registry != nil {
		stats.OnlineUsers = cm.registry.Counts()
	}
	return stats
}

// SendMessage encodes msg and queues it for this connection only.
func (c *Connection) SendMessage(msg *events.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", msg.Type, err)
	}
	c.enqueue(payload)
	return nil
}

// Prime queues first ahead of every frame published since Attach and
// releases the connection. first may be nil.
func (c *Connection) Prime(first *events.Message) error {
	var payload []byte
	var err error
	if first != nil {
		if payload, err = json.Marshal(first); err != nil {
			err = fmt.Errorf("marshal %s frame: %w", first.Type, err)
		}
	}

	c.mu.Lock()
	ok := payload == nil || c.push(payload)
	for _, p := range c.pending {
		ok = ok && c.push(p)
	}
	c.pending = nil
	c.held = false
	c.mu.Unlock()

	if !ok {
		c.overflow()
	}
	return err
}

// enqueue hands payload to the write pump, or parks it while the
// connection is held. A subscriber whose buffer is full is disconnected.
func (c *Connection) enqueue(payload []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	c.mu.Lock()
	var ok bool
	if c.held {
		if ok = len(c.pending) < cap(c.Send); ok {
			c.pending = append(c.pending, payload)
		}
	} else {
		ok = c.push(payload)
	}
	c.mu.Unlock()

	if !ok {
		c.overflow()
	}
}

func (c *Connection) push(payload []byte) bool {
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

func (c *Connection) overflow() {
	log.Warn().
		Str("connection_id", c.ID).
		Int64("user_id", c.User.ID).
		Msg("connection send buffer full, closing connection")
	c.Close()
}

// Close unsubscribes the connection and tears the socket down. Safe to
// call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
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

func (c *Connection) readPump() {
	defer c.Close()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		if c.handler != nil {
			c.handler.HandleMessage(c.ctx, c, message)
		} else {
			log.Debug().
				Str("connection_id", c.ID).
				Int64("user_id", c.User.ID).
				Msg("ignoring client message")
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
