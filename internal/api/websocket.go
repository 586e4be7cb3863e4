package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/solar-bridge/internal/accessory"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/config"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// ChannelCharacteristicChanged carries characteristic value changes.
const ChannelCharacteristicChanged = "characteristic.changed"

const (
	wsSendQueue  = 256
	wsBufferSize = 1024
)

// wsDefaults fills a zero WebSocketConfig.
var wsDefaults = config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}

// WSMessage is the envelope of every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels and, optionally, the characteristics
// whose changes are wanted. Leaving Characteristics empty means all of them.
type WSSubscribePayload struct {
	Channels        []string `json:"channels"`
	Characteristics []string `json:"characteristics,omitempty"`
}

// CharacteristicChangedPayload is the payload of a characteristic.changed event.
type CharacteristicChangedPayload struct {
	ServiceID        string `json:"service_id"`
	CharacteristicID string `json:"characteristic_id"`
	Old              any    `json:"old"`
	New              any    `json:"new"`
	At               string `json:"at"`
}

// wsFilter is what one client wants to hear about.
type wsFilter struct {
	channels map[string]bool
	ids      map[string]bool
}

func (f wsFilter) wants(channel, id string) bool {
	if !f.channels[channel] {
		return false
	}
	return len(f.ids) == 0 || id == "" || f.ids[id]
}

// Hub fans accessory events out to the connected WebSocket clients.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	onCount func(int)

	dropped atomic.Uint64
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	filter wsFilter
	closed bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	// The API is LAN-local and unauthenticated, as is the accessory listener.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a hub. Zero fields of cfg take the defaults.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = wsDefaults.MaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = wsDefaults.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = wsDefaults.PongTimeout
	}
	return &Hub{cfg: cfg, logger: logger, clients: make(map[*WSClient]struct{})}
}

// OnClientCount installs fn to be told the client count after each change.
// Call before Run.
func (h *Hub) OnClientCount(fn func(int)) { h.onCount = fn }

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shut()
		if c.conn != nil {
			c.conn.Close()
		}
	}
	h.reportCount(0)
}

func newWSClient(h *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, wsSendQueue),
		filter: wsFilter{channels: map[string]bool{}},
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "clients", n)
	h.reportCount(n)
}

// Unregister removes a client and closes its send queue. Repeated calls are
// no-ops.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}

	c.shut()
	h.logger.Debug("websocket client disconnected", "clients", n)
	h.reportCount(n)
}

func (h *Hub) reportCount(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}

// Broadcast sends payload as an event on channel to every client whose
// filter accepts characteristic id. An empty id matches every filter. A
// client with a full queue misses the event.
func (h *Hub) Broadcast(channel, id string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.wants(channel, id) && !c.deliver(data) {
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were lost to full client queues.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// relayChange broadcasts an accessory change on characteristic.changed.
func (s *Server) relayChange(c accessory.Change) {
	s.hub.Broadcast(ChannelCharacteristicChanged, c.CharacteristicID, CharacteristicChangedPayload{
		ServiceID:        c.ServiceID,
		CharacteristicID: c.CharacteristicID,
		Old:              c.Old,
		New:              c.New,
		At:               c.At.UTC().Format(time.RFC3339Nano),
	})
}

// handleWebSocket upgrades the connection and starts the client's pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestID(r.Context()))
		return
	}

	c := newWSClient(s.hub, conn)
	s.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *WSClient) timeouts() (ping, pong time.Duration) {
	return time.Duration(c.hub.cfg.PingInterval) * time.Second, time.Duration(c.hub.cfg.PongTimeout) * time.Second
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	ping, pong := c.timeouts()
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ping + pong)) }

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // as above
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump() {
	ping, pong := c.timeouts()
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		frameType, data := websocket.PingMessage, []byte(nil)
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			frameType, data = websocket.TextMessage, msg
		case <-ticker.C:
		}
		c.conn.SetWriteDeadline(time.Now().Add(pong)) //nolint:errcheck // surfaces as a write error
		if err := c.conn.WriteMessage(frameType, data); err != nil {
			return
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg struct {
		Type    string             `json:"type"`
		ID      string             `json:"id"`
		Payload WSSubscribePayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.subscribe(msg.Payload)
		c.reply(msg.ID, WSTypeResponse, map[string]any{
			"subscribed":      msg.Payload.Channels,
			"characteristics": msg.Payload.Characteristics,
		})
	case WSTypeUnsubscribe:
		c.unsubscribe(msg.Payload.Channels)
		c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": msg.Payload.Channels})
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

// subscribe adds channels. A non-empty characteristic list replaces the
// current one.
func (c *WSClient) subscribe(p WSSubscribePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range p.Channels {
		c.filter.channels[ch] = true
	}
	if len(p.Characteristics) > 0 {
		c.filter.ids = make(map[string]bool, len(p.Characteristics))
		for _, id := range p.Characteristics {
			c.filter.ids[id] = true
		}
	}
}

func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.filter.channels, ch)
	}
}

func (c *WSClient) wants(channel, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.wants(channel, id)
}

// deliver queues data. It reports false if the client is gone or its queue
// is full.
func (c *WSClient) deliver(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shut closes the send queue once, which ends the write pump.
func (c *WSClient) shut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err == nil {
		c.deliver(data)
	}
}
