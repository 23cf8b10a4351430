// Package realtime relays order, payment and notification events to
// authenticated websocket clients grouped into rooms.
package realtime

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

const (
	EventConnected          = "connected"
	EventPong               = "pong"
	EventOrderCreated       = "order:created"
	EventOrderStatusUpdated = "order:status_updated"
	EventPaymentUpdated     = "payment:updated"
	EventNotificationNew    = "notification:new"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

var connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "realtime_connections",
	Help: "Open websocket connections.",
})

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID  uint
	Role    string
	StoreID uint
}

// Rooms lists the rooms a connection joins on arrival.
func (id Identity) Rooms() []string {
	rooms := []string{UserRoom(id.UserID), RoleRoom(id.Role)}
	if id.StoreID != 0 {
		rooms = append(rooms, StoreRoom(id.StoreID))
	}
	return rooms
}

func UserRoom(userID uint) string   { return "user:" + strconv.FormatUint(uint64(userID), 10) }
func StoreRoom(storeID uint) string { return "store:" + strconv.FormatUint(uint64(storeID), 10) }
func RoleRoom(role string) string   { return "role:" + role }

type Message struct {
	Event     string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	clients  map[*Client]struct{}
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

type Option func(*Hub)

// WithAllowedOrigins restricts the Origin header accepted on upgrade.
// An empty list accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[o] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(h *Hub) { h.log = log }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeWS upgrades the request and joins the connection to the identity's rooms.
// The caller must have authenticated the request already.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, id Identity) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{hub: h, conn: conn, id: id, send: make(chan []byte, sendBuffer), rooms: id.Rooms()}
	h.register(c)

	go c.writePump()
	go c.readPump()

	c.enqueue(encode(EventConnected, map[string]any{"userId": id.UserID, "rooms": c.rooms}))
	return nil
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	for _, room := range c.rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
	}
	connectionsGauge.Inc()
	h.log.WithFields(logrus.Fields{"user_id": c.id.UserID, "rooms": c.rooms}).Debug("Realtime client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for _, room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.send)
	h.mu.Unlock()

	connectionsGauge.Dec()
	h.log.WithField("user_id", c.id.UserID).Debug("Realtime client disconnected")
}

// Emit sends an event to every client in room. Clients whose buffer is full
// are disconnected instead of blocking the sender.
func (h *Hub) Emit(room, event string, data any) {
	payload := encode(event, data)
	if payload == nil {
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithField("user_id", c.id.UserID).Warn("Dropping slow realtime client")
		h.unregister(c)
	}
}

func (h *Hub) EmitToUser(userID uint, event string, data any) {
	h.Emit(UserRoom(userID), event, data)
}

func (h *Hub) EmitToStore(storeID uint, event string, data any) {
	h.Emit(StoreRoom(storeID), event, data)
}

func (h *Hub) EmitToRole(role, event string, data any) {
	h.Emit(RoleRoom(role), event, data)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func encode(event string, data any) []byte {
	payload, err := json.Marshal(Message{Event: event, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode realtime event")
		return nil
	}
	return payload
}
