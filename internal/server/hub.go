package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cioddi/metromesh-sub000/internal/game"
	"github.com/cioddi/metromesh-sub000/internal/geo"
)

// Client -> Server actions
const (
	ActionAddStation   = "add_station"
	ActionCreateRoute  = "create_route"
	ActionExtendRoute  = "extend_route"
	ActionSetGameSpeed = "set_game_speed"
)

// Server -> Client events
const (
	EventState = "state"
	EventError = "error"
)

// Envelope is the framing for every websocket message in both
// directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type AddStationPayload struct {
	Lng *float64 `json:"lng"`
	Lat *float64 `json:"lat"`
}

type CreateRoutePayload struct {
	StationIDs []string `json:"stationIds"`
}

type ExtendRoutePayload struct {
	RouteID   string `json:"routeId"`
	StationID string `json:"stationId"`
	AtStart   bool   `json:"atStart"`
}

type SetGameSpeedPayload struct {
	Speed float64 `json:"speed"`
}

// Client is one websocket connection. Writes go through the buffered
// send channel; a client that cannot keep up is dropped rather than
// blocking the broadcast. The closed flag guards the channel: the hub
// can drop a client while its reader goroutine is still handling a
// message, and a send on the closed channel would panic the process.
type Client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// trySend queues a message without blocking. It reports false when the
// client is already closed or its buffer is full.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once; the writer goroutine
// exits when the channel drains.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks connected clients and fans broadcast messages out to all
// of them.
type Hub struct {
	engine *game.Engine

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

func NewHub(engine *game.Engine) *Hub {
	return &Hub{
		engine:     engine,
		clients:    map[*Client]bool{},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
	}
}

// Run owns the client set; all membership changes and broadcasts go
// through this single goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.trySend(msg) {
					delete(h.clients, c)
					c.close()
				}
			}
		}
	}
}

// BroadcastState pushes the current engine snapshot to every client.
func (h *Hub) BroadcastState() {
	payload, err := json.Marshal(h.engine.Snapshot())
	if err != nil {
		log.Printf("Failed to marshal snapshot: %v", err)
		return
	}
	b, _ := json.Marshal(Envelope{Type: EventState, Payload: payload})
	h.broadcast <- b
}

func (c *Client) sendError(msg string) {
	payload, _ := json.Marshal(map[string]string{"message": msg})
	b, _ := json.Marshal(Envelope{Type: EventError, Payload: payload})
	c.trySend(b)
}

func (h *Hub) reader(c *Client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		h.handleAction(c, env)
	}
}

// handleAction applies one client action to the engine. Validation
// failures go back to the sender only; state changes reach everyone on
// the next broadcast.
func (h *Hub) handleAction(c *Client, env Envelope) {
	switch env.Type {
	case ActionAddStation:
		var p AddStationPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		if p.Lng != nil && p.Lat != nil {
			h.engine.AddStation(geo.LngLat{Lng: *p.Lng, Lat: *p.Lat})
		} else if _, err := h.engine.AddRandomStation(); err != nil {
			c.sendError(err.Error())
			return
		}
		h.BroadcastState()
	case ActionCreateRoute:
		var p CreateRoutePayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		if _, err := h.engine.CreateRoute(p.StationIDs); err != nil {
			c.sendError(err.Error())
			return
		}
		h.BroadcastState()
	case ActionExtendRoute:
		var p ExtendRoutePayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		if err := h.engine.ExtendRoute(p.RouteID, p.StationID, p.AtStart); err != nil {
			c.sendError(err.Error())
			return
		}
		h.BroadcastState()
	case ActionSetGameSpeed:
		var p SetGameSpeedPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		h.engine.SetGameSpeed(p.Speed)
		h.BroadcastState()
	}
}

func (c *Client) writer() {
	for msg := range c.send {
		c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// HandleWS upgrades the connection, registers the client, and sends it
// the current state immediately so it does not wait for the next tick
// broadcast. The snapshot is queued before the reader starts so it
// cannot race a concurrent slow-client drop.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Client{conn: conn, send: make(chan []byte, 128)}
	h.register <- c
	go c.writer()

	if payload, err := json.Marshal(h.engine.Snapshot()); err == nil {
		b, _ := json.Marshal(Envelope{Type: EventState, Payload: payload})
		c.trySend(b)
	}
	go h.reader(c)
}
