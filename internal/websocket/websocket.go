package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/scoring"
)

// Message types sent to clients
const (
	TypeStandings        = "standings"
	TypeStandingsUpdated = "standings_updated"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // read-only feed, served to any origin
	},
}

// StandingsSource provides the snapshot sent to new clients
type StandingsSource interface {
	Standings(ctx context.Context) ([]scoring.Standing, error)
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	log        logger.Logger
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	source     StandingsSource
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan models.WSMessage
}

// New creates a new Hub. source may be nil, in which case new clients get
// no snapshot.
func New(log logger.Logger, source StandingsSource) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		source:     source,
	}
}

// Start runs the hub loop in a goroutine until ctx is done
func (h *Hub) Start(ctx context.Context) {
	go h.run(ctx)
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			h.log.Debug("websocket hub stopped")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("client connected", "total_clients", total)
			go h.sendSnapshot(client)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("client disconnected", "total_clients", total)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow client
					go h.leave(client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// sendSnapshot pushes the current standings to a freshly connected client
func (h *Hub) sendSnapshot(client *Client) {
	if h.source == nil {
		return
	}
	standings, err := h.source.Standings(context.Background())
	if err != nil {
		h.log.Warn("standings snapshot failed", "error", err)
		return
	}
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- models.WSMessage{Type: TypeStandings, Payload: standings}:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// BroadcastMessage sends a message to all connected clients. It is a no-op
// once the hub has stopped.
func (h *Hub) BroadcastMessage(msgType string, payload interface{}) {
	select {
	case h.broadcast <- models.WSMessage{Type: msgType, Payload: payload}:
	case <-h.done:
	}
}

// BroadcastStandings implements services.Broadcaster
func (h *Hub) BroadcastStandings(standings []scoring.Standing) {
	h.BroadcastMessage(TypeStandingsUpdated, standings)
}

// readPump drains the connection so pongs and close frames are processed.
// Clients have nothing to say.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket error", "error", err)
			}
			break
		}

		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("ignoring client message", "type", msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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

// ServeWs handles websocket requests from clients
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan models.WSMessage, sendBuffer),
	}
	if !h.join(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
