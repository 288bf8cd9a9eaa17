package push

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"livechart/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the envelope of every frame pushed to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Gateway fans published messages out to every connected WebSocket client.
// A client that falls behind loses messages rather than blocking publishers.
// New clients receive the last published message first.
type Gateway struct {
	logger  *zap.Logger
	clients map[*Client]bool
	last    []byte
	closed  bool
	mu      sync.RWMutex
}

func NewGateway(logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		logger:  logger,
		clients: make(map[*Client]bool),
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("failed to upgrade websocket", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		_ = conn.Close()
		return
	}
	g.clients[client] = true
	if g.last != nil {
		client.send <- g.last
	}
	g.mu.Unlock()
	metrics.WSConnections.Inc()
	g.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	go g.writePump(client)
	g.readPump(client)
}

// Publish broadcasts a typed message to all clients.
func (g *Gateway) Publish(kind string, data any) error {
	b, err := json.Marshal(Message{Type: kind, Data: data})
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.last = b
	for c := range g.clients {
		select {
		case c.send <- b:
		default:
			g.logger.Warn("dropping push message for slow client")
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (g *Gateway) Clients() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// Close disconnects every client.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for c := range g.clients {
		close(c.send)
		delete(g.clients, c)
		metrics.WSConnections.Dec()
	}
}

func (g *Gateway) unregister(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.clients[c]; ok {
		delete(g.clients, c)
		close(c.send)
		metrics.WSConnections.Dec()
	}
}

// readPump only watches for pongs and close; clients do not send commands.
func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (g *Gateway) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
