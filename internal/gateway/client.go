package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/breakthis/internal/logging"
)

// writeWait bounds a single frame write to a slow or vanished browser.
const writeWait = 10 * time.Second

// Client is one connected browser tab. It owns exactly one duel, identified
// by DuelID, for the lifetime of the socket.
type Client struct {
	ConnID      string
	Info        ClientInfo
	Socket      *websocket.Conn
	DuelID      string
	ConnectedAt time.Time

	mu     sync.Mutex // guards writes, seq and closed
	seq    int64
	closed bool
}

// NewClient creates a Client for a connection that completed the handshake.
func NewClient(conn *websocket.Conn, info ClientInfo, duelID string) *Client {
	return &Client{
		ConnID:      uuid.New().String(),
		Info:        info,
		Socket:      conn,
		DuelID:      duelID,
		ConnectedAt: time.Now(),
	}
}

// Send writes a frame. Safe for concurrent use.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(frame)
}

func (c *Client) writeLocked(frame Frame) error {
	if c.closed {
		return ErrClientClosed
	}
	c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Socket.WriteJSON(frame)
}

// SendEvent pushes a named event. Sequence numbers start at 1 and increase
// by one per event on this connection, so a page can detect gaps.
func (c *Client) SendEvent(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := NewEvent(event, payload, c.seq+1)
	if err != nil {
		return err
	}
	if err := c.writeLocked(f); err != nil {
		return err
	}
	c.seq++
	return nil
}

// Respond sends a success response for the given request ID.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError sends an error response for the given request ID.
func (c *Client) RespondError(reqID string, errShape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, errShape))
}

// ReadFrame reads the next frame from the socket.
func (c *Client) ReadFrame() (Frame, error) {
	var f Frame
	err := c.Socket.ReadJSON(&f)
	return f, err
}

// Close closes the socket. Further sends fail with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.Socket.Close()
}

// ClientRegistry tracks connected clients by connection ID.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ConnID] = c
	n := len(r.clients)
	r.mu.Unlock()
	r.log.Info().Str("connId", c.ConnID).Str("duelId", c.DuelID).Int("connected", n).Msg("client connected")
}

// Remove unregisters a client.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	c, ok := r.clients[connID]
	delete(r.clients, connID)
	n := len(r.clients)
	r.mu.Unlock()
	if ok {
		r.log.Info().
			Str("connId", connID).
			Str("duelId", c.DuelID).
			Dur("connectedFor", time.Since(c.ConnectedAt)).
			Int("connected", n).
			Msg("client disconnected")
	}
}

// Get returns a client by connection ID.
func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes and unregisters every client.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
