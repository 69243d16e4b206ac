package network

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/hintserver/internal/domain/player"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Client message types.
const (
	MsgTypeAspect = "ASPECT"
	MsgTypePause  = "PAUSE"
	MsgTypeResume = "RESUME"
)

// ClientMessage is a display update sent by the game client.
type ClientMessage struct {
	Type        string  `json:"type"`
	AspectRatio float64 `json:"aspect_ratio,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one websocket connection bound to a player session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	session *player.Session
}

// NewClient creates a client for session on conn.
func NewClient(hub *Hub, conn *websocket.Conn, session *player.Session) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hub.sendBuffer),
		session: session,
	}
}

// ServeWS upgrades the request and connects the player named by the
// "player" and "name" query parameters. A missing player id gets a
// generated one.
// GET /ws?player=ID&name=N
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("player"))
	if id == "" {
		id = uuid.NewString()
	}
	name := r.URL.Query().Get("name")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "player", id, "error", err)
		return
	}
	c := NewClient(h, conn, player.NewSession(id, name, time.Now()))
	if !h.Register(c) {
		conn.Close()
		return
	}

	go c.WritePump()
	go c.ReadPump()
}

// ReadPump applies client display updates until the connection closes.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", "player", c.session.ID(), "error", err)
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Warn("unparseable client message", "player", c.session.ID(), "error", err)
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg ClientMessage) {
	switch msg.Type {
	case MsgTypeAspect:
		if err := c.session.SetAspectRatio(msg.AspectRatio); err != nil {
			c.hub.logger.Warn("rejected aspect ratio", "player", c.session.ID(), "aspect", msg.AspectRatio)
		}
	case MsgTypePause:
		c.session.SetPaused(true)
	case MsgTypeResume:
		c.session.SetPaused(false)
	default:
		c.hub.logger.Warn("unknown client message type", "player", c.session.ID(), "type", msg.Type)
	}
}

// WritePump pumps hint payloads from the hub to the websocket connection.
func (c *Client) WritePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.metrics.RecordWSError()
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
