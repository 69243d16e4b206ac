// Package network is the websocket output sink of the hint server and its
// admin HTTP API.
package network

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/MRamiBalles/hintserver/internal/domain/player"
	"github.com/MRamiBalles/hintserver/internal/hint"
	"github.com/MRamiBalles/hintserver/internal/platform/logger"
	"github.com/MRamiBalles/hintserver/internal/platform/metrics"
)

// ErrSendBufferFull is returned by Send when a client cannot keep up.
var ErrSendBufferFull = errors.New("client send buffer full")

// MsgTypeHint tags hint payloads on the wire.
const MsgTypeHint = "hint"

// HintMessage is the server to client overlay message.
type HintMessage struct {
	Type     string   `json:"type"`
	Duration float64  `json:"duration"`
	Text     string   `json:"text"`
	Params   []string `json:"params,omitempty"`
}

// Hub maintains the set of connected players. It is the hint.PlayerSource
// and hint.Sink of the scheduler.
type Hub struct {
	clients    map[string]*Client
	order      []*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logger.Logger
	metrics    *metrics.Collector
	sendBuffer int

	// OnJoin and OnLeave run on the hub goroutine.
	OnJoin  func(s *player.Session)
	OnLeave func(playerID string)
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger, m *metrics.Collector, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	if m == nil {
		m = metrics.NewCollector()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log,
		metrics:    m,
		sendBuffer: sendBuffer,
	}
}

// Run handles client connections until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, c := range h.order {
				close(c.send)
			}
			h.clients = make(map[string]*Client)
			h.order = nil
			h.mu.Unlock()
			h.logger.Info("websocket hub shutting down")
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		}
	}
}

// Register connects c. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister disconnects c.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) add(c *Client) {
	id := c.session.ID()
	h.mu.Lock()
	old, replaced := h.clients[id]
	if replaced {
		h.drop(old)
	}
	h.clients[id] = c
	h.order = append(h.order, c)
	h.mu.Unlock()

	h.metrics.RecordWSConnection(1)
	if replaced {
		h.metrics.RecordWSConnection(-1)
		h.logger.Warn("player reconnected, closing previous connection", "player", id)
		return
	}
	h.logger.Info("player connected", "player", id, "name", c.session.Name())
	if h.OnJoin != nil {
		h.OnJoin(c.session)
	}
}

func (h *Hub) remove(c *Client) {
	id := c.session.ID()
	h.mu.Lock()
	if h.clients[id] != c {
		h.mu.Unlock()
		return
	}
	h.drop(c)
	h.mu.Unlock()

	h.metrics.RecordWSConnection(-1)
	h.logger.Info("player disconnected", "player", id)
	if h.OnLeave != nil {
		h.OnLeave(id)
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c.session.ID())
	for i, x := range h.order {
		if x == c {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	close(c.send)
}

// Players implements hint.PlayerSource. Players come in connection order.
func (h *Hub) Players() []hint.Player {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]hint.Player, len(h.order))
	for i, c := range h.order {
		out[i] = c.session
	}
	return out
}

// Lookup implements hint.PlayerSource.
func (h *Hub) Lookup(id string) (hint.Player, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return nil, false
	}
	return c.session, true
}

// IsPaused implements hint.PlayerSource.
func (h *Hub) IsPaused(p hint.Player) bool {
	if s, ok := p.(*player.Session); ok {
		return s.Paused()
	}
	return false
}

// Sessions returns a snapshot of every connected player.
func (h *Hub) Sessions() []player.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]player.Snapshot, len(h.order))
	for i, c := range h.order {
		out[i] = c.session.Snapshot()
	}
	return out
}

// Send implements hint.Sink. It never blocks: a client whose buffer is full
// misses the payload.
func (h *Hub) Send(playerID string, p hint.Payload) error {
	msg, err := json.Marshal(HintMessage{
		Type:     MsgTypeHint,
		Duration: p.Duration,
		Text:     p.Text,
		Params:   p.Params,
	})
	if err != nil {
		return errors.Wrap(err, "failed to serialize hint payload")
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[playerID]
	if !ok {
		return errors.Wrapf(hint.ErrUnknownPlayer, "%q", playerID)
	}
	select {
	case c.send <- msg:
		h.metrics.RecordWSMessage(false)
		return nil
	default:
		h.metrics.RecordWSError()
		return errors.Wrapf(ErrSendBufferFull, "%q", playerID)
	}
}
