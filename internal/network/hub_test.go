package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/hintserver/internal/domain/player"
	"github.com/MRamiBalles/hintserver/internal/hint"
	"github.com/MRamiBalles/hintserver/internal/platform/logger"
	"github.com/MRamiBalles/hintserver/internal/platform/metrics"
)

var (
	_ hint.PlayerSource = (*Hub)(nil)
	_ hint.Sink         = (*Hub)(nil)
)

func startHub(t *testing.T, sendBuffer int) *Hub {
	t.Helper()
	h := NewHub(logger.Discard(), metrics.NewCollector(), sendBuffer)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

// offlineClient is a client without a connection, for exercising the hub
// bookkeeping directly.
func offlineClient(h *Hub, id string) *Client {
	return NewClient(h, nil, player.NewSession(id, "name-"+id, time.Now()))
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversHintsOverWebsocket(t *testing.T) {
	h := startHub(t, 8)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, "player=P001&name=Ana")
	require.Eventually(t, func() bool {
		_, ok := h.Lookup("P001")
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Send("P001", hint.Payload{Duration: 300, Text: "Hello", Params: []string{"x"}}))

	var msg HintMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeHint, msg.Type)
	assert.Equal(t, 300.0, msg.Duration)
	assert.Equal(t, "Hello", msg.Text)
	assert.Equal(t, []string{"x"}, msg.Params)
}

func TestClientMessagesUpdateSession(t *testing.T) {
	h := startHub(t, 8)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, "player=P001")
	require.Eventually(t, func() bool {
		_, ok := h.Lookup("P001")
		return ok
	}, time.Second, 5*time.Millisecond)
	p, _ := h.Lookup("P001")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgTypeAspect, AspectRatio: 2.4}))
	require.Eventually(t, func() bool { return p.AspectRatio() == 2.4 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgTypeAspect, AspectRatio: 50}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgTypePause}))
	require.Eventually(t, func() bool { return h.IsPaused(p) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2.4, p.AspectRatio())

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgTypeResume}))
	require.Eventually(t, func() bool { return !h.IsPaused(p) }, time.Second, 5*time.Millisecond)
}

func TestDisconnectRemovesPlayer(t *testing.T) {
	h := startHub(t, 8)
	left := make(chan string, 1)
	h.OnLeave = func(id string) { left <- id }
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, "player=P001")
	require.Eventually(t, func() bool { return len(h.Players()) == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	select {
	case id := <-left:
		assert.Equal(t, "P001", id)
	case <-time.After(2 * time.Second):
		t.Fatal("OnLeave not called")
	}
	assert.Empty(t, h.Players())
}

func TestSendDropsWhenBufferFull(t *testing.T) {
	m := metrics.NewCollector()
	h := NewHub(logger.Discard(), m, 1)
	h.add(offlineClient(h, "P001"))

	require.NoError(t, h.Send("P001", hint.Payload{Text: "a"}))
	assert.ErrorIs(t, h.Send("P001", hint.Payload{Text: "b"}), ErrSendBufferFull)
	assert.ErrorIs(t, h.Send("ghost", hint.Payload{Text: "c"}), hint.ErrUnknownPlayer)
	assert.Equal(t, int64(1), m.WSErrors)
	assert.Equal(t, int64(1), m.WSMessagesOut)
}

func TestReconnectReplacesPreviousClient(t *testing.T) {
	h := NewHub(logger.Discard(), nil, 4)
	joins := 0
	h.OnJoin = func(*player.Session) { joins++ }

	first := offlineClient(h, "P001")
	second := offlineClient(h, "P001")
	h.add(first)
	h.add(second)

	_, open := <-first.send
	assert.False(t, open)
	assert.Len(t, h.Players(), 1)
	assert.Equal(t, 1, joins)

	// The stale client's unregister must not drop the new one.
	h.remove(first)
	_, ok := h.Lookup("P001")
	assert.True(t, ok)
}

func TestPlayersKeepConnectionOrder(t *testing.T) {
	h := NewHub(logger.Discard(), nil, 4)
	for _, id := range []string{"c", "a", "b"} {
		h.add(offlineClient(h, id))
	}
	h.remove(h.clients["a"])

	var ids []string
	for _, p := range h.Players() {
		ids = append(ids, p.ID())
	}
	assert.Equal(t, []string{"c", "b"}, ids)
	require.Len(t, h.Sessions(), 2)
	assert.Equal(t, "name-c", h.Sessions()[0].Name)
}
