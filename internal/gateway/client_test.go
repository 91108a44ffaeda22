package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/breakthis/internal/config"
	"github.com/soyeahso/breakthis/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

// socketPair returns a server-side Client and the browser-side connection
// talking to it.
func socketPair(t *testing.T) (*Client, *websocket.Conn) {
	t.Helper()
	serverSide := make(chan *websocket.Conn, 1)
	up := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- conn
	}))
	t.Cleanup(ts.Close)

	browser, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { browser.Close() })

	c := NewClient(<-serverSide, ClientInfo{ID: "page"}, "duel-1")
	t.Cleanup(func() { c.Close() })
	return c, browser
}

func TestNewClient(t *testing.T) {
	c := NewClient(nil, ClientInfo{ID: "page", Version: "1"}, "duel-9")
	assert.NotEmpty(t, c.ConnID)
	assert.Equal(t, "duel-9", c.DuelID)
	assert.Equal(t, "page", c.Info.ID)
	assert.False(t, c.ConnectedAt.IsZero())

	other := NewClient(nil, ClientInfo{}, "duel-9")
	assert.NotEqual(t, c.ConnID, other.ConnID)
}

func TestClientSendEvent_SequencePerConnection(t *testing.T) {
	a, browserA := socketPair(t)
	b, browserB := socketPair(t)

	require.NoError(t, a.SendEvent(EventDuelState, map[string]string{"n": "1"}))
	require.NoError(t, a.SendEvent(EventDuelState, map[string]string{"n": "2"}))
	require.NoError(t, b.SendEvent(EventDuelState, map[string]string{"n": "1"}))

	var f Frame
	require.NoError(t, browserA.ReadJSON(&f))
	assert.Equal(t, int64(1), f.Seq)
	assert.Equal(t, EventDuelState, f.Event)

	require.NoError(t, browserA.ReadJSON(&f))
	assert.Equal(t, int64(2), f.Seq)

	require.NoError(t, browserB.ReadJSON(&f))
	assert.Equal(t, int64(1), f.Seq, "second connection counts independently")
}

func TestClientRespond(t *testing.T) {
	c, browser := socketPair(t)

	require.NoError(t, c.Respond("req-1", map[string]bool{"ok": true}))
	require.NoError(t, c.RespondError("req-2", ErrorShape{Code: CodeNotFound, Message: "nope"}))

	var f Frame
	require.NoError(t, browser.ReadJSON(&f))
	assert.Equal(t, "req-1", f.ID)
	require.NotNil(t, f.OK)
	assert.True(t, *f.OK)

	require.NoError(t, browser.ReadJSON(&f))
	assert.Equal(t, "req-2", f.ID)
	require.NotNil(t, f.OK)
	assert.False(t, *f.OK)
	require.NotNil(t, f.Error)
	assert.Equal(t, CodeNotFound, f.Error.Code)
}

func TestClientReadFrame(t *testing.T) {
	c, browser := socketPair(t)

	req, err := NewRequest("r1", "duel.state", nil)
	require.NoError(t, err)
	require.NoError(t, browser.WriteJSON(req))

	got, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "req", got.Type)
	assert.Equal(t, "duel.state", got.Method)

	require.NoError(t, browser.WriteMessage(websocket.TextMessage, []byte("{not json")))
	_, err = c.ReadFrame()
	assert.Error(t, err)
}

func TestClientClose(t *testing.T) {
	c, _ := socketPair(t)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "second close is a no-op")
	assert.ErrorIs(t, c.SendEvent(EventDuelState, nil), ErrClientClosed)
	assert.ErrorIs(t, c.Respond("r", nil), ErrClientClosed)
}

func TestClientRegistry(t *testing.T) {
	reg := NewClientRegistry(testLog())
	assert.Equal(t, 0, reg.Count())

	reg.Add(&Client{ConnID: "conn-1", DuelID: "duel-1"})
	reg.Add(&Client{ConnID: "conn-2", DuelID: "duel-2"})
	assert.Equal(t, 2, reg.Count())

	got, ok := reg.Get("conn-2")
	require.True(t, ok)
	assert.Equal(t, "duel-2", got.DuelID)

	reg.Remove("conn-1")
	reg.Remove("conn-1")
	assert.Equal(t, 1, reg.Count())
	_, ok = reg.Get("conn-1")
	assert.False(t, ok)
}

func TestClientRegistryCloseAll(t *testing.T) {
	reg := NewClientRegistry(testLog())
	c, browser := socketPair(t)
	reg.Add(c)
	reg.Add(&Client{ConnID: "already-closed", closed: true})

	reg.CloseAll()
	assert.Equal(t, 0, reg.Count())

	_, _, err := browser.ReadMessage()
	assert.Error(t, err, "browser sees the socket close")
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		name string
		bind string
		port int
		host string
		want string
	}{
		{"loopback", "loopback", 8501, "", "127.0.0.1:8501"},
		{"lan", "lan", 9999, "", "0.0.0.0:9999"},
		{"auto", "auto", 8080, "", "0.0.0.0:8080"},
		{"custom_default", "custom", 3000, "", "0.0.0.0:3000"},
		{"custom_host", "custom", 3000, "10.0.0.1", "10.0.0.1:3000"},
		{"unknown_fallback", "whatever", 5000, "", "127.0.0.1:5000"},
		{"empty_fallback", "", 5000, "", "127.0.0.1:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.GatewayConfig{Bind: tt.bind, Port: tt.port, CustomBindHost: tt.host}
			assert.Equal(t, tt.want, resolveBindAddr(cfg))
		})
	}
}
