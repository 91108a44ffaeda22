package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/config"
	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/soyeahso/breakthis/internal/llm"
	"github.com/soyeahso/breakthis/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamingMock() *llm.MockClient {
	return &llm.MockClient{
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			return llm.StreamOf("Hello", " there"), nil
		},
	}
}

func testServer(t *testing.T, client llm.Client) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Defaults()
	log := logging.New(io.Discard, "silent")

	duels := agent.NewDuelStore(client, agent.StoreConfig{Model: cfg.LLM.Model, Stream: true}, log)
	srv := New(cfg, duels, log, WithTurnTimeout(5*time.Second))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// connectedConn dials and completes the handshake.
func connectedConn(t *testing.T, ts *httptest.Server) (*websocket.Conn, HelloOK) {
	t.Helper()
	conn := dial(t, ts)

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	require.Equal(t, EventConnectChallenge, challenge.Event)

	req, err := NewRequest("connect-1", "connect", ConnectParams{
		MinProtocol: 1,
		MaxProtocol: 1,
		Client:      ClientInfo{ID: "test-client", Version: "1.0.0", Platform: "linux"},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.OK)
	require.True(t, *resp.OK)

	var hello HelloOK
	require.NoError(t, json.Unmarshal(resp.Payload, &hello))
	return conn, hello
}

// call sends a request and collects events until the matching response.
func call(t *testing.T, conn *websocket.Conn, id, method string, params any) (Frame, []Frame) {
	t.Helper()
	req, err := NewRequest(id, method, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	var events []Frame
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == FrameTypeResponse && f.ID == id {
			return f, events
		}
		events = append(events, f)
	}
}

func eventsNamed(frames []Frame, name string) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t, streamingMock())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Empty(t, health.Version)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t, streamingMock())

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPageRenders(t *testing.T) {
	_, ts := testServer(t, streamingMock())

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)
	assert.Contains(t, page, "Break This Agent")
	for _, p := range agent.Profiles() {
		assert.Contains(t, page, p.Title)
	}
	for _, c := range agent.Challenges() {
		assert.Contains(t, page, `data-challenge="`+c.ID+`"`)
	}
	assert.Contains(t, page, domain.EmptyPlaceholder)
}

func TestWebSocketHandshakeSuccess(t *testing.T) {
	srv, ts := testServer(t, streamingMock())

	_, hello := connectedConn(t, ts)
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.Server.ConnID)
	assert.Contains(t, hello.Features.Methods, "chat.send")
	assert.Contains(t, hello.Features.Events, EventChatDelta)
	assert.Equal(t, agent.TurnLimit, hello.Policy.TurnLimit)

	require.Len(t, hello.Duel.Sessions, 2)
	assert.Equal(t, domain.AgentControl, hello.Duel.Sessions[0].Agent)
	assert.Equal(t, domain.AgentGuarded, hello.Duel.Sessions[1].Agent)
	assert.Empty(t, hello.Duel.Sessions[0].Turns)
	assert.Nil(t, hello.Duel.Pending)

	assert.NotNil(t, srv.duels.Get(hello.Duel.DuelID))
}

func TestWebSocketHandshakeWrongMethod(t *testing.T) {
	srv, ts := testServer(t, streamingMock())
	conn := dial(t, ts)

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))

	req, _ := NewRequest("req-1", "health", nil)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeProtocolError, resp.Error.Code)
	assert.Equal(t, 0, srv.duels.Count())
}

func TestWebSocketEachConnectionGetsOwnDuel(t *testing.T) {
	srv, ts := testServer(t, streamingMock())

	_, a := connectedConn(t, ts)
	_, b := connectedConn(t, ts)
	assert.NotEqual(t, a.Duel.DuelID, b.Duel.DuelID)
	assert.Equal(t, 2, srv.duels.Count())
}

func TestDuelRemovedOnDisconnect(t *testing.T) {
	srv, ts := testServer(t, streamingMock())

	conn, hello := connectedConn(t, ts)
	require.NotNil(t, srv.duels.Get(hello.Duel.DuelID))

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	assert.Eventually(t, func() bool {
		return srv.duels.Get(hello.Duel.DuelID) == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRPCHealth(t *testing.T) {
	_, ts := testServer(t, streamingMock())
	conn, _ := connectedConn(t, ts)

	resp, _ := call(t, conn, "h-1", "health", nil)
	require.True(t, *resp.OK)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Clients)
	assert.Equal(t, 1, health.Duels)
	assert.Equal(t, config.DefaultModel, health.Model)
}

func TestWebSocketRPCUnknownMethod(t *testing.T) {
	_, ts := testServer(t, streamingMock())
	conn, _ := connectedConn(t, ts)

	resp, _ := call(t, conn, "x-1", "nonexistent.method", nil)
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestCheckWebSocketOrigin(t *testing.T) {
	check := checkWebSocketOrigin([]string{"https://demo.example"})

	req := httptest.NewRequest("GET", "http://localhost:8501/ws", nil)
	assert.True(t, check(req), "no origin header")

	req.Header.Set("Origin", "http://localhost:8501")
	assert.True(t, check(req), "same host")

	req.Header.Set("Origin", "https://demo.example")
	assert.True(t, check(req), "listed origin")

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}

func TestServerStart(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Port = 0 // let OS pick a port

	log := logging.New(io.Discard, "silent")
	srv := New(cfg, agent.NewDuelStore(streamingMock(), agent.StoreConfig{}, log), log)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	err := <-errCh
	assert.NoError(t, err)
}

func TestServerStartTLSKeyPairMissing(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Port = 0
	cfg.Gateway.TLS = config.GatewayTLS{
		Enabled:  true,
		CertPath: filepath.Join(t.TempDir(), "cert.pem"),
		KeyPath:  filepath.Join(t.TempDir(), "key.pem"),
	}

	log := logging.New(io.Discard, "silent")
	srv := New(cfg, agent.NewDuelStore(streamingMock(), agent.StoreConfig{}, log), log)

	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLS")
}

func TestWebSocketHandshakeOldProtocol(t *testing.T) {
	srv, ts := testServer(t, streamingMock())
	conn := dial(t, ts)

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))

	req, _ := NewRequest("c-1", "connect", ConnectParams{MinProtocol: 0, MaxProtocol: -1})
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "c-1", resp.ID)
	assert.Equal(t, CodeProtocolError, resp.Error.Code)
	assert.Equal(t, 0, srv.duels.Count())
}
