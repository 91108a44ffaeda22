package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/version"
)

// handshakeError is a handshake failure the browser is told about before
// the socket closes.
type handshakeError struct {
	reqID string
	code  string
	msg   string
	err   error
}

func (e *handshakeError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *handshakeError) Unwrap() error { return e.err }

// handleWebSocket runs one visitor's socket: handshake, a fresh duel, then
// requests until the socket closes. The duel dies with the socket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client, err := s.handshake(conn)
	if err != nil {
		var he *handshakeError
		if errors.As(err, &he) {
			rejectAndClose(conn, he)
		}
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		s.duels.Remove(client.DuelID)
		client.Close()
	}()

	s.readLoop(client)
}

// handshake sends connect.challenge, waits for the connect request, and
// answers with hello carrying the new duel's state.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	challenge, err := NewEvent(EventConnectChallenge, map[string]any{
		"nonce": uuid.New().String(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("send challenge: %w", err)
	}

	params, reqID, err := readConnect(conn)
	if err != nil {
		return nil, err
	}

	duel := s.duels.Create()
	client := NewClient(conn, params.Client, duel.ID())

	resp, err := NewResponse(reqID, s.hello(client, duel))
	if err == nil {
		err = conn.WriteJSON(resp)
	}
	if err != nil {
		s.duels.Remove(duel.ID())
		return nil, fmt.Errorf("send hello: %w", err)
	}

	s.log.Debug().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Str("clientVersion", params.Client.Version).
		Str("duelId", duel.ID()).
		Msg("handshake complete")
	return client, nil
}

// readConnect reads the first browser frame, which must be a compatible
// connect request.
func readConnect(conn *websocket.Conn) (ConnectParams, string, error) {
	var params ConnectParams
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return params, "", fmt.Errorf("read connect: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		return params, "", &handshakeError{
			reqID: frame.ID,
			code:  CodeProtocolError,
			msg:   fmt.Sprintf("expected connect request, got %s %s", frame.Type, frame.Method),
		}
	}
	if len(frame.Params) > 0 {
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return params, "", &handshakeError{reqID: frame.ID, code: CodeInvalidParams, msg: "invalid connect params", err: err}
		}
	}
	if params.MaxProtocol != 0 && params.MaxProtocol < ProtocolVersion {
		return params, "", &handshakeError{
			reqID: frame.ID,
			code:  CodeProtocolError,
			msg:   fmt.Sprintf("unsupported protocol version %d", params.MaxProtocol),
		}
	}
	return params, frame.ID, nil
}

func (s *Server) hello(client *Client, duel *agent.Duel) HelloOK {
	return HelloOK{
		Protocol: ProtocolVersion,
		Server: ServerInfo{
			Version: s.version,
			Commit:  version.Commit,
			ConnID:  client.ConnID,
			Model:   s.cfg.LLM.Model,
		},
		Features: Features{Methods: s.Methods(), Events: s.Events()},
		Policy:   ServerPolicy{MaxPayload: maxPayload, TurnLimit: agent.TurnLimit},
		Duel:     duelState(duel),
	}
}

// rejectAndClose tells the browser why the handshake failed.
func rejectAndClose(conn *websocket.Conn, he *handshakeError) {
	conn.WriteJSON(NewErrorResponse(he.reqID, ErrorShape{Code: he.code, Message: he.msg}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, he.code))
}

// readLoop serves requests in arrival order; a handler finishes before the
// next frame is read.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		switch {
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			return
		case err != nil:
			s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("socket read ended")
			return
		case frame.Type != FrameTypeRequest:
			continue
		}
		s.dispatch(client, frame)
	}
}

func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    CodeMethodNotFound,
			Message: "unknown method: " + frame.Method,
		})
		return
	}
	start := time.Now()
	handler(&RequestContext{Client: client, Frame: frame, Server: s})
	s.log.Debug().
		Str("connId", client.ConnID).
		Str("method", frame.Method).
		Dur("took", time.Since(start)).
		Msg("rpc")
}

// emit pushes an event to one client. A failed push is not fatal to the
// turn: the final response carries the full state anyway.
func (s *Server) emit(c *Client, event string, payload any) {
	if err := c.SendEvent(event, payload); err != nil {
		s.log.Debug().Err(err).Str("connId", c.ConnID).Str("event", event).Msg("event not delivered")
	}
}
