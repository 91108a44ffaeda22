package gateway

import (
	"encoding/json"

	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/domain"
)

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Event names pushed to clients.
const (
	EventConnectChallenge = "connect.challenge"
	EventChatBroadcast    = "chat.broadcast"
	EventChatDelta        = "chat.delta"
	EventChatTurn         = "chat.turn"
	EventDuelState        = "duel.state"
)

// Error codes used in response frames.
const (
	CodeProtocolError  = "protocol_error"
	CodeInvalidParams  = "invalid_params"
	CodeMethodNotFound = "method_not_found"
	CodeNotFound       = "not_found"
	CodeUnavailable    = "unavailable"
)

// Frame is the base envelope for all WebSocket messages.
// The Type field discriminates between request, response, and event frames.
type Frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	// Error (response only)
	Error *ErrorShape `json:"error,omitempty"`
}

// ErrorShape is the standard error format in response frames.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ConnectParams are sent by the client in the initial "connect" request.
// There are no credentials: every visitor gets their own duel.
type ConnectParams struct {
	MinProtocol int        `json:"minProtocol"`
	MaxProtocol int        `json:"maxProtocol"`
	Client      ClientInfo `json:"client"`
	Locale      string     `json:"locale,omitempty"`
	UserAgent   string     `json:"userAgent,omitempty"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
}

// HelloOK is the server's response payload after a successful connect.
type HelloOK struct {
	Protocol int          `json:"protocol"`
	Server   ServerInfo   `json:"server"`
	Features Features     `json:"features"`
	Policy   ServerPolicy `json:"policy"`
	Duel     DuelState    `json:"duel"`
}

// ServerInfo identifies the gateway server.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
	Model   string `json:"model,omitempty"`
}

// Features advertises available RPC methods and events.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// ServerPolicy communicates protocol limits to the client.
type ServerPolicy struct {
	MaxPayload int `json:"maxPayload"`
	TurnLimit  int `json:"turnLimit"`
}

// DuelState is the full renderable state of a visitor's duel.
type DuelState struct {
	DuelID   string               `json:"duelId"`
	Sessions []agent.SessionState `json:"sessions"`
	Pending  *BroadcastInfo       `json:"pending,omitempty"`
}

// BroadcastInfo describes a broadcast request.
type BroadcastInfo struct {
	RequestID string `json:"requestId"`
	Text      string `json:"text"`
	Notice    string `json:"notice"`
}

// DeltaEvent carries one streamed chunk of an agent's reply.
type DeltaEvent struct {
	RequestID string           `json:"requestId"`
	Agent     domain.AgentKind `json:"agent"`
	Content   string           `json:"content"`
	Prefix    string           `json:"prefix"`
}

// TurnEvent reports a finished turn.
type TurnEvent struct {
	RequestID string             `json:"requestId"`
	Agent     domain.AgentKind   `json:"agent"`
	Outcome   OutcomeView        `json:"outcome"`
	State     agent.SessionState `json:"state"`
}

// OutcomeView is the wire form of domain.Outcome.
type OutcomeView struct {
	Status domain.OutcomeStatus `json:"status"`
	Text   string               `json:"text,omitempty"`
	Error  string               `json:"error,omitempty"`
	Notice string               `json:"notice,omitempty"`
}

func outcomeView(o domain.Outcome) OutcomeView {
	v := OutcomeView{Status: o.Status, Text: o.Text, Error: o.Error()}
	if o.Status == domain.OutcomeLimitReached {
		v.Notice = agent.LimitNotice
	}
	return v
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
		Params: raw,
	}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		OK:      &ok,
		Payload: raw,
	}, nil
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id string, errShape ErrorShape) Frame {
	ok := false
	return Frame{
		Type:  FrameTypeResponse,
		ID:    id,
		OK:    &ok,
		Error: &errShape,
	}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}

// Protocol version supported by this server.
const ProtocolVersion = 1
