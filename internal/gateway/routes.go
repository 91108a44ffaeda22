package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/domain"
)

// defaultTurnTimeout bounds one chat.send or challenge.send request,
// including both sessions of a broadcast pass.
const defaultTurnTimeout = 3 * time.Minute

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("duel.state", s.rpcDuelState)
	s.Handle("agent.list", s.rpcAgentList)
	s.Handle("challenge.list", s.rpcChallengeList)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("challenge.send", s.rpcChallengeSend)
	s.Handle("chat.clear", s.rpcChatClear)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
		Duels:   s.duels.Count(),
		Model:   s.cfg.LLM.Model,
		Uptime:  int64(s.uptime().Seconds()),
	})
}

func (s *Server) rpcDuelState(rc *RequestContext) {
	duel, ok := rc.duel()
	if !ok {
		return
	}
	rc.Respond(duelState(duel))
}

func (s *Server) rpcAgentList(rc *RequestContext) {
	rc.Respond(map[string]any{"agents": agent.Profiles()})
}

func (s *Server) rpcChallengeList(rc *RequestContext) {
	rc.Respond(map[string]any{"challenges": agent.Challenges()})
}

type chatSendParams struct {
	Agent   string  `json:"agent"`
	Message *string `json:"message"`
}

// ChatSendResult is the response to chat.send.
type ChatSendResult struct {
	Agent   domain.AgentKind   `json:"agent"`
	Outcome OutcomeView        `json:"outcome"`
	State   agent.SessionState `json:"state"`
}

// rpcChatSend submits text to one session directly. The coordinator is not
// involved, so a pending broadcast stays pending.
func (s *Server) rpcChatSend(rc *RequestContext) {
	var p chatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	kind, err := domain.ParseAgentKind(p.Agent)
	if err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Message == nil {
		rc.RespondError(CodeInvalidParams, "message is required")
		return
	}
	duel, ok := rc.duel()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.turnTimeout)
	defer cancel()

	sess := duel.Session(kind)
	requestID := rc.Frame.ID
	outcome := sess.SubmitTurn(ctx, *p.Message, func(chunk, prefix string) {
		s.emit(rc.Client, EventChatDelta, DeltaEvent{
			RequestID: requestID,
			Agent:     kind,
			Content:   chunk,
			Prefix:    prefix,
		})
	})

	state := sess.Snapshot()
	view := outcomeView(outcome)
	s.emit(rc.Client, EventChatTurn, TurnEvent{
		RequestID: requestID,
		Agent:     kind,
		Outcome:   view,
		State:     state,
	})
	rc.Respond(ChatSendResult{Agent: kind, Outcome: view, State: state})
}

type challengeSendParams struct {
	Challenge string  `json:"challenge"`
	Message   *string `json:"message"`
}

// ChallengeSendResult is the response to challenge.send.
type ChallengeSendResult struct {
	RequestID string     `json:"requestId"`
	Results   []PassView `json:"results"`
	Duel      DuelState  `json:"duel"`
}

// PassView is the wire form of agent.PassResult.
type PassView struct {
	Agent   domain.AgentKind `json:"agent"`
	Text    string           `json:"text"`
	Outcome OutcomeView      `json:"outcome"`
}

// rpcChallengeSend broadcasts a canned challenge (or free text) to both
// sessions and runs one delivery pass.
func (s *Server) rpcChallengeSend(rc *RequestContext) {
	var p challengeSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	var text string
	switch {
	case p.Challenge != "" && p.Message != nil:
		rc.RespondError(CodeInvalidParams, "specify challenge or message, not both")
		return
	case p.Challenge != "":
		c, err := agent.ChallengeByID(p.Challenge)
		if err != nil {
			rc.RespondError(CodeNotFound, err.Error())
			return
		}
		text = c.Text
	case p.Message != nil:
		text = *p.Message
	default:
		rc.RespondError(CodeInvalidParams, "challenge or message is required")
		return
	}

	duel, ok := rc.duel()
	if !ok {
		return
	}

	req := duel.Broadcast(text)
	s.emit(rc.Client, EventChatBroadcast, broadcastInfo(req))

	ctx, cancel := context.WithTimeout(context.Background(), s.turnTimeout)
	defer cancel()

	results := duel.RunPass(ctx, func(kind domain.AgentKind, chunk, prefix string) {
		s.emit(rc.Client, EventChatDelta, DeltaEvent{
			RequestID: req.ID,
			Agent:     kind,
			Content:   chunk,
			Prefix:    prefix,
		})
	})

	views := make([]PassView, 0, len(results))
	for _, r := range results {
		view := outcomeView(r.Outcome)
		views = append(views, PassView{Agent: r.Agent, Text: r.Text, Outcome: view})
		s.emit(rc.Client, EventChatTurn, TurnEvent{
			RequestID: req.ID,
			Agent:     r.Agent,
			Outcome:   view,
			State:     duel.Session(r.Agent).Snapshot(),
		})
	}

	state := duelState(duel)
	s.emit(rc.Client, EventDuelState, state)
	rc.Respond(ChallengeSendResult{RequestID: req.ID, Results: views, Duel: state})
}

type chatClearParams struct {
	Agent string `json:"agent"`
}

func (s *Server) rpcChatClear(rc *RequestContext) {
	var p chatClearParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	kind, err := domain.ParseAgentKind(p.Agent)
	if err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	duel, ok := rc.duel()
	if !ok {
		return
	}

	sess := duel.Session(kind)
	sess.Clear()
	state := duelState(duel)
	s.emit(rc.Client, EventDuelState, state)
	rc.Respond(sess.Snapshot())
}

func duelState(d *agent.Duel) DuelState {
	st := DuelState{DuelID: d.ID(), Sessions: d.Snapshot()}
	if req, ok := d.Pending(); ok {
		info := broadcastInfo(req)
		st.Pending = &info
	}
	return st
}

func broadcastInfo(req agent.BroadcastRequest) BroadcastInfo {
	return BroadcastInfo{
		RequestID: req.ID,
		Text:      req.Text,
		Notice:    agent.BroadcastNotice(req.Text),
	}
}
