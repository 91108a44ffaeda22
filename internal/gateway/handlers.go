package gateway

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/domain"
)

//go:embed web/index.html
var webFS embed.FS

var pageTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the RPC handler populates all fields.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
	Duels   int    `json:"duels,omitempty"`
	Model   string `json:"model,omitempty"`
	Uptime  int64  `json:"uptimeSec,omitempty"`
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

type pageData struct {
	Version          string
	Model            string
	TurnLimit        int
	LimitNotice      string
	EmptyPlaceholder string
	Profiles         []agent.Profile
	Challenges       []agent.Challenge
}

// handlePage renders the comparison page. Conversation state lives in the
// WebSocket connection, so the page itself is static per server.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Version:          s.version,
		Model:            s.cfg.LLM.Model,
		TurnLimit:        agent.TurnLimit,
		LimitNotice:      agent.LimitNotice,
		EmptyPlaceholder: domain.EmptyPlaceholder,
		Profiles:         agent.Profiles(),
		Challenges:       agent.Challenges(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("rendering page")
	}
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{
		Code:    code,
		Message: message,
	})
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

// duel returns the caller's duel, responding with an error when it is gone.
func (rc *RequestContext) duel() (*agent.Duel, bool) {
	d := rc.Server.duels.Get(rc.Client.DuelID)
	if d == nil {
		rc.RespondError(CodeUnavailable, "duel not found")
		return nil, false
	}
	return d, true
}
