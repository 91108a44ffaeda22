package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/soyeahso/breakthis/internal/hooks"
	"github.com/soyeahso/breakthis/internal/llm"
	"github.com/soyeahso/breakthis/internal/logging"
)

// TurnLimit is the maximum history length of a fresh session (ten round trips).
const TurnLimit = 20

// ApologyText replaces the reply of a turn whose completion failed.
const ApologyText = "Sorry, I can't respond right now. Too many people are using this demo!"

// LimitNotice is shown once a session can accept no more turns.
const LimitNotice = "💬 Maximum message limit reached for this agent!"

// DeltaFunc receives each streamed chunk together with the reply text
// accumulated so far (including chunk).
type DeltaFunc func(chunk, prefix string)

// Emitter receives lifecycle events. *hooks.Manager implements it.
type Emitter interface {
	Emit(ctx context.Context, event string, data map[string]any)
}

// SessionOptions configures how a session talks to its client.
type SessionOptions struct {
	Model  string
	Stream bool
	DuelID string  // tags emitted events
	Hooks  Emitter // optional
}

// SessionState is a point-in-time view of a session for rendering.
type SessionState struct {
	Agent     domain.AgentKind `json:"agent"`
	Title     string           `json:"title"`
	Tagline   string           `json:"tagline"`
	Icon      string           `json:"icon"`
	Turns     []domain.Turn    `json:"turns"`
	TurnLimit int              `json:"turnLimit"`
	AtLimit   bool             `json:"atLimit"`
	Frozen    bool             `json:"frozen"`
	InFlight  bool             `json:"inFlight"`
	Partial   string           `json:"partial,omitempty"`
}

// Session is one agent's conversation: its history, its turn limit and the
// request currently in flight. SubmitTurn and Clear are serialized; state
// can be read concurrently while a reply streams.
type Session struct {
	profile Profile
	client  llm.Client
	opts    SessionOptions
	log     *logging.Logger

	turnMu sync.Mutex // held for the whole of SubmitTurn and Clear

	mu        sync.RWMutex
	history   []domain.Turn
	turnLimit int
	inFlight  bool
	partial   strings.Builder
}

// NewSession creates an empty session for profile.
func NewSession(profile Profile, client llm.Client, opts SessionOptions, log *logging.Logger) *Session {
	return &Session{
		profile:   profile,
		client:    client,
		opts:      opts,
		log:       log.Sub("agent." + string(profile.Kind)),
		turnLimit: TurnLimit,
	}
}

// Kind returns the agent kind this session belongs to.
func (s *Session) Kind() domain.AgentKind { return s.profile.Kind }

// Profile returns the agent profile.
func (s *Session) Profile() Profile { return s.profile }

// SubmitTurn appends text as a user turn, requests a reply and appends it.
// A session at its limit returns a limit_reached outcome and is left as is.
// Any completion failure appends ApologyText instead of the reply and freezes
// the session at its new length; failures are never retried.
func (s *Session) SubmitTurn(ctx context.Context, text string, onDelta DeltaFunc) domain.Outcome {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	start := time.Now()

	s.mu.Lock()
	if len(s.history) >= s.turnLimit {
		historyLen, limit := len(s.history), s.turnLimit
		s.mu.Unlock()
		s.log.Debug().Int("historyLen", historyLen).Int("turnLimit", limit).Msg("turn rejected at limit")
		return domain.Outcome{Agent: s.Kind(), Status: domain.OutcomeLimitReached}
	}
	s.history = append(s.history, domain.Turn{Role: domain.RoleUser, Content: text})
	req := s.buildRequest()
	s.inFlight = true
	s.partial.Reset()
	s.mu.Unlock()

	reply, err := s.complete(ctx, req, onDelta)

	s.mu.Lock()
	s.inFlight = false
	s.partial.Reset()
	var outcome domain.Outcome
	if err != nil {
		s.history = append(s.history, domain.Turn{Role: domain.RoleAssistant, Content: ApologyText})
		s.turnLimit = len(s.history)
		outcome = domain.Outcome{Agent: s.Kind(), Status: domain.OutcomeFailed, Text: ApologyText, Err: err}
	} else {
		s.history = append(s.history, domain.Turn{Role: domain.RoleAssistant, Content: reply})
		outcome = domain.Outcome{Agent: s.Kind(), Status: domain.OutcomeDelivered, Text: reply}
	}
	historyLen, limit := len(s.history), s.turnLimit
	s.mu.Unlock()

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Warn().Err(err)
		var perr *llm.ProviderError
		if errors.As(err, &perr) {
			ev = ev.Int("code", perr.Code).Bool("retryable", perr.Retryable())
		}
	}
	ev.Str("status", string(outcome.Status)).
		Int("historyLen", historyLen).
		Int("turnLimit", limit).
		Dur("duration", time.Since(start)).
		Msg("turn completed")

	s.emit(ctx, hooks.EventTurnCompleted, map[string]any{
		"user":    text,
		"reply":   outcome.Text,
		"status":  string(outcome.Status),
		"error":   outcome.Error(),
		"elapsed": time.Since(start).Milliseconds(),
	})
	if err != nil {
		s.emit(ctx, hooks.EventSessionFrozen, map[string]any{"turnLimit": limit})
	}
	return outcome
}

// Clear empties the history and restores the full turn limit. It waits for
// an in-flight turn to finish.
func (s *Session) Clear() {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	s.history = nil
	s.turnLimit = TurnLimit
	s.mu.Unlock()

	s.log.Debug().Msg("session cleared")
	s.emit(context.Background(), hooks.EventSessionCleared, nil)
}

// IsAtLimit reports whether the session can accept no more turns.
func (s *Session) IsAtLimit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history) >= s.turnLimit
}

// History returns a copy of the conversation so far.
func (s *Session) History() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// TurnLimit returns the current limit, lower than TurnLimit once frozen.
func (s *Session) TurnLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turnLimit
}

// Snapshot returns the state needed to render the session.
func (s *Session) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]domain.Turn, len(s.history))
	copy(turns, s.history)
	return SessionState{
		Agent:     s.profile.Kind,
		Title:     s.profile.Title,
		Tagline:   s.profile.Tagline,
		Icon:      s.profile.Icon,
		Turns:     turns,
		TurnLimit: s.turnLimit,
		AtLimit:   len(s.history) >= s.turnLimit,
		Frozen:    s.turnLimit < TurnLimit,
		InFlight:  s.inFlight,
		Partial:   s.partial.String(),
	}
}

// buildRequest must be called with s.mu held.
func (s *Session) buildRequest() llm.CompletionRequest {
	messages := make([]llm.Message, 0, len(s.history))
	for _, t := range s.history {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return llm.CompletionRequest{
		Model:       s.opts.Model,
		System:      s.profile.SystemPrompt,
		Messages:    messages,
		MaxTokens:   s.profile.MaxTokens,
		Temperature: llm.Float64(s.profile.Temperature),
		Stream:      s.opts.Stream,
	}
}

func (s *Session) complete(ctx context.Context, req llm.CompletionRequest, onDelta DeltaFunc) (string, error) {
	if !req.Stream {
		resp, err := s.client.Complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("completion: %w", err)
		}
		if resp == nil {
			return "", errors.New("completion: empty response")
		}
		s.appendPartial(resp.Content, onDelta)
		return resp.Content, nil
	}

	ch, err := s.client.Stream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("stream: %w", err)
	}

	var final *llm.CompletionResponse
	for evt := range ch {
		switch evt.Type {
		case llm.EventDelta:
			s.appendPartial(evt.Content, onDelta)
		case llm.EventDone:
			final = evt.Response
		case llm.EventError:
			// Drain so the producer can exit.
			for range ch {
			}
			return "", fmt.Errorf("stream error: %s", evt.Error)
		}
	}

	// A channel that closes without a done event was cut off, either by ctx
	// or by the producer; the partial text is not a reply.
	if final == nil {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("stream interrupted: %w", err)
		}
		return "", errors.New("stream ended before completion")
	}

	s.mu.RLock()
	reply := s.partial.String()
	s.mu.RUnlock()
	if reply == "" && final.Content != "" {
		reply = final.Content
		s.appendPartial(reply, onDelta)
	}
	return reply, nil
}

func (s *Session) appendPartial(chunk string, onDelta DeltaFunc) {
	if chunk == "" {
		return
	}
	s.mu.Lock()
	s.partial.WriteString(chunk)
	prefix := s.partial.String()
	s.mu.Unlock()
	if onDelta != nil {
		onDelta(chunk, prefix)
	}
}

func (s *Session) emit(ctx context.Context, event string, data map[string]any) {
	if s.opts.Hooks == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["duelId"] = s.opts.DuelID
	data["agent"] = string(s.Kind())
	s.opts.Hooks.Emit(ctx, event, data)
}
