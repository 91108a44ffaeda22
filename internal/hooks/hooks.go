// Package hooks fans duel lifecycle events out to subscribers such as the
// exchange transcript.
package hooks

import (
	"context"
	"sort"
	"sync"

	"github.com/soyeahso/breakthis/internal/logging"
)

// Event names for the hook system.
const (
	EventDuelStart      = "duel_start"
	EventDuelEnd        = "duel_end"
	EventBroadcast      = "broadcast"
	EventTurnCompleted  = "turn_completed"
	EventSessionFrozen  = "session_frozen"
	EventSessionCleared = "session_cleared"
	EventGatewayStart   = "gateway_start"
	EventGatewayStop    = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventDuelStart,
	EventDuelEnd,
	EventBroadcast,
	EventTurnCompleted,
	EventSessionFrozen,
	EventSessionCleared,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload carries event data to hook handlers. DuelID and Agent are lifted
// out of Data when present.
type Payload struct {
	Event  string         `json:"event"`
	DuelID string         `json:"duelId,omitempty"`
	Agent  string         `json:"agent,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// String returns Data[key] if it is a string.
func (p Payload) String(key string) string {
	s, _ := p.Data[key].(string)
	return s
}

// Int64 returns Data[key] as an int64, accepting the integer kinds emitters use.
func (p Payload) Int64(key string) int64 {
	switch v := p.Data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Handler handles a hook event. Returning an error logs the failure but
// does not stop other handlers.
type Handler func(ctx context.Context, p Payload) error

// Manager holds hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event. The name identifies the
// handler in logs.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Emit dispatches an event to its handlers synchronously, in registration
// order. Turn events are emitted from the turn's goroutine, so the
// transcript is written before the caller sees the outcome.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	m.mu.RLock()
	handlers := make([]namedHandler, len(m.handlers[event]))
	copy(handlers, m.handlers[event])
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	payload := Payload{Event: event, Data: data}
	payload.DuelID = payload.String("duelId")
	payload.Agent = payload.String("agent")

	for _, h := range handlers {
		if err := h.handler(ctx, payload); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", event).
				Str("handler", h.name).
				Str("duelId", payload.DuelID).
				Msg("hook handler error")
		}
	}
}

// Subscribed returns the events that have at least one handler, sorted.
func (m *Manager) Subscribed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	sort.Strings(events)
	return events
}
