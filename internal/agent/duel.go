package agent

import (
	"context"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/soyeahso/breakthis/internal/hooks"
	"github.com/soyeahso/breakthis/internal/logging"
)

// BroadcastRequest is a message queued for delivery to both sessions.
// Each session consumes it at most once.
type BroadcastRequest struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	delivered map[domain.AgentKind]bool
}

// Delivered reports whether kind has already consumed the request.
func (b BroadcastRequest) Delivered(kind domain.AgentKind) bool {
	return b.delivered[kind]
}

// PassResult is one session's result from a rendering pass.
type PassResult struct {
	Agent   domain.AgentKind `json:"agent"`
	Text    string           `json:"text"`
	Outcome domain.Outcome   `json:"outcome"`
}

// PassDeltaFunc receives streamed chunks tagged with the session they belong to.
type PassDeltaFunc func(kind domain.AgentKind, chunk, prefix string)

// DuelOption configures a Duel.
type DuelOption func(*Duel)

// WithDuelHooks sets the emitter for broadcast events.
func WithDuelHooks(e Emitter) DuelOption {
	return func(d *Duel) { d.hooks = e }
}

// WithDuelLogger sets the duel logger.
func WithDuelLogger(log *logging.Logger) DuelOption {
	return func(d *Duel) { d.log = log.Sub("duel") }
}

// Duel pairs the control and guarded sessions of one visitor and coordinates
// broadcast messages between them.
type Duel struct {
	id        string
	control   *Session
	guarded   *Session
	createdAt time.Time
	hooks     Emitter
	log       *logging.Logger

	passMu sync.Mutex // one rendering pass at a time

	mu      sync.Mutex
	pending *BroadcastRequest
}

// NewDuel pairs two sessions under id.
func NewDuel(id string, control, guarded *Session, opts ...DuelOption) *Duel {
	d := &Duel{
		id:        id,
		control:   control,
		guarded:   guarded,
		createdAt: time.Now(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ID returns the duel identifier.
func (d *Duel) ID() string { return d.id }

// CreatedAt returns when the duel was created.
func (d *Duel) CreatedAt() time.Time { return d.createdAt }

// Sessions returns the sessions in the order they are driven: control, guarded.
func (d *Duel) Sessions() []*Session {
	return []*Session{d.control, d.guarded}
}

// Session returns the session for kind, or nil.
func (d *Duel) Session(kind domain.AgentKind) *Session {
	switch kind {
	case domain.AgentControl:
		return d.control
	case domain.AgentGuarded:
		return d.guarded
	default:
		return nil
	}
}

// Broadcast queues text for both sessions, replacing any request that is
// still pending.
func (d *Duel) Broadcast(text string) BroadcastRequest {
	req := &BroadcastRequest{
		ID:        newID(),
		Text:      text,
		CreatedAt: time.Now(),
		delivered: map[domain.AgentKind]bool{},
	}

	d.mu.Lock()
	replaced := d.pending
	d.pending = req
	d.mu.Unlock()

	if d.log != nil {
		ev := d.log.Debug().Str("requestId", req.ID)
		if replaced != nil {
			ev = ev.Str("replaced", replaced.ID)
		}
		ev.Msg("broadcast queued")
	}
	if d.hooks != nil {
		d.hooks.Emit(context.Background(), hooks.EventBroadcast, map[string]any{
			"duelId":    d.id,
			"requestId": req.ID,
			"text":      text,
		})
	}
	return req.snapshot()
}

// Pending returns the request awaiting delivery, if any.
func (d *Duel) Pending() (BroadcastRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return BroadcastRequest{}, false
	}
	return d.pending.snapshot(), true
}

// DeliverPending hands the pending text to kind exactly once. The request is
// discarded after both sessions have taken it.
func (d *Duel) DeliverPending(kind domain.AgentKind) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil || d.pending.delivered[kind] {
		return "", false
	}
	d.pending.delivered[kind] = true
	text := d.pending.Text

	done := true
	for _, k := range domain.AgentKinds {
		if !d.pending.delivered[k] {
			done = false
			break
		}
	}
	if done {
		d.pending = nil
	}
	return text, true
}

// RunPass drives each session in order, submitting the pending broadcast
// text to every session that has not yet consumed it. A session at its limit
// still consumes the text and reports limit_reached.
func (d *Duel) RunPass(ctx context.Context, onDelta PassDeltaFunc) []PassResult {
	d.passMu.Lock()
	defer d.passMu.Unlock()

	var results []PassResult
	for _, s := range d.Sessions() {
		text, ok := d.DeliverPending(s.Kind())
		if !ok {
			continue
		}

		kind := s.Kind()
		var fn DeltaFunc
		if onDelta != nil {
			fn = func(chunk, prefix string) { onDelta(kind, chunk, prefix) }
		}
		outcome := s.SubmitTurn(ctx, text, fn)
		results = append(results, PassResult{Agent: kind, Text: text, Outcome: outcome})
	}
	return results
}

// SendAll broadcasts text and runs one pass.
func (d *Duel) SendAll(ctx context.Context, text string, onDelta PassDeltaFunc) []PassResult {
	d.Broadcast(text)
	return d.RunPass(ctx, onDelta)
}

// Snapshot returns both session states in driving order.
func (d *Duel) Snapshot() []SessionState {
	return []SessionState{d.control.Snapshot(), d.guarded.Snapshot()}
}

func (b *BroadcastRequest) snapshot() BroadcastRequest {
	cp := *b
	cp.delivered = make(map[domain.AgentKind]bool, len(b.delivered))
	for k, v := range b.delivered {
		cp.delivered[k] = v
	}
	return cp
}

func newID() string {
	id, err := gonanoid.New()
	if err != nil {
		panic(err)
	}
	return id
}
