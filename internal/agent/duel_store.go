package agent

import (
	"context"
	"sort"
	"sync"

	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/soyeahso/breakthis/internal/hooks"
	"github.com/soyeahso/breakthis/internal/llm"
	"github.com/soyeahso/breakthis/internal/logging"
)

// DuelStore keeps the live duels, one per connected visitor. Nothing is
// persisted: a duel is gone once removed.
type DuelStore struct {
	client llm.Client
	model  string
	stream bool
	hooks  Emitter
	log    *logging.Logger

	mu    sync.RWMutex
	duels map[string]*Duel
}

// StoreConfig configures the sessions created by a DuelStore.
type StoreConfig struct {
	Model  string
	Stream bool
	Hooks  Emitter // optional
}

// NewDuelStore creates an empty store. Every duel shares client.
func NewDuelStore(client llm.Client, cfg StoreConfig, log *logging.Logger) *DuelStore {
	return &DuelStore{
		client: client,
		model:  cfg.Model,
		stream: cfg.Stream,
		hooks:  cfg.Hooks,
		log:    log.Sub("duels"),
		duels:  make(map[string]*Duel),
	}
}

// Create starts a new duel with two fresh sessions.
func (s *DuelStore) Create() *Duel {
	id := newID()
	opts := SessionOptions{Model: s.model, Stream: s.stream, DuelID: id, Hooks: s.hooks}
	log := s.log.With("duelId", id)

	sessions := make(map[domain.AgentKind]*Session, len(domain.AgentKinds))
	for _, p := range Profiles() {
		sessions[p.Kind] = NewSession(p, s.client, opts, log)
	}
	d := NewDuel(id, sessions[domain.AgentControl], sessions[domain.AgentGuarded],
		WithDuelHooks(s.hooks), WithDuelLogger(log))

	s.mu.Lock()
	s.duels[id] = d
	count := len(s.duels)
	s.mu.Unlock()

	s.log.Info().Str("duelId", id).Int("active", count).Msg("duel started")
	if s.hooks != nil {
		s.hooks.Emit(context.Background(), hooks.EventDuelStart, map[string]any{"duelId": id})
	}
	return d
}

// Get returns a duel by ID, or nil if not found.
func (s *DuelStore) Get(id string) *Duel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duels[id]
}

// Remove discards a duel and its conversation state.
func (s *DuelStore) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.duels[id]
	delete(s.duels, id)
	count := len(s.duels)
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.log.Info().Str("duelId", id).Int("active", count).Msg("duel ended")
	if s.hooks != nil {
		s.hooks.Emit(context.Background(), hooks.EventDuelEnd, map[string]any{"duelId": id})
	}
	return true
}

// List returns all duel IDs, sorted.
func (s *DuelStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.duels))
	for id := range s.duels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of live duels.
func (s *DuelStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.duels)
}
