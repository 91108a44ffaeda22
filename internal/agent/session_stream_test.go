package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/soyeahso/breakthis/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertFrozenAfterFirstTurn checks a failed first turn: apology stored,
// partial text discarded, limit pinned at the new history length.
func assertFrozenAfterFirstTurn(t *testing.T, s *Session, out domain.Outcome) {
	t.Helper()
	assert.Equal(t, domain.OutcomeFailed, out.Status)
	assert.Equal(t, ApologyText, out.Text)
	assert.Equal(t, 2, s.TurnLimit())
	assert.True(t, s.IsAtLimit())

	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, ApologyText, h[1].Content)

	st := s.Snapshot()
	assert.True(t, st.Frozen)
	assert.False(t, st.InFlight)
	assert.Empty(t, st.Partial)
	assertInvariants(t, s)
}

func TestSubmitTurnStreamClosedWithoutDone(t *testing.T) {
	client := &llm.MockClient{
		StreamFunc: func(context.Context, llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			ch := make(chan llm.StreamEvent, 1)
			ch <- llm.StreamEvent{Type: llm.EventDelta, Content: "half a "}
			close(ch)
			return ch, nil
		},
	}
	s := newTestSession(t, domain.AgentControl, client, true)

	out := s.SubmitTurn(context.Background(), "hi", nil)
	assertFrozenAfterFirstTurn(t, s, out)
	assert.Contains(t, out.Error(), "before completion")
}

func TestSubmitTurnCancelledMidStream(t *testing.T) {
	client := &llm.MockClient{
		StreamFunc: func(ctx context.Context, _ llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			ch := make(chan llm.StreamEvent)
			go func() {
				defer close(ch)
				select {
				case ch <- llm.StreamEvent{Type: llm.EventDelta, Content: "half a "}:
				case <-ctx.Done():
					return
				}
				<-ctx.Done()
			}()
			return ch, nil
		},
	}
	s := newTestSession(t, domain.AgentGuarded, client, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := s.SubmitTurn(ctx, "hi", func(chunk, prefix string) {
		assert.Equal(t, "half a ", prefix)
		cancel()
	})

	assertFrozenAfterFirstTurn(t, s, out)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestSubmitTurnDeadlineAgainstStalledProvider(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"half a "},"done":false}`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer ts.Close()

	client := llm.NewOllamaAPIClient(ts.URL, "llama3")
	s := newTestSession(t, domain.AgentControl, client, true)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	out := s.SubmitTurn(ctx, "hi", nil)

	assertFrozenAfterFirstTurn(t, s, out)
}
