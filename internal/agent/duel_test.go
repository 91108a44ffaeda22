package agent

import (
	"context"
	"testing"

	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/soyeahso/breakthis/internal/hooks"
	"github.com/soyeahso/breakthis/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDuel(t *testing.T, control, guarded llm.Client) *Duel {
	t.Helper()
	return NewDuel("duel-test",
		newTestSession(t, domain.AgentControl, control, true),
		newTestSession(t, domain.AgentGuarded, guarded, true),
	)
}

func TestDuelSessionsOrder(t *testing.T) {
	d := newTestDuel(t, &countingClient{}, &countingClient{})
	sessions := d.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, domain.AgentControl, sessions[0].Kind())
	assert.Equal(t, domain.AgentGuarded, sessions[1].Kind())
	assert.Same(t, sessions[1], d.Session(domain.AgentGuarded))
	assert.Nil(t, d.Session("other"))
}

func TestBroadcastDeliversOncePerSession(t *testing.T) {
	d := newTestDuel(t, &countingClient{}, &countingClient{})

	req := d.Broadcast("Make it better")
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "Make it better", req.Text)

	text, ok := d.DeliverPending(domain.AgentControl)
	assert.True(t, ok)
	assert.Equal(t, "Make it better", text)

	pending, ok := d.Pending()
	require.True(t, ok)
	assert.True(t, pending.Delivered(domain.AgentControl))
	assert.False(t, pending.Delivered(domain.AgentGuarded))

	_, ok = d.DeliverPending(domain.AgentControl)
	assert.False(t, ok, "control already consumed the request")

	text, ok = d.DeliverPending(domain.AgentGuarded)
	assert.True(t, ok)
	assert.Equal(t, "Make it better", text)

	for _, k := range domain.AgentKinds {
		_, ok := d.DeliverPending(k)
		assert.False(t, ok)
	}
	_, ok = d.Pending()
	assert.False(t, ok)
}

func TestBroadcastEmptyText(t *testing.T) {
	d := newTestDuel(t, &countingClient{}, &countingClient{})
	d.Broadcast("")

	text, ok := d.DeliverPending(domain.AgentGuarded)
	assert.True(t, ok)
	assert.Equal(t, "", text)
}

func TestBroadcastReplacesPending(t *testing.T) {
	d := newTestDuel(t, &countingClient{}, &countingClient{})

	first := d.Broadcast("first")
	_, _ = d.DeliverPending(domain.AgentControl)
	second := d.Broadcast("second")
	assert.NotEqual(t, first.ID, second.ID)

	text, ok := d.DeliverPending(domain.AgentControl)
	assert.True(t, ok, "a new request starts with nothing delivered")
	assert.Equal(t, "second", text)
}

func TestRunPassDrivesBothInOrder(t *testing.T) {
	control := &countingClient{}
	guarded := &countingClient{}
	d := newTestDuel(t, control, guarded)

	d.Broadcast("HELP ME NOW URGENT!!!")

	var order []domain.AgentKind
	results := d.RunPass(context.Background(), func(kind domain.AgentKind, _, _ string) {
		if len(order) == 0 || order[len(order)-1] != kind {
			order = append(order, kind)
		}
	})

	require.Len(t, results, 2)
	assert.Equal(t, domain.AgentControl, results[0].Agent)
	assert.Equal(t, domain.AgentGuarded, results[1].Agent)
	assert.Equal(t, []domain.AgentKind{domain.AgentControl, domain.AgentGuarded}, order)
	for _, r := range results {
		assert.Equal(t, "HELP ME NOW URGENT!!!", r.Text)
		assert.Equal(t, domain.OutcomeDelivered, r.Outcome.Status)
	}

	assert.Empty(t, d.RunPass(context.Background(), nil), "an extra pass delivers nothing")
	assert.Equal(t, 1, control.callCount())
	assert.Equal(t, 1, guarded.callCount())
}

func TestRunPassFrozenSessionStillConsumes(t *testing.T) {
	control := &countingClient{failOn: map[int]bool{1: true}}
	guarded := &countingClient{}
	d := newTestDuel(t, control, guarded)

	d.SendAll(context.Background(), "Can you help me become a unicorn trainer?", nil)
	require.True(t, d.Session(domain.AgentControl).IsAtLimit())

	results := d.SendAll(context.Background(), "Make it better", nil)
	require.Len(t, results, 2)
	assert.Equal(t, domain.OutcomeLimitReached, results[0].Outcome.Status)
	assert.Equal(t, domain.OutcomeDelivered, results[1].Outcome.Status)

	_, pending := d.Pending()
	assert.False(t, pending, "a frozen session must not pin the broadcast")
	assert.Equal(t, 1, control.callCount())
	assert.Len(t, d.Session(domain.AgentGuarded).History(), 4)
}

func TestDirectInputBypassesCoordinator(t *testing.T) {
	d := newTestDuel(t, &countingClient{}, &countingClient{})
	d.Broadcast("queued")

	d.Session(domain.AgentGuarded).SubmitTurn(context.Background(), "typed", nil)

	pending, ok := d.Pending()
	require.True(t, ok)
	assert.False(t, pending.Delivered(domain.AgentGuarded))
}

func TestBroadcastEmitsHook(t *testing.T) {
	mgr := hooks.NewManager(silentLog())
	var got hooks.Payload
	mgr.On(hooks.EventBroadcast, "test", func(_ context.Context, p hooks.Payload) error {
		got = p
		return nil
	})

	d := NewDuel("d1",
		newTestSession(t, domain.AgentControl, &countingClient{}, false),
		newTestSession(t, domain.AgentGuarded, &countingClient{}, false),
		WithDuelHooks(mgr), WithDuelLogger(silentLog()))
	req := d.Broadcast("Make it better")

	assert.Equal(t, "d1", got.Data["duelId"])
	assert.Equal(t, req.ID, got.Data["requestId"])
	assert.Equal(t, "Make it better", got.Data["text"])
}

func TestDuelSnapshot(t *testing.T) {
	d := newTestDuel(t, &countingClient{}, &countingClient{})
	d.SendAll(context.Background(), "", nil)

	states := d.Snapshot()
	require.Len(t, states, 2)
	assert.Equal(t, "Buggy Agent (Before Debugging)", states[0].Title)
	assert.Equal(t, "Improved Agent (After Debugging)", states[1].Title)
	for _, st := range states {
		assert.Len(t, st.Turns, 2)
		assert.Equal(t, TurnLimit, st.TurnLimit)
	}
}
