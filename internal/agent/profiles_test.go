package agent

import (
	"testing"

	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiles(t *testing.T) {
	ps := Profiles()
	require.Len(t, ps, 2)
	assert.Equal(t, domain.AgentControl, ps[0].Kind)
	assert.Equal(t, "You are a resume helper. Help with resumes.", ps[0].SystemPrompt)
	assert.InDelta(t, 0.7, ps[0].Temperature, 1e-9)

	assert.Equal(t, domain.AgentGuarded, ps[1].Kind)
	assert.Contains(t, ps[1].SystemPrompt, "IMPORTANT GUIDELINES:")
	assert.Contains(t, ps[1].SystemPrompt, "ask for clarification")
	assert.InDelta(t, 0.3, ps[1].Temperature, 1e-9)

	for _, p := range ps {
		assert.Equal(t, 300, p.MaxTokens)
	}

	_, err := ProfileFor("other")
	assert.Error(t, err)
}

func TestChallenges(t *testing.T) {
	cs := Challenges()
	require.Len(t, cs, 5)

	want := map[string]string{
		"nonsensical": "Help me with my purple resume that tastes like Tuesday",
		"vague":       "Make it better",
		"panic":       "HELP ME NOW URGENT!!!",
		"impossible":  "Can you help me become a unicorn trainer?",
		"empty":       "",
	}
	for _, c := range cs {
		assert.Equal(t, want[c.ID], c.Text, c.ID)
		assert.NotEmpty(t, c.Label)
		assert.NotEmpty(t, c.Hint)
	}

	c, err := ChallengeByID("vague")
	require.NoError(t, err)
	assert.Equal(t, "Make it better", c.Text)

	_, err = ChallengeByID("nope")
	assert.Error(t, err)

	cs[0].Text = "mutated"
	assert.NotEqual(t, "mutated", Challenges()[0].Text)
}

func TestBroadcastNotice(t *testing.T) {
	assert.Equal(t, "Sending empty message to both agents", BroadcastNotice(""))
	assert.Equal(t, "Sending to both agents: 'Make it better'", BroadcastNotice("Make it better"))
}
