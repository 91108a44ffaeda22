package agent

import (
	"fmt"

	"github.com/soyeahso/breakthis/internal/domain"
)

// DefaultMaxTokens caps every reply from either agent.
const DefaultMaxTokens = 300

const controlSystemPrompt = `You are a resume helper. Help with resumes.`

const guardedSystemPrompt = `You are a helpful and professional Resume Helper AI. Your role is to assist users with resume-related tasks.

IMPORTANT GUIDELINES:
1. If a user's request is confusing, unclear, or nonsensical, politely acknowledge the confusion and ask for clarification
2. If a user gives a vague request like "make it better", ask them to be more specific about what they want to improve
3. If a user asks about impossible or unrealistic career goals, be helpful but redirect them to realistic alternatives
4. If a user sends an empty or very short message, provide helpful examples of what you can assist with
5. Always maintain a friendly, professional tone even when handling unusual requests
6. Provide specific examples and actionable advice when possible

Remember: It's better to ask for clarification than to make assumptions about what the user wants.`

// Profile is the fixed configuration of one agent: how it is presented and
// how it is prompted. Profiles are not user-configurable.
type Profile struct {
	Kind         domain.AgentKind `json:"agent"`
	Title        string           `json:"title"`
	Tagline      string           `json:"tagline"`
	Icon         string           `json:"icon"`
	SystemPrompt string           `json:"systemPrompt"`
	Temperature  float64          `json:"temperature"`
	MaxTokens    int              `json:"maxTokens"`
}

var profiles = map[domain.AgentKind]Profile{
	domain.AgentControl: {
		Kind:         domain.AgentControl,
		Title:        "Buggy Agent (Before Debugging)",
		Tagline:      "Poorly designed with weak prompting",
		Icon:         "🐛",
		SystemPrompt: controlSystemPrompt,
		Temperature:  0.7,
		MaxTokens:    DefaultMaxTokens,
	},
	domain.AgentGuarded: {
		Kind:         domain.AgentGuarded,
		Title:        "Improved Agent (After Debugging)",
		Tagline:      "Properly debugged with error handling",
		Icon:         "✅",
		SystemPrompt: guardedSystemPrompt,
		Temperature:  0.3,
		MaxTokens:    DefaultMaxTokens,
	},
}

// ProfileFor returns the profile for kind.
func ProfileFor(kind domain.AgentKind) (Profile, error) {
	p, ok := profiles[kind]
	if !ok {
		return Profile{}, fmt.Errorf("no profile for agent %q", kind)
	}
	return p, nil
}

// Profiles returns both profiles in display order.
func Profiles() []Profile {
	out := make([]Profile, 0, len(domain.AgentKinds))
	for _, k := range domain.AgentKinds {
		out = append(out, profiles[k])
	}
	return out
}
