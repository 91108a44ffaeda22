package domain

import "fmt"

// AgentKind selects one of the two configured conversational personas.
type AgentKind string

const (
	// AgentControl is the minimally prompted agent.
	AgentControl AgentKind = "control"
	// AgentGuarded is the carefully prompted agent with guardrails.
	AgentGuarded AgentKind = "guarded"
)

// AgentKinds lists both kinds in the fixed order sessions are driven.
var AgentKinds = []AgentKind{AgentControl, AgentGuarded}

// ParseAgentKind accepts the canonical names plus the labels the original
// demo page used ("buggy", "improved").
func ParseAgentKind(s string) (AgentKind, error) {
	switch s {
	case "control", "buggy":
		return AgentControl, nil
	case "guarded", "improved":
		return AgentGuarded, nil
	default:
		return "", fmt.Errorf("unknown agent %q (want control or guarded)", s)
	}
}

// Valid reports whether k is one of the known kinds.
func (k AgentKind) Valid() bool {
	return k == AgentControl || k == AgentGuarded
}
