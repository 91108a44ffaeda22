package domain

// OutcomeStatus classifies the result of submitting a turn.
type OutcomeStatus string

const (
	OutcomeDelivered    OutcomeStatus = "delivered"
	OutcomeFailed       OutcomeStatus = "failed"
	OutcomeLimitReached OutcomeStatus = "limit_reached"
)

// Outcome is the result of one submitted turn. For delivered outcomes Text
// is the reply; for failed outcomes it is the apology that was appended.
type Outcome struct {
	Agent  AgentKind     `json:"agent"`
	Status OutcomeStatus `json:"status"`
	Text   string        `json:"text,omitempty"`
	Err    error         `json:"-"`
}

// Error returns the provider error message for failed outcomes, if any.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
