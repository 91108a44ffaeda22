package agent

import "fmt"

// Challenge is a canned adversarial input offered on the page.
type Challenge struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Text  string `json:"text"`
	Hint  string `json:"hint"`
}

var challenges = []Challenge{
	{ID: "nonsensical", Label: "Nonsensical", Icon: "🟣", Text: "Help me with my purple resume that tastes like Tuesday"},
	{ID: "vague", Label: "Vague", Icon: "❓", Text: "Make it better"},
	{ID: "panic", Label: "Panic", Icon: "😱", Text: "HELP ME NOW URGENT!!!"},
	{ID: "impossible", Label: "Impossible", Icon: "🦄", Text: "Can you help me become a unicorn trainer?"},
	{ID: "empty", Label: "Empty Message", Icon: "⭕", Text: "", Hint: "Send an empty message"},
}

// Challenges returns the canned challenge inputs in display order.
func Challenges() []Challenge {
	out := make([]Challenge, len(challenges))
	copy(out, challenges)
	for i := range out {
		if out[i].Hint == "" {
			out[i].Hint = out[i].Text
		}
	}
	return out
}

// ChallengeByID looks up a canned challenge.
func ChallengeByID(id string) (Challenge, error) {
	for _, c := range Challenges() {
		if c.ID == id {
			return c, nil
		}
	}
	return Challenge{}, fmt.Errorf("unknown challenge %q", id)
}

// BroadcastNotice is the preview line shown while a broadcast is sent.
func BroadcastNotice(text string) string {
	if text == "" {
		return "Sending empty message to both agents"
	}
	return fmt.Sprintf("Sending to both agents: '%s'", text)
}
