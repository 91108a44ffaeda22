package llm

import (
	"fmt"

	"github.com/soyeahso/breakthis/internal/config"
	"github.com/soyeahso/breakthis/internal/logging"
)

// NewClientFromConfig builds the completion client selected by cfg.Provider.
// apiKey is the resolved credential (see config.RequireCredential).
func NewClientFromConfig(cfg config.LLMConfig, apiKey string, log *logging.Logger) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		if apiKey == "" {
			return nil, config.ErrMissingCredential
		}
		return NewOpenAIClient(apiKey, cfg.BaseURL, cfg.Model, log), nil
	case "ollama":
		return NewOllamaAPIClient(cfg.BaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
