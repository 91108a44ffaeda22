package config

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// ErrMissingCredential is returned when the completion provider needs an API
// key and none could be resolved.
var ErrMissingCredential = errors.New("config: OpenAI API key not found; set OPENAI_API_KEY or llm.apiKey")

const (
	DefaultPort     = 8501
	DefaultModel    = "gpt-3.5-turbo"
	DefaultProvider = "openai"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: DefaultPort,
			Bind: "loopback",
		},
		LLM: LLMConfig{
			Provider: DefaultProvider,
			Model:    DefaultModel,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
