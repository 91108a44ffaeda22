package config

// Config is the root configuration for breakthis.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	LLM        LLMConfig        `yaml:"llm,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Transcript TranscriptConfig `yaml:"transcript,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server that hosts the page.
type GatewayConfig struct {
	Port           int        `yaml:"port,omitempty"`
	Bind           string     `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string     `yaml:"customBindHost,omitempty"`
	TLS            GatewayTLS `yaml:"tls,omitempty"`
	AllowedOrigins []string   `yaml:"allowedOrigins,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// LLMConfig selects the completion provider shared by both agents.
// Sampling parameters are fixed per agent and deliberately absent here.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"` // "openai" | "ollama"
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty"` // may be ${ENV_VAR}
	BaseURL  string `yaml:"baseUrl,omitempty"`
	Stream   *bool  `yaml:"stream,omitempty"` // defaults to true
}

// Streaming reports whether replies should be streamed.
func (c LLMConfig) Streaming() bool {
	return c.Stream == nil || *c.Stream
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// TranscriptConfig controls the optional SQLite log of completed exchanges.
// Logged exchanges are never read back into conversations.
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"` // defaults to <data>/transcript.db
}
