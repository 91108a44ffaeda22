package config

import (
	"cmp"
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// LoadDotEnv loads KEY=value pairs from a .env file into the process
// environment, overriding variables that are already set. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Overload(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &ConfigError{Message: "failed to load " + path + ": " + err.Error()}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ResolveAPIKey returns the provider credential: llm.apiKey first, then the
// OPENAI_API_KEY environment variable.
func ResolveAPIKey(cfg LLMConfig) string {
	key := strings.TrimSpace(cfg.APIKey)
	if key != "" && !envVarPattern.MatchString(key) {
		return key
	}
	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

// RequireCredential fails fast when the configured provider needs an API key
// that cannot be resolved. It returns the resolved key.
func RequireCredential(cfg LLMConfig) (string, error) {
	key := ResolveAPIKey(cfg)
	if cfg.Provider == "ollama" {
		return key, nil
	}
	if key == "" {
		return "", ErrMissingCredential
	}
	return key, nil
}

// applyDefaults fills fields a config file left empty from Defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()
	cfg.Gateway.Port = cmp.Or(cfg.Gateway.Port, d.Gateway.Port)
	cfg.Gateway.Bind = cmp.Or(cfg.Gateway.Bind, d.Gateway.Bind)
	cfg.LLM.Provider = cmp.Or(cfg.LLM.Provider, d.LLM.Provider)
	cfg.LLM.Model = cmp.Or(cfg.LLM.Model, d.LLM.Model)
	cfg.Logging.Level = cmp.Or(cfg.Logging.Level, d.Logging.Level)
	cfg.Logging.ConsoleStyle = cmp.Or(cfg.Logging.ConsoleStyle, d.Logging.ConsoleStyle)
}

// envOverrides maps BREAKTHIS_* variables onto config fields. Values that
// do not parse are ignored.
var envOverrides = []struct {
	name  string
	apply func(cfg *Config, v string)
}{
	{"BREAKTHIS_GATEWAY_PORT", func(cfg *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}},
	{"BREAKTHIS_GATEWAY_BIND", func(cfg *Config, v string) { cfg.Gateway.Bind = v }},
	{"BREAKTHIS_LLM_PROVIDER", func(cfg *Config, v string) { cfg.LLM.Provider = strings.ToLower(v) }},
	{"BREAKTHIS_LLM_MODEL", func(cfg *Config, v string) { cfg.LLM.Model = v }},
	{"BREAKTHIS_LLM_BASE_URL", func(cfg *Config, v string) { cfg.LLM.BaseURL = v }},
	{"BREAKTHIS_LOG_LEVEL", func(cfg *Config, v string) { cfg.Logging.Level = strings.ToLower(v) }},
	{"BREAKTHIS_TRANSCRIPT", func(cfg *Config, v string) {
		if on, err := strconv.ParseBool(v); err == nil {
			cfg.Transcript.Enabled = on
		}
	}},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}
