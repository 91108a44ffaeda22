package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the value type a config key accepts on the command line.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindList // comma-separated
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "string"
	}
}

// Key is one settable leaf of the config file.
type Key struct {
	Name string
	Kind Kind
	Help string
}

// Keys lists every leaf `config set` accepts, in display order.
var Keys = []Key{
	{"gateway.port", KindInt, "page and WebSocket port"},
	{"gateway.bind", KindString, "auto | lan | loopback | custom"},
	{"gateway.customBindHost", KindString, "listen host when bind is custom"},
	{"gateway.tls.enabled", KindBool, "serve the page over HTTPS"},
	{"gateway.tls.certPath", KindString, "PEM certificate"},
	{"gateway.tls.keyPath", KindString, "PEM private key"},
	{"gateway.allowedOrigins", KindList, "extra origins allowed to open the socket"},
	{"llm.provider", KindString, "openai | ollama"},
	{"llm.model", KindString, "model both agents use"},
	{"llm.apiKey", KindString, "credential, or ${ENV_VAR}"},
	{"llm.baseUrl", KindString, "override the provider endpoint"},
	{"llm.stream", KindBool, "stream partial replies"},
	{"logging.level", KindString, "silent | fatal | error | warn | info | debug | trace"},
	{"logging.file", KindString, "also write JSON logs here"},
	{"logging.consoleStyle", KindString, "pretty | json"},
	{"transcript.enabled", KindBool, "record exchanges to SQLite"},
	{"transcript.path", KindString, "transcript database file"},
}

// LookupKey finds a leaf key by its dotted name.
func LookupKey(name string) (Key, bool) {
	for _, k := range Keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

// Parse converts a command-line string into the key's value type.
func (k Key) Parse(s string) (any, error) {
	switch k.Kind {
	case KindInt:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, &ConfigError{Message: fmt.Sprintf("%s expects an integer, got %q", k.Name, s)}
		}
		return n, nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, &ConfigError{Message: fmt.Sprintf("%s expects true or false, got %q", k.Name, s)}
		}
		return b, nil
	case KindList:
		var out []any
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return s, nil
	}
}

// ParseConfigPath splits a dotted key into segments. A section prefix such
// as "gateway" or "gateway.tls" is accepted alongside leaf keys.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config key contains empty segment"}
		}
	}
	for _, k := range Keys {
		if k.Name == raw || strings.HasPrefix(k.Name, raw+".") {
			return parts, nil
		}
	}
	return nil, &ConfigError{Message: "unknown config key: " + raw}
}

// CheckRaw decodes a raw config map the way Load would and validates it.
func CheckRaw(raw map[string]any) ([]ValidationIssue, error) {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Message: "config does not decode: " + err.Error()}
	}
	applyDefaults(&cfg)
	return Validate(&cfg), nil
}

// GetValueAtPath walks nested maps along path.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	var current any = root
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath stores value at path, replacing any non-map section on
// the way with an empty one.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		m, ok := current[key].(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath deletes the value at path and prunes sections left
// empty. It reports whether anything was removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	if len(path) == 1 {
		_, ok := root[path[0]]
		delete(root, path[0])
		return ok
	}
	child, ok := root[path[0]].(map[string]any)
	if !ok || !UnsetValueAtPath(child, path[1:]) {
		return false
	}
	if len(child) == 0 {
		delete(root, path[0])
	}
	return true
}
