package llm

import "fmt"

// ProviderError is returned when a completion provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.), 0 if none
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Retryable reports whether the provider signalled a transient condition
// (rate limit or server error). Callers in this module never retry; the
// flag only feeds logging.
func (e *ProviderError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}
