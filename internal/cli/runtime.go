package cli

import (
	"fmt"

	"github.com/soyeahso/breakthis/internal/config"
	"github.com/soyeahso/breakthis/internal/hooks"
	"github.com/soyeahso/breakthis/internal/llm"
	"github.com/soyeahso/breakthis/internal/store"
)

// newLLMClient is swapped in tests.
var newLLMClient = llm.NewClientFromConfig

// runtime bundles what serve and ask share: the completion client, the hook
// manager and, when enabled, the transcript.
type runtime struct {
	cfg    config.Config
	client llm.Client
	hooks  *hooks.Manager
	db     *store.DB
}

// loadConfig loads and validates the config file, applying env overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, &config.ConfigError{Message: fmt.Sprintf("validation failed with %d issue(s)", len(issues))}
	}
	return cfg, nil
}

// openRuntime resolves the credential and builds the client. A missing
// credential fails here, before any session exists.
func openRuntime(cfg config.Config) (*runtime, error) {
	apiKey, err := config.RequireCredential(cfg.LLM)
	if err != nil {
		return nil, err
	}
	client, err := newLLMClient(cfg.LLM, apiKey, log)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	rt := &runtime{cfg: cfg, client: client, hooks: hooks.NewManager(log)}

	if cfg.Transcript.Enabled {
		path := paths.TranscriptPath(cfg.Transcript)
		db, err := store.Open(path, log)
		if err != nil {
			return nil, fmt.Errorf("opening transcript: %w", err)
		}
		store.NewExchangeLog(db).RegisterHooks(rt.hooks)
		rt.db = db
		log.Info().Str("path", path).Msg("recording exchanges")
	}
	return rt, nil
}

func (r *runtime) Close() {
	if r.db != nil {
		r.db.Close()
	}
}
