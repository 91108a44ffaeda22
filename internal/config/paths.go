package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".breakthis"

// Paths holds resolved filesystem paths for breakthis data.
type Paths struct {
	Base   string // ~/.breakthis
	Config string // ~/.breakthis/config.yaml
	Logs   string // ~/.breakthis/logs
	Data   string // ~/.breakthis/data
}

// ResolvePaths computes all standard paths from the home directory.
// If BREAKTHIS_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("BREAKTHIS_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Logs:   filepath.Join(base, "logs"),
		Data:   filepath.Join(base, "data"),
	}, nil
}

// TranscriptPath returns the exchange log location, honoring transcript.path.
func (p Paths) TranscriptPath(cfg TranscriptConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return filepath.Join(p.Data, "transcript.db")
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
