package cli

import (
	"fmt"
	"os"

	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/config"
	"github.com/soyeahso/breakthis/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show breakthis status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "breakthis %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:     %s\n", paths.Config)
			fmt.Fprintf(out, "Data:       %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:       %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:     not found (using defaults)")
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:     error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Gateway:    port=%d bind=%s tls=%v\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.TLS.Enabled)
			fmt.Fprintf(out, "LLM:        provider=%s model=%s stream=%v\n",
				cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.Streaming())
			if cfg.LLM.BaseURL != "" {
				fmt.Fprintf(out, "            baseUrl=%s\n", cfg.LLM.BaseURL)
			}

			if _, err := config.RequireCredential(cfg.LLM); err != nil {
				fmt.Fprintln(out, "Credential: missing (set OPENAI_API_KEY or llm.apiKey)")
			} else {
				fmt.Fprintln(out, "Credential: ok")
			}

			if cfg.Transcript.Enabled {
				fmt.Fprintf(out, "Transcript: %s\n", paths.TranscriptPath(cfg.Transcript))
			} else {
				fmt.Fprintln(out, "Transcript: disabled")
			}
			fmt.Fprintf(out, "Agents:     %d (turn limit %d each)\n", len(agent.Profiles()), agent.TurnLimit)

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
