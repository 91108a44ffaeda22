package cli

import (
	"fmt"

	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/config"
	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agent",
		Aliases: []string{"agents"},
		Short:   "Inspect the two agents",
	}

	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentInfoCmd())
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List both agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			model := configuredModel()
			for _, p := range agent.Profiles() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-8s %-34s model=%s temp=%.1f maxTokens=%d\n",
					p.Kind, p.Title, model, p.Temperature, p.MaxTokens)
			}
			return nil
		},
	}
}

func newAgentInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <control|guarded>",
		Short: "Show an agent's system prompt and sampling settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseAgentKind(args[0])
			if err != nil {
				return err
			}
			p, err := agent.ProfileFor(kind)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Agent: %s (%s)\n", p.Kind, p.Title)
			fmt.Fprintf(out, "  %s\n", p.Tagline)
			fmt.Fprintf(out, "  Model:     %s\n", configuredModel())
			fmt.Fprintf(out, "  Temp:      %.2f\n", p.Temperature)
			fmt.Fprintf(out, "  MaxTokens: %d\n", p.MaxTokens)
			fmt.Fprintf(out, "  TurnLimit: %d\n", agent.TurnLimit)
			fmt.Fprintf(out, "\nSystem prompt:\n%s\n", p.SystemPrompt)
			return nil
		},
	}
}

// configuredModel reports the model from the config file, falling back to
// the default when the file is missing or broken.
func configuredModel() string {
	cfg, err := config.Load(paths.Config)
	if err != nil || cfg.LLM.Model == "" {
		return config.DefaultModel
	}
	return cfg.LLM.Model
}
