package cli

import (
	"fmt"

	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/spf13/cobra"
)

func newChallengesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "challenges",
		Short: "List the canned inputs for 'ask --challenge'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range agent.Challenges() {
				text := domain.Turn{Role: domain.RoleUser, Content: c.Text}.Display()
				fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %s %-14s %s\n", c.ID, c.Icon, c.Label, text)
			}
			return nil
		},
	}
}
