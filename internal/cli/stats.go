package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/soyeahso/breakthis/internal/config"
	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/soyeahso/breakthis/internal/store"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var (
		recent int
		asJSON bool
		duelID string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the recorded exchange transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			path := paths.TranscriptPath(cfg.Transcript)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "No transcript at %s (set transcript.enabled: true to record one)\n", path)
				return nil
			}

			db, err := store.Open(path, log)
			if err != nil {
				return err
			}
			defer db.Close()
			xlog := store.NewExchangeLog(db)

			out := cmd.OutOrStdout()

			if duelID != "" {
				exchanges, err := xlog.ByDuel(duelID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, exchanges)
				}
				printExchanges(cmd, exchanges)
				return nil
			}

			st, err := xlog.Stats()
			if err != nil {
				return err
			}
			var exchanges []store.Exchange
			if recent > 0 {
				if exchanges, err = xlog.Recent(recent); err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(out, map[string]any{"stats": st, "recent": exchanges})
			}

			schema, err := db.SchemaVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Transcript: %s (schema v%d)\n", path, schema)
			fmt.Fprintf(out, "Duels:      %d\n", st.Duels)
			fmt.Fprintf(out, "Broadcasts: %d\n", st.Broadcasts)
			for _, a := range st.Agents {
				fmt.Fprintf(out, "  %-8s exchanges=%d delivered=%d failed=%d avg=%.0fms\n",
					a.Agent, a.Exchanges, a.Delivered, a.Failed, a.AvgElapsedMS)
			}
			if len(exchanges) > 0 {
				fmt.Fprintln(out)
				printExchanges(cmd, exchanges)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 0, "also list the N most recent exchanges")
	cmd.Flags().StringVar(&duelID, "duel", "", "list the exchanges of one duel")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func printExchanges(cmd *cobra.Command, exchanges []store.Exchange) {
	for _, ex := range exchanges {
		user := domain.Turn{Role: domain.RoleUser, Content: ex.UserText}.Display()
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %-8s %-13s %q -> %q\n",
			ex.CreatedAt.Format("2006-01-02 15:04:05"), ex.DuelID, ex.Agent, ex.Status, user, ex.Reply)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
