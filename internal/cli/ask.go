package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/domain"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		agentName string
		challenge string
		stream    bool
		width     int
	)

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message to both agents and compare the replies",
		Example: `  breakthis ask "Make my resume better"
  breakthis ask --challenge empty
  breakthis ask --agent guarded --stream "HELP ME NOW URGENT!!!"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := askText(args, challenge)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("stream") {
				cfg.LLM.Stream = &stream
			}

			rt, err := openRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			duels := agent.NewDuelStore(rt.client, agent.StoreConfig{
				Model:  cfg.LLM.Model,
				Stream: cfg.LLM.Streaming(),
				Hooks:  rt.hooks,
			}, log)
			duel := duels.Create()
			defer duels.Remove(duel.ID())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			live := cfg.LLM.Streaming()

			if agentName != "" {
				kind, err := domain.ParseAgentKind(agentName)
				if err != nil {
					return err
				}
				sess := duel.Session(kind)
				var onDelta agent.DeltaFunc
				if live {
					fmt.Fprintln(out, titleStyle.Render(sess.Profile().Title))
					onDelta = func(chunk, _ string) { fmt.Fprint(out, chunk) }
				}
				outcome := sess.SubmitTurn(ctx, text, onDelta)
				if live {
					finishLive(out, outcome)
					return nil
				}
				fmt.Fprintln(out, renderExchange(sess.Profile(), text, outcome, columnWidth(width, 1)))
				return nil
			}

			fmt.Fprintln(out, mutedStyle.Render(agent.BroadcastNotice(text)))

			var onDelta agent.PassDeltaFunc
			if live {
				var current domain.AgentKind
				onDelta = func(kind domain.AgentKind, chunk, _ string) {
					if kind != current {
						if current != "" {
							fmt.Fprintln(out)
						}
						current = kind
						fmt.Fprintln(out, titleStyle.Render(duel.Session(kind).Profile().Title))
					}
					fmt.Fprint(out, chunk)
				}
			}

			results := duel.SendAll(ctx, text, onDelta)
			if live {
				fmt.Fprintln(out)
				for _, r := range results {
					if r.Outcome.Status != domain.OutcomeDelivered {
						fmt.Fprintln(out, titleStyle.Render(duel.Session(r.Agent).Profile().Title))
						finishLive(out, r.Outcome)
					}
				}
				return nil
			}

			cols := make([]string, 0, len(results))
			for _, r := range results {
				cols = append(cols, renderExchange(duel.Session(r.Agent).Profile(), r.Text, r.Outcome, columnWidth(width, len(results))))
			}
			fmt.Fprintln(out, sideBySide(cols...))
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "send to one agent only (control or guarded)")
	cmd.Flags().StringVar(&challenge, "challenge", "", "send a canned challenge instead of a message (see 'breakthis challenges')")
	cmd.Flags().BoolVar(&stream, "stream", false, "print replies as they stream in (default from llm.stream)")
	cmd.Flags().IntVar(&width, "width", 100, "total output width for side-by-side columns")

	return cmd
}

// askText resolves the message from arguments or a challenge ID. An explicit
// empty argument is a valid message.
func askText(args []string, challenge string) (string, error) {
	if challenge != "" {
		if len(args) > 0 {
			return "", errors.New("give a message or --challenge, not both")
		}
		c, err := agent.ChallengeByID(challenge)
		if err != nil {
			return "", err
		}
		return c.Text, nil
	}
	if len(args) == 0 {
		return "", errors.New("a message or --challenge is required")
	}
	return strings.Join(args, " "), nil
}

// finishLive closes a streamed reply, printing the apology or limit notice
// for outcomes that produced no stream.
func finishLive(out io.Writer, o domain.Outcome) {
	switch o.Status {
	case domain.OutcomeDelivered:
		fmt.Fprintln(out)
	case domain.OutcomeFailed:
		fmt.Fprintln(out)
		fmt.Fprintln(out, failStyle.Render(o.Text))
		if msg := o.Error(); msg != "" {
			fmt.Fprintln(out, mutedStyle.Render(msg))
		}
	case domain.OutcomeLimitReached:
		fmt.Fprintln(out, limitStyle.Render(agent.LimitNotice))
	}
}
