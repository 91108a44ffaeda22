package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/gateway"
	"github.com/soyeahso/breakthis/internal/logging"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the comparison page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			root, closer, err := logging.Open(logging.Options{
				Level: cfg.Logging.Level,
				Style: cfg.Logging.ConsoleStyle,
				File:  cfg.Logging.File,
			})
			if err != nil {
				return err
			}
			defer closer.Close()
			log = root

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

			srv := gateway.New(cfg, duels, log, gateway.WithHooks(rt.hooks))

			log.Info().
				Str("provider", rt.client.Name()).
				Str("model", cfg.LLM.Model).
				Bool("stream", cfg.LLM.Streaming()).
				Msg("agents ready")

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Break This Agent on %s\n", pageURL(cfg.Gateway.Bind, cfg.Gateway.CustomBindHost, cfg.Gateway.Port, cfg.Gateway.TLS.Enabled))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")

	return cmd
}

func pageURL(bind, host string, port int, tls bool) string {
	scheme := "http"
	if tls {
		scheme = "https"
	}
	switch bind {
	case "custom":
		if host == "" {
			host = "0.0.0.0"
		}
	case "lan", "auto":
		host = "0.0.0.0"
	default:
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s://%s:%d/", scheme, host, port)
}
