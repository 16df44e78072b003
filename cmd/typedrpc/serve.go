package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeusync/typedrpc/internal/core/observability/log"
	"github.com/zeusync/typedrpc/internal/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	config := server.DefaultServerConfig()
	var fixturesPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a stand-in node answering from a fixture file",
		Long: `Run a websocket JSON-RPC node that answers each method with a canned
reply. The fixture file maps method names to {result: 0x-hex} or
{error: message}; with --schema every result is checked against the
method's return type first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.clientConfig()
			if err != nil {
				return err
			}
			logger := flags.logger(cfg)

			fixtures := server.Fixtures{}
			if fixturesPath != "" {
				if fixtures, err = server.LoadFixtures(fixturesPath); err != nil {
					return err
				}
			}
			if cfg.Schema != "" {
				schema, err := flags.loadSchema()
				if err != nil {
					return err
				}
				if err = fixtures.Check(schema); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, config, fixtures, logger)
		},
	}

	cmd.Flags().StringVar(&config.ListenAddr, "addr", config.ListenAddr, "listen address")
	cmd.Flags().StringVarP(&fixturesPath, "fixtures", "f", "", "fixture file (YAML)")
	return cmd
}

// runServer serves until ctx ends.
func runServer(ctx context.Context, config server.Config, fixtures server.Fixtures, logger log.Log) error {
	srv, err := server.NewServer(config, fixtures, logger)
	if err != nil {
		return err
	}
	if err = srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
