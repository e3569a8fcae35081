package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srmsweets/hrportal/internal/devserver"
)

func newDevServerCmd(a *app) *cobra.Command {
	var addr, dbPath string
	var seed bool
	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Run a local SQLite-backed stand-in for the HR backend",
		Long: "Serve the chat, employee and request endpoints from a local SQLite\n" +
			"database. Point the client at it with --api-url http://<addr>.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.DevServer
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}

			store, err := devserver.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if cfg.Seed {
				if err := store.Seed(ctx, a.cfg.IdentityModel()); err != nil {
					return fmt.Errorf("seed: %w", err)
				}
			}
			log := logCLI()
			log.Info().Str("db", cfg.DBPath).Str("addr", cfg.Addr).Msg("starting dev server")
			return devserver.NewServer(store).ListenAndServe(ctx, cfg.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides dev_server.addr)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides dev_server.db_path)")
	cmd.Flags().BoolVar(&seed, "seed", true, "seed an empty database with sample data")
	return cmd
}
