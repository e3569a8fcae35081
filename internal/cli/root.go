// Package cli implements the hrchat command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/srmsweets/hrportal/internal/chat"
	"github.com/srmsweets/hrportal/internal/chatapi"
	"github.com/srmsweets/hrportal/internal/config"
	"github.com/srmsweets/hrportal/internal/logging"
)

// Execute runs the root command.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd(version).ExecuteContext(ctx)
}

// app carries the state shared by every subcommand.
type app struct {
	version string
	loader  *config.Loader
	cfg     *config.Config

	configFile string
	envFile    string
	apiURL     string
	logLevel   string
}

func newRootCmd(version string) *cobra.Command {
	a := &app{version: version, loader: config.NewLoader()}

	cmd := &cobra.Command{
		Use:   "hrchat",
		Short: "HR console group messaging",
		Long: "hrchat is the HR console's group messaging client. Without a\n" +
			"subcommand it opens the terminal UI when attached to a terminal.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           version,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !hasTTY() {
				return cmd.Help()
			}
			return a.runTUI(cmd, "")
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/hrchat/config.yaml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment (empty to skip)")
	flags.StringVar(&a.apiURL, "api-url", "", "backend base URL (overrides api.base_url)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug|info|warn|error")
	_ = a.loader.Viper().BindPFlag("api.base_url", flags.Lookup("api-url"))
	_ = a.loader.Viper().BindPFlag("logging.level", flags.Lookup("log-level"))

	cmd.AddCommand(
		newTUICmd(a),
		newGroupsCmd(a),
		newMessagesCmd(a),
		newSendCmd(a),
		newGroupCmd(a),
		newReadCmd(a),
		newWatchCmd(a),
		newDevServerCmd(a),
	)
	return cmd
}

// setup loads configuration and points logging at stderr. The TUI
// re-targets logging to a file once it knows it owns the terminal.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.configFile != "" {
		a.loader.SetConfigFile(a.configFile)
	}
	a.loader.SetEnvFile(a.envFile)

	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.initLogging(cmd.ErrOrStderr())
	if used := a.loader.ConfigFileUsed(); used != "" {
		log := logCLI()
		log.Debug().Str("file", used).Msg("config loaded")
	}
	return nil
}

func (a *app) initLogging(out io.Writer) {
	logging.Init(logging.Config{
		Level:        a.cfg.Logging.Level,
		Format:       a.cfg.Logging.Format,
		Output:       out,
		EnableCaller: a.cfg.Logging.EnableCaller,
	})
}

func (a *app) client() (*chatapi.Client, error) {
	client, err := chatapi.NewClient(chatapi.Config{
		BaseURL: a.cfg.API.BaseURL,
		Timeout: a.cfg.API.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}
	return client, nil
}

func (a *app) engine() (*chat.Engine, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	return chat.NewEngine(chat.Config{
		Identity: a.cfg.IdentityModel(),
		Sync: chat.SyncConfig{
			DirectoryInterval:    a.cfg.Chat.DirectoryInterval,
			ConversationInterval: a.cfg.Chat.ConversationInterval,
			NotifyInterval:       a.cfg.Chat.NotifyInterval,
			RequestBadgeInterval: a.cfg.Chat.RequestBadgeInterval,
		},
		AlertTTL: a.cfg.Chat.AlertTTL,
	}, client, client), nil
}

func logCLI() zerolog.Logger {
	return logging.Component("cli")
}
