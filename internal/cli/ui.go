package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srmsweets/hrportal/internal/chattui"
	"github.com/srmsweets/hrportal/internal/logging"
)

func newTUICmd(a *app) *cobra.Command {
	var theme string
	cmd := &cobra.Command{
		Use:     "tui",
		Aliases: []string{"ui"},
		Short:   "Open the terminal UI",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !hasTTY() {
				return errors.New("the terminal UI needs an interactive terminal; use the groups, messages and send commands instead")
			}
			return a.runTUI(cmd, theme)
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "theme: default|high-contrast (overrides tui.theme)")
	return cmd
}

// runTUI owns the terminal until the user quits. Logs move to the log
// file first so they cannot draw over the alt screen.
func (a *app) runTUI(cmd *cobra.Command, theme string) error {
	logFile, err := logging.OpenFile(a.cfg.Logging.File)
	if err != nil {
		return err
	}
	defer logFile.Close()
	a.initLogging(logFile)

	engine, err := a.engine()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := cmd.Context()
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	if theme == "" {
		theme = a.cfg.TUI.Theme
	}
	return chattui.Run(ctx, engine, chattui.Config{Theme: theme})
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
