package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/spendsense/operator-console/internal/logging"
	"github.com/spendsense/operator-console/internal/tui"
)

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:    "tui",
		Short:  "Launch interactive dashboard",
		Hidden: true, // running `spendsense` without args launches the dashboard
		Long: `Launch the interactive operator dashboard.

Navigation:
  - Use 1-4 or Tab to switch tabs
  - Use arrow keys or j/k to move through the queue
  - a / f / r approve, flag or reject the selected recommendation
  - / searches users, ? shows every key
  - Press 'q' to quit`,
		RunE: runTUI,
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	// Logs go to a file so they do not corrupt the terminal.
	e, err := loadAuthedEnv(cmd)
	if err != nil {
		return err
	}
	if f, err := logging.OpenFile(e.paths.LogDir, "console.log"); err == nil {
		e.logger.SetOutput(f)
		defer f.Close()
	} else {
		e.logger.SetOutput(io.Discard)
	}

	e.logger.WithField("api_origin", e.cfg.APIOrigin).Info("starting dashboard")
	return tui.Run(cmd.Context(), tui.RunOptions{
		Config:  e.cfg,
		Service: e.service(),
		Tokens:  e.tokens,
		Logger:  e.logger,
		Metrics: e.metrics,
	})
}
