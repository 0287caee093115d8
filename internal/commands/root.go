package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the spendsense command tree.
func NewRootCmd(version string) *cobra.Command {
	AppVersion = version

	rootCmd := &cobra.Command{
		Use:   "spendsense",
		Short: "SpendSense operator console",
		Long: `SpendSense operator console: review generated recommendations, inspect
user signals and watch live review activity.

Quick Start:
  spendsense                      Launch interactive dashboard (default)
  spendsense login --token <t>    Store an operator token (first time)
  spendsense queue                List pending recommendations

Commands:
  queue                           List the recommendation queue
  approve|flag|reject <id>        Review one recommendation
  signals <user>                  Show a user's behavioral signals
  traces <user>                   Show persona decision traces
  users, user <id>                Browse users
  stats                           Aggregate counts
  consent grant|revoke|status     Manage user consent
  feedback <user> <insight>       Record insight feedback
  insights <kind> <user>          Fetch an insight
  budget generate <user>          Generate a suggested budget
  watch                           Log live events (headless)
  login, logout, status           Manage the operator token

Config: ~/.spendsense/config.yaml
Logs:   ~/.spendsense/logs/console.log`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Config directory (default ~/.spendsense)")

	rootCmd.AddCommand(newTUICmd())
	rootCmd.AddCommand(newQueueCmd())
	for _, c := range newReviewCmds() {
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(newSignalsCmd())
	rootCmd.AddCommand(newTracesCmd())
	rootCmd.AddCommand(newUsersCmd())
	rootCmd.AddCommand(newUserCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConsentCmd())
	rootCmd.AddCommand(newFeedbackCmd())
	rootCmd.AddCommand(newInsightsCmd())
	rootCmd.AddCommand(newBudgetCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newStubServerCmd())

	return rootCmd
}
