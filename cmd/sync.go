package cmd

import (
	"fmt"

	"langaccessor/config"
	"langaccessor/core"
	"langaccessor/logger"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass and exit",
	Long: `Recomputes the header rules from the stored settings and installs them. A running
'start' picks up settings changes on its own; use this to repair the stored rule set
without one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := core.ParseStrategy(config.AppConfig.Sync.Strategy)
		if err != nil {
			return err
		}
		engine := core.NewHeaderRuleEngine(store, config.AppConfig.Rules.MaxRules)
		if err := engine.Load(cmd.Context()); err != nil {
			return err
		}
		result, err := core.NewSynchronizer(settings, engine, strategy).Synchronize(cmd.Context())
		if err != nil {
			logger.Error("Sync Command: %v", err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rules synchronized. Added: %d, Removed: %d, Active: %d\n",
			len(result.Added), len(result.Removed), len(result.Rules))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
