package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show or change whether Accept-Language rewriting is enabled",
}

var statusShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the enabled flag",
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := settings.Enabled(cmd.Context())
		if err != nil {
			return err
		}
		if enabled {
			fmt.Fprintln(cmd.OutOrStdout(), "enabled")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "disabled")
		}
		return nil
	},
}

func setEnabledCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Set the enabled flag to %t", enabled),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.SetEnabled(cmd.Context(), enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rewriting %sd.\n", use)
			return nil
		},
	}
}

func init() {
	statusCmd.AddCommand(statusShowCmd)
	statusCmd.AddCommand(setEnabledCmd("enable", true))
	statusCmd.AddCommand(setEnabledCmd("disable", false))
	rootCmd.AddCommand(statusCmd)
}
