package cmd

import (
	"langaccessor/config"
	"langaccessor/logger"

	"github.com/spf13/cobra"
)

var standaloneServerPort string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the API server and rule synchronization without the proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := portFromFlag(cmd.Flags().Changed("port"), standaloneServerPort, config.AppConfig.Server.Port, "8788")
		logger.Info("--- Server Command: Run (port %s) ---", port)
		return serve(serveOptions{apiPort: port})
	},
}

func init() {
	serverCmd.Flags().StringVarP(&standaloneServerPort, "port", "p", "8788", "Port for the server to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
