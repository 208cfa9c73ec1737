package cmd

import (
	"langaccessor/config"
	"langaccessor/logger"

	"github.com/spf13/cobra"
)

var (
	startServerPort string
	startProxyPort  string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts all services (API server, rewriting proxy and rule synchronization)",
	Long: `Starts the API server and the rewriting proxy concurrently, installs the header
rules derived from the stored settings and keeps them in sync with every change.
Press Ctrl+C to gracefully shut down all services.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("--- Start Command: Run ---")
		opts := serveOptions{
			apiPort:   portFromFlag(cmd.Flags().Changed("server-port"), startServerPort, config.AppConfig.Server.Port, "8788"),
			proxyPort: portFromFlag(cmd.Flags().Changed("proxy-port"), startProxyPort, config.AppConfig.Proxy.Port, "8787"),
		}
		logger.Info("Start Command: Final ports determined - Server: %s, Proxy: %s", opts.apiPort, opts.proxyPort)
		return serve(opts)
	},
}

func init() {
	startCmd.Flags().StringVar(&startServerPort, "server-port", "8788", "Port for the API server (overrides config)")
	startCmd.Flags().StringVar(&startProxyPort, "proxy-port", "8787", "Port for the rewriting proxy (overrides config)")
	rootCmd.AddCommand(startCmd)
}
