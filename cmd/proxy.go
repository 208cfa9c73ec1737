package cmd

import (
	"fmt"

	"langaccessor/config"
	"langaccessor/core"
	"langaccessor/logger"

	"github.com/spf13/cobra"
)

var standaloneProxyPort string

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Manages the rewriting proxy (can be run standalone or as part of 'start')",
}

var proxyStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the rewriting proxy and rule synchronization without the API server",
	Long: `Starts the forward proxy that rewrites Accept-Language on requests to configured domains.
Configure your browser or system to use this proxy. With proxy.mitm enabled (the default)
HTTPS requests are rewritten too; this needs the CA certificate created by 'proxy init-ca'
to be trusted by your client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port := portFromFlag(cmd.Flags().Changed("port"), standaloneProxyPort, config.AppConfig.Proxy.Port, "8787")
		logger.ProxyInfo("Attempting to start rewriting proxy on port %s...", port)
		return serve(serveOptions{proxyPort: port})
	},
}

var proxyInitCACmd = &cobra.Command{
	Use:         "init-ca",
	Short:       "Generates the root CA certificate and key used to intercept HTTPS",
	Annotations: map[string]string{noStoreAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		certPath := config.AppConfig.Proxy.CACertPath
		keyPath := config.AppConfig.Proxy.CAKeyPath
		if certPath == "" || keyPath == "" {
			logger.Error("CA certificate or key path is not defined in configuration.")
			return fmt.Errorf("proxy.ca_cert_path and proxy.ca_key_path must be set")
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Initializing Proxy CA...")
		if err := core.GenerateAndSaveCA(certPath, keyPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "CA certificate written to %s\n", certPath)
		fmt.Fprintln(cmd.OutOrStdout(), "Please import the CA certificate into your browser/system's trust store.")
		return nil
	},
}

func init() {
	proxyStartCmd.Flags().StringVarP(&standaloneProxyPort, "port", "p", "8787", "Port for the proxy server to listen on (overrides config)")

	proxyCmd.AddCommand(proxyStartCmd)
	proxyCmd.AddCommand(proxyInitCACmd)
	rootCmd.AddCommand(proxyCmd)
}
