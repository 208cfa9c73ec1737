package cmd

import (
	"context"
	"fmt"
	"os"

	"langaccessor/config"
	"langaccessor/database"
	"langaccessor/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile          string
	dbPath           string // Bound to --dbpath flag
	appLogPathFlag   string
	proxyLogPathFlag string
	logLevelFlag     string

	store    database.Backend
	settings *database.Settings
)

// noStoreAnnotation marks commands that never touch the settings store.
const noStoreAnnotation = "langaccessor/no-store"

var rootCmd = &cobra.Command{
	Use:   "langaccessor",
	Short: "Per-domain Accept-Language rewriting proxy",
	Long: `langaccessor stores a preferred language per website and rewrites the
Accept-Language header of requests to those websites through a local proxy.

Settings can be edited from the CLI or the HTTP API; the running proxy picks up
every change and reinstalls its header rules.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(cfgFile, appLogPathFlag, proxyLogPathFlag, logLevelFlag); err != nil {
			return fmt.Errorf("failed to initialize config in PersistentPreRunE: %w", err)
		}
		if skipsStore(cmd) {
			return nil
		}

		finalDBPath := config.AppConfig.Database.Path
		if dbPath != "" {
			expanded, err := config.ExpandTilde(dbPath)
			if err != nil {
				logger.Error("Error expanding tilde in --dbpath flag '%s': %v. Using original.", dbPath, err)
				expanded = dbPath
			}
			finalDBPath = expanded
			logger.Info("PersistentPreRunE: Using database path from --dbpath flag: '%s'", finalDBPath)
		}
		if finalDBPath == "" {
			logger.Error("PersistentPreRunE: Database path is empty after checking flag and config! Falling back to 'langaccessor.db' in CWD.")
			finalDBPath = "langaccessor.db"
		}

		var err error
		store, err = database.Open(database.Options{
			Backend:       config.AppConfig.Store.Backend,
			Path:          finalDBPath,
			RedisAddr:     config.AppConfig.Redis.Addr,
			RedisPassword: config.AppConfig.Redis.Password,
			RedisDB:       config.AppConfig.Redis.DB,
			RedisPrefix:   config.AppConfig.Redis.Prefix,
		})
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", config.AppConfig.Store.Backend, err)
		}
		settings = database.NewSettings(store)

		fresh, err := settings.EnsureInitialized(context.Background())
		if err != nil {
			return fmt.Errorf("failed to initialize settings: %w", err)
		}
		if fresh {
			logger.Info("PersistentPreRunE: first run, default settings written")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store == nil {
			return
		}
		if err := store.Close(); err != nil {
			logger.Error("Closing store: %v", err)
		}
		store = nil
	},
}

func skipsStore(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "completion", "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	_, ok := cmd.Annotations[noStoreAnnotation]
	return ok
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/langaccessor/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "dbpath", "", "path to SQLite database file (overrides config/default)")
	rootCmd.PersistentFlags().StringVar(&appLogPathFlag, "app-log", "", "path for the application log file (overrides config/default)")
	rootCmd.PersistentFlags().StringVar(&proxyLogPathFlag, "proxy-log", "", "path for the proxy log file (overrides config/default)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: DEBUG, INFO, WARN, ERROR (overrides config/default)")
}
