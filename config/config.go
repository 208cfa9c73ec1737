package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"langaccessor/logger"

	"github.com/spf13/viper"
)

const (
	appDirName = "langaccessor"
	envPrefix  = "LANGACCESSOR"
)

type DefaultPaths struct {
	ConfigDir    string
	LogPathApp   string
	LogPathProxy string
	CACertPath   string
	CAKeyPath    string
	DBPath       string
	LogLevel     string
}

type Configuration struct {
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Store struct {
		Backend string `mapstructure:"backend"` // sqlite, redis or memory
		Watch   bool   `mapstructure:"watch"`   // watch the sqlite file for edits made by other processes
	} `mapstructure:"store"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"redis"`
	Server struct {
		Port    string `mapstructure:"port"`
		LogPath string `mapstructure:"log_path"`
	} `mapstructure:"server"`
	Proxy struct {
		Port       string `mapstructure:"port"`
		CACertPath string `mapstructure:"ca_cert_path"`
		CAKeyPath  string `mapstructure:"ca_key_path"`
		LogPath    string `mapstructure:"log_path"`
		MITM       bool   `mapstructure:"mitm"`
	} `mapstructure:"proxy"`
	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
	Rules struct {
		MaxRules int `mapstructure:"max_rules"`
	} `mapstructure:"rules"`
	Sync struct {
		Strategy string `mapstructure:"strategy"` // replace or diff
	} `mapstructure:"sync"`
}

var AppConfig Configuration

func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// ExpandTilde replaces a leading ~ with the user's home directory.
func ExpandTilde(path string) (string, error) {
	return expandTilde(path)
}

func GetDefaultConfigPaths() DefaultPaths {
	var paths DefaultPaths
	userConfigDirBase, err := os.UserConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not get user config dir: %v. Using current directory.\n", err)
		userConfigDirBase = "."
	}

	paths.ConfigDir = filepath.Join(userConfigDirBase, appDirName)
	logDir := filepath.Join(paths.ConfigDir, "logs")

	paths.LogPathApp = filepath.Join(logDir, "app.log")
	paths.LogPathProxy = filepath.Join(logDir, "proxy.log")
	paths.CACertPath = filepath.Join(paths.ConfigDir, "langaccessor-ca.crt")
	paths.CAKeyPath = filepath.Join(paths.ConfigDir, "langaccessor-ca.key")
	paths.DBPath = filepath.Join(paths.ConfigDir, "langaccessor.db")
	paths.LogLevel = "INFO"
	return paths
}

// setDefaults registers every default on v.
func setDefaults(v *viper.Viper, defaults DefaultPaths) {
	v.SetDefault("database.path", defaults.DBPath)
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.watch", true)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "langaccessor:")
	v.SetDefault("server.port", "8788")
	v.SetDefault("server.log_path", defaults.LogPathApp)
	v.SetDefault("proxy.port", "8787")
	v.SetDefault("proxy.ca_cert_path", defaults.CACertPath)
	v.SetDefault("proxy.ca_key_path", defaults.CAKeyPath)
	v.SetDefault("proxy.log_path", defaults.LogPathProxy)
	v.SetDefault("proxy.mitm", true)
	v.SetDefault("logging.level", defaults.LogLevel)
	v.SetDefault("rules.max_rules", 5000)
	v.SetDefault("sync.strategy", "replace")
}

// Load reads configuration from cfgFile (or the default locations), the environment and defaults.
// It does not touch the global AppConfig or the loggers.
func Load(cfgFile string) (Configuration, string, error) {
	var cfg Configuration
	v := viper.New()

	defaults := GetDefaultConfigPaths()
	setDefaults(v, defaults)

	if cfgFile != "" {
		expandedCfgFile, err := expandTilde(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in config file path '%s': %v. Trying original path.\n", cfgFile, err)
			expandedCfgFile = cfgFile
		}
		v.SetConfigFile(expandedCfgFile)
		v.SetConfigType("yaml")
	} else {
		v.AddConfigPath(defaults.ConfigDir)
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configUsedMsg := "Using default/environment configuration."
	readErr := v.ReadInConfig()
	if readErr == nil {
		configUsedMsg = fmt.Sprintf("Using config file: %s", v.ConfigFileUsed())
	} else if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
		if cfgFile != "" {
			return cfg, "", fmt.Errorf("reading config file %s: %w", cfgFile, readErr)
		}
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", v.ConfigFileUsed(), readErr)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, "", fmt.Errorf("unable to decode config into struct: %w", err)
	}

	for _, p := range []*string{&cfg.Database.Path, &cfg.Proxy.CACertPath, &cfg.Proxy.CAKeyPath, &cfg.Server.LogPath, &cfg.Proxy.LogPath} {
		expanded, err := expandTilde(*p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in '%s': %v.\n", *p, err)
			continue
		}
		*p = expanded
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Sync.Strategy = strings.ToLower(strings.TrimSpace(cfg.Sync.Strategy))
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if err := Validate(cfg); err != nil {
		return cfg, "", err
	}
	return cfg, configUsedMsg, nil
}

// Validate checks the values that have a closed set of options.
func Validate(cfg Configuration) error {
	switch cfg.Store.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("store.backend must be sqlite, redis or memory, got %q", cfg.Store.Backend)
	}
	switch cfg.Sync.Strategy {
	case "replace", "diff":
	default:
		return fmt.Errorf("sync.strategy must be replace or diff, got %q", cfg.Sync.Strategy)
	}
	if cfg.Rules.MaxRules <= 0 {
		return fmt.Errorf("rules.max_rules must be positive, got %d", cfg.Rules.MaxRules)
	}
	return nil
}

// Init loads the configuration into AppConfig, applies flag overrides and (re)initializes the loggers.
func Init(cfgFile string, flagAppLogPath, flagProxyLogPath, flagLogLevel string) error {
	cfg, configUsedMsg, err := Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: %v\n", err)
		return err
	}

	// Apply flag overrides
	if flagAppLogPath != "" {
		if cfg.Server.LogPath, err = expandTilde(flagAppLogPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in --app-log path '%s': %v. Using original path.\n", flagAppLogPath, err)
			cfg.Server.LogPath = flagAppLogPath
		}
	}
	if flagProxyLogPath != "" {
		if cfg.Proxy.LogPath, err = expandTilde(flagProxyLogPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in --proxy-log path '%s': %v. Using original path.\n", flagProxyLogPath, err)
			cfg.Proxy.LogPath = flagProxyLogPath
		}
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = strings.ToUpper(flagLogLevel)
	}
	AppConfig = cfg

	if err := os.MkdirAll(GetDefaultConfigPaths().ConfigDir, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not create main config directory: %v\n", err)
	}

	if err := logger.InitGlobalLoggers(AppConfig.Server.LogPath, AppConfig.Proxy.LogPath, AppConfig.Logging.Level); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to initialize global loggers with final config: %v\n", err)
		return fmt.Errorf("failed to initialize global loggers with final config: %w", err)
	}

	logger.Info(configUsedMsg)
	if flagAppLogPath != "" || flagProxyLogPath != "" || flagLogLevel != "" {
		logger.Info("Log path/level flags may have overridden config file/defaults.")
	}
	logger.Info("Store backend: %s, sync strategy: %s, max rules: %d", AppConfig.Store.Backend, AppConfig.Sync.Strategy, AppConfig.Rules.MaxRules)
	if !AppConfig.Proxy.MITM {
		logger.Warn("Proxy: TLS interception is DISABLED; HTTPS requests will be tunnelled without header rewriting.")
	}

	logger.Debug("Final AppConfig Initialized: %+v", AppConfig)
	return nil
}
