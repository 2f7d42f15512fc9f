package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	Debug       bool
	HTTPPort    int
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

func parseFlags() *CLIConfig {
	return parseArgs(flag.CommandLine, os.Args[1:])
}

func parseArgs(fs *flag.FlagSet, args []string) *CLIConfig {
	cfg := &CLIConfig{}

	// Flags fall back to the environment. Empty values leave the config file in charge.
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("HERITAGE_CONFIG", ""),
		"Path to a YAML or JSON configuration file (env: HERITAGE_CONFIG)")

	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("HERITAGE_CONFIG", ""),
		"Path to a YAML or JSON configuration file (env: HERITAGE_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("HERITAGE_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: HERITAGE_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("HERITAGE_LOG_FORMAT", ""),
		"Log format: json, text (env: HERITAGE_LOG_FORMAT)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("HERITAGE_DEBUG", false),
		"Enable debug logging (env: HERITAGE_DEBUG)")

	fs.IntVar(&cfg.HTTPPort, "port",
		getEnvInt("HERITAGE_HTTP_PORT", 0),
		"HTTP gateway port (env: HERITAGE_HTTP_PORT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = printDetailedHelp

	// ExitOnError flag sets never return an error here
	_ = fs.Parse(args)

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - cultural heritage relay client

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run against the relays in a config file
  %s --config=configs/heritage.yaml

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Run with environment variables only
  export HERITAGE_RELAYS=wss://relay.one.example,wss://relay.two.example
  export HERITAGE_NATS_URL=nats://localhost:4222
  %s

  # Validate configuration only
  %s --config=configs/heritage.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
