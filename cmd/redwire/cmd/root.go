package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redwire/redwire/internal/config"
	"github.com/redwire/redwire/internal/telemetry"
	"github.com/redwire/redwire/pkg/defaults"
)

var (
	logLevel   string
	logDev     bool
	logFile    string
	cfg        *config.Config
	log        *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "redwire",
	Short:   "redwire is an instrumented HTTP-request gateway for AI-assisted security testing.",
	Version: defaults.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		l, err := telemetry.InitLogger(telemetry.LoggerConfig{
			Level:       logLevel,
			Development: logDev,
			FilePath:    logFile,
		})
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		log = l
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error("command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(defaults.ExitUserError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logDev, "log-dev", false, "human-readable console logging instead of JSON")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also rotate logs to this file via lumberjack")
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}
