package cmd

import (
	"fmt"
	"os"

	"github.com/corey/whiskeybar/internal/adapters/bbolt"
	"github.com/corey/whiskeybar/internal/app"
	"github.com/corey/whiskeybar/internal/config"
	"github.com/corey/whiskeybar/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagDB       string
	flagLogLevel string
	flagNoColor  bool
)

var rootCmd = &cobra.Command{
	Use:           "whiskeybar",
	Short:         "whiskeybar: whiskey catalog search and ranking",
	Long:          "Tiered Japanese/English catalog search and review-based popularity ranking over a local bbolt store.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		colorEnabled = !flagNoColor && isStdoutTTY()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default $WHISKEYBAR_CONFIG or ./whiskeybar.yaml)")
	pf.StringVar(&flagDB, "db", "", "database path (overrides store.path)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (overrides log.level)")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig applies the persistent flags on top of config.Load and
// initializes logging from the result.
func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, flagConfig); err != nil {
			return nil, fmt.Errorf("set %s: %w", config.ConfigPathEnvVar, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Store.Path = flagDB
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})
	return cfg, nil
}

// openApp loads configuration and opens the store. A lock timeout is turned
// into guidance about who holds the database.
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		if bbolt.IsLockTimeout(err) {
			return nil, fmt.Errorf("%s", diagnoseDBLock(cfg.Store.Path))
		}
		return nil, err
	}
	return a, nil
}
