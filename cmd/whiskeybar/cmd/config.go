package cmd

import (
	"fmt"

	"github.com/corey/whiskeybar/internal/app"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long:  "Shows the effective configuration and whether a server is running. Does not open the store.",
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paths, err := app.NewPaths(cfg.Store.Path)
	if err != nil {
		return err
	}

	serverStatus := fmt.Sprintf("%s✗ not running%s", c(colorYellow), c(colorReset))
	if addr := paths.ReadAddr(); addr != "" && serverAlive(addr) {
		serverStatus = fmt.Sprintf("%s✓ running%s at http://%s", c(colorGreen), c(colorReset), addr)
	}

	breaker := "disabled"
	if cfg.Breaker.Enabled {
		breaker = fmt.Sprintf("%d failures → open %s", cfg.Breaker.FailureThreshold, cfg.Breaker.Timeout)
	}

	fmt.Printf("%s⚡ whiskeybar config%s\n", c(colorBold), c(colorReset))
	fmt.Printf("  DB:            %s\n", paths.DB)
	fmt.Printf("  Listen:        %s\n", cfg.Server.Addr)
	fmt.Printf("  Origins:       %v\n", cfg.Server.AllowedOrigins)
	fmt.Printf("  Tier timeout:  %s\n", cfg.Search.TierTimeout)
	fmt.Printf("  Rank timeout:  %s\n", cfg.Ranking.CallTimeout)
	fmt.Printf("  Breaker:       %s\n", breaker)
	fmt.Printf("  Log:           %s (%s)\n", cfg.Log.Level, cfg.Log.Format)
	fmt.Printf("  Server:        %s\n", serverStatus)
	return nil
}
