package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show store contents and breaker state",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	whiskeys, reviews, err := a.Store.Counts(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Print(formatHealth(a.Paths.DB, whiskeys, reviews, a.BreakerState()))
	return nil
}
