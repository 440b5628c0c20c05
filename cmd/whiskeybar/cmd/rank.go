package cmd

import (
	"fmt"

	"github.com/corey/whiskeybar/internal/domain/ranking"
	"github.com/spf13/cobra"
)

var (
	rankPage     int
	rankPageSize int
	rankJSON     bool
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Show the popularity ranking",
	Long: "Ranks every catalog entry by average review rating, then review count.\n" +
		"Reviewed entries come first; ties keep catalog order.",
	RunE:  runRank,
}

func init() {
	rankCmd.Flags().IntVarP(&rankPage, "page", "p", 1, "page number")
	rankCmd.Flags().IntVarP(&rankPageSize, "page-size", "s", ranking.DefaultPageSize, "rows per page (1-100)")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "print JSON")
}

func runRank(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.Ranking.Rank(cmd.Context(), rankPage, rankPageSize)
	if rankJSON {
		return printJSON(map[string]any{
			"rankings":   p.Rows,
			"pagination": p.Pagination,
			"degraded":   p.Degraded,
		})
	}
	fmt.Print(formatRanking(p))
	return nil
}
