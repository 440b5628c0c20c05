package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	searchLimit      int
	searchDistillery string
	searchJSON       bool
	getJSON          bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the catalog by name or distillery",
	Long: "Runs exact-name, exact-distillery and substring tiers against the store.\n" +
		"Katakana and Hiragana match each other; case and spaces are ignored.\n" +
		"With no query, lists the first entries alphabetically.\n" +
		"--distillery keeps only hits whose distillery contains the given text.",
	RunE: runSearch,
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum results (1-50)")
	searchCmd.Flags().StringVarP(&searchDistillery, "distillery", "d", "", "filter by distillery (case-insensitive partial match)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print JSON")
	getCmd.Flags().BoolVar(&getJSON, "json", false, "print JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.Join(args, " ")
	start := time.Now()
	distillery := strings.TrimSpace(searchDistillery)
	res := a.Search.SearchFiltered(cmd.Context(), query, distillery, searchLimit)
	elapsed := time.Since(start)

	if searchJSON {
		return printJSON(map[string]any{
			"whiskeys":   res.Hits,
			"count":      len(res.Hits),
			"query":      query,
			"distillery": distillery,
			"degraded":   res.Degraded,
		})
	}
	fmt.Print(formatSearchResult(query, res, elapsed))
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	hit, err := a.Search.Lookup(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if hit == nil {
		return fmt.Errorf("whiskey %s not found", args[0])
	}
	if getJSON {
		return printJSON(hit)
	}
	fmt.Print(formatWhiskey(hit))
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = os.Stdout.Write(data)
	return err
}
