package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/corey/whiskeybar/internal/adapters/seed"
	"github.com/corey/whiskeybar/internal/app"
	"github.com/spf13/cobra"
)

var (
	loadReviews string
	loadWatch   bool
)

var loadCmd = &cobra.Command{
	Use:   "load [catalog.json]",
	Short: "Load seed files into the store",
	Long: "Loads a catalog file and/or a reviews file. Records are upserted by id,\n" +
		"so loading the same file twice is harmless. Invalid records are skipped.\n" +
		"With --watch, keeps running and reloads a file whenever it changes.",
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVarP(&loadReviews, "reviews", "r", "", "reviews seed file")
	loadCmd.Flags().BoolVarP(&loadWatch, "watch", "w", false, "reload files when they change")
}

func runLoad(cmd *cobra.Command, args []string) error {
	files := app.SeedFiles{Reviews: loadReviews}
	if len(args) == 1 {
		files.Catalog = args[0]
	}
	if files.Catalog == "" && files.Reviews == "" {
		return errors.New("nothing to load: pass a catalog file and/or --reviews")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.LoadSeeds(cmd.Context(), files)
	fmt.Printf("%s⚡ load%s\n", c(colorBold), c(colorReset))
	if files.Catalog != "" {
		fmt.Print(formatLoad("catalog", files.Catalog, rep.Catalog))
	}
	if files.Reviews != "" {
		fmt.Print(formatLoad("reviews", files.Reviews, rep.Reviews))
	}
	if err != nil {
		return err
	}
	if !loadWatch {
		return nil
	}

	err = a.WatchSeeds(cmd.Context(), files, func(path string, rep seed.Report, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "reload %s: %v\n", path, err)
			return
		}
		fmt.Print(formatLoad("reload", path, rep))
	})
	if err != nil {
		return err
	}
	fmt.Printf("%swatching for changes, Ctrl-C to stop%s\n", c(colorGray), c(colorReset))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}
