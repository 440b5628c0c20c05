package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/corey/whiskeybar/internal/app"
	"github.com/corey/whiskeybar/internal/logging"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveCatalog string
	serveReviews string
	serveWatch   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Long: "Serves /api/whiskeys/search, /api/whiskeys/ranking, /api/whiskeys/{id},\n" +
		"/api/health and /metrics. Optionally loads and watches seed files.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveCatalog, "catalog", "", "catalog seed file to load at startup")
	serveCmd.Flags().StringVar(&serveReviews, "reviews", "", "reviews seed file to load at startup")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "reload seed files when they change")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if serveAddr != "" {
		a.Config.Server.Addr = serveAddr
	}

	files := app.SeedFiles{Catalog: serveCatalog, Reviews: serveReviews}
	if files.Catalog != "" || files.Reviews != "" {
		rep, err := a.LoadSeeds(cmd.Context(), files)
		if err != nil {
			return err
		}
		logging.Info().
			Int("whiskeys", rep.Catalog.Loaded).
			Int("reviews", rep.Reviews.Loaded).
			Int("skipped", rep.Catalog.Skipped+rep.Reviews.Skipped).
			Msg("seeds loaded")
		if serveWatch {
			if err := a.WatchSeeds(cmd.Context(), files, nil); err != nil {
				return err
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		return err
	}
	fmt.Printf("%s⚡ whiskeybar serving at %s%s\n", c(colorBold), a.Server.URL(), c(colorReset))
	<-ctx.Done()
	fmt.Println("\n⚡ shutting down...")
	return a.Shutdown()
}
