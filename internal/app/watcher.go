package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	fsw "github.com/corey/whiskeybar/internal/adapters/fsnotify"
	"github.com/corey/whiskeybar/internal/adapters/seed"
)

// SeedFiles names the seed files to load. Either may be empty.
type SeedFiles struct {
	Catalog string
	Reviews string
}

// SeedReport summarises a load of both files.
type SeedReport struct {
	Catalog seed.Report
	Reviews seed.Report
}

// LoadSeeds loads the catalog, then the reviews. Loads are serialized with
// watcher-triggered reloads.
func (a *App) LoadSeeds(ctx context.Context, files SeedFiles) (SeedReport, error) {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	var rep SeedReport
	if files.Catalog != "" {
		r, err := a.Loader.LoadCatalogFile(ctx, files.Catalog)
		rep.Catalog = r
		if err != nil {
			return rep, fmt.Errorf("load %s: %w", files.Catalog, err)
		}
	}
	if files.Reviews != "" {
		r, err := a.Loader.LoadReviewsFile(ctx, files.Reviews)
		rep.Reviews = r
		if err != nil {
			return rep, fmt.Errorf("load %s: %w", files.Reviews, err)
		}
	}
	return rep, nil
}

// WatchSeeds reloads a seed file whenever it changes on disk. onReload, if
// set, is called after every reload attempt. The watcher stops on Close.
func (a *App) WatchSeeds(ctx context.Context, files SeedFiles, onReload func(path string, rep seed.Report, err error)) error {
	if a.watcher != nil {
		return errors.New("seed watcher already running")
	}

	var paths []string
	catalogAbs, reviewsAbs := absOrEmpty(files.Catalog), absOrEmpty(files.Reviews)
	for _, p := range []string{catalogAbs, reviewsAbs} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return errors.New("no seed files to watch")
	}

	w, err := fsw.NewWatcher(a.Config.Watch.Debounce)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	err = w.Watch(paths, func(path string) {
		rep, err := a.onSeedChanged(ctx, path, catalogAbs, reviewsAbs)
		if onReload != nil {
			onReload(path, rep, err)
		}
	})
	if err != nil {
		w.Stop()
		return fmt.Errorf("watch seeds: %w", err)
	}
	a.watcher = w
	return nil
}

// onSeedChanged reloads whichever seed file changed.
func (a *App) onSeedChanged(ctx context.Context, path, catalogPath, reviewsPath string) (seed.Report, error) {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	var (
		rep seed.Report
		err error
	)
	switch path {
	case catalogPath:
		rep, err = a.Loader.LoadCatalogFile(ctx, path)
	case reviewsPath:
		rep, err = a.Loader.LoadReviewsFile(ctx, path)
	default:
		return rep, fmt.Errorf("unexpected seed path %s", path)
	}

	ev := a.log.Info()
	if err != nil {
		ev = a.log.Error().Err(err)
	}
	ev.Str("file", filepath.Base(path)).
		Int("loaded", rep.Loaded).
		Int("skipped", rep.Skipped).
		Msg("seed reload")
	return rep, err
}

func absOrEmpty(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
