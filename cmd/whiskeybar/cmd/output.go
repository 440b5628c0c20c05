package cmd

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/corey/whiskeybar/internal/adapters/seed"
	"github.com/corey/whiskeybar/internal/domain/catalog"
	"github.com/corey/whiskeybar/internal/domain/ranking"
)

// ANSI color codes for terminal output.
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorCyan    = "\033[36m"
	colorMagenta = "\033[35m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorGray    = "\033[90m"
)

// colorEnabled is set once per invocation from --no-color and the TTY check.
var colorEnabled = true

// c returns code when color is enabled, "" otherwise.
func c(code string) string {
	if !colorEnabled {
		return ""
	}
	return code
}

// formatSearchResult formats a search for terminal display.
//
//	⚡ 3 hits │ "yamazaki" │ 2ms
//	  <id>  山崎 12年  @山崎
func formatSearchResult(query string, res *catalog.SearchResult, elapsed time.Duration) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s⚡ %d hits%s │ %q │ %s\n",
		c(colorBold), len(res.Hits), c(colorReset), query, elapsed.Round(time.Microsecond))
	if res.Degraded {
		fmt.Fprintf(&sb, "  %sdegraded: catalog unavailable%s\n", c(colorYellow), c(colorReset))
	}
	for _, h := range res.Hits {
		fmt.Fprintf(&sb, "  %s%s%s  %s", c(colorGray), h.ID, c(colorReset), h.Name)
		if h.Distillery != "" {
			fmt.Fprintf(&sb, "  %s@%s%s", c(colorMagenta), h.Distillery, c(colorReset))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatRanking formats one ranking page.
//
//	⚡ ranking │ page 1/3 │ 42 whiskeys
//	   1. 4.67 ★ (3)  山崎 12年  @山崎
func formatRanking(p *ranking.Page) string {
	var sb strings.Builder
	pg := p.Pagination
	fmt.Fprintf(&sb, "%s⚡ ranking%s │ page %d/%d │ %d whiskeys\n",
		c(colorBold), c(colorReset), pg.Page, pg.TotalPages, pg.TotalItems)
	if p.Degraded {
		fmt.Fprintf(&sb, "  %sdegraded: store unavailable%s\n", c(colorYellow), c(colorReset))
	}
	offset := (pg.Page - 1) * pg.PageSize
	for i, r := range p.Rows {
		fmt.Fprintf(&sb, "  %3d. %s%.2f ★%s %s(%d)%s  %s",
			offset+i+1,
			c(colorGreen), math.Round(r.AvgRating*100)/100, c(colorReset),
			c(colorGray), r.ReviewCount, c(colorReset),
			r.Name)
		if r.Distillery != "" {
			fmt.Fprintf(&sb, "  %s@%s%s", c(colorMagenta), r.Distillery, c(colorReset))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatWhiskey formats a single lookup.
func formatWhiskey(h *catalog.Hit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s⚡ %s%s\n", c(colorBold), h.Name, c(colorReset))
	fmt.Fprintf(&sb, "  ID:          %s\n", h.ID)
	fmt.Fprintf(&sb, "  Distillery:  %s\n", h.Distillery)
	return sb.String()
}

// formatLoad formats a seed load report for one file.
func formatLoad(kind, path string, rep seed.Report) string {
	skipped := fmt.Sprintf("%d skipped", rep.Skipped)
	if rep.Skipped > 0 {
		skipped = c(colorYellow) + skipped + c(colorReset)
	}
	return fmt.Sprintf("  %s%-8s%s %s%s%s  %d loaded, %s\n",
		c(colorBold), kind, c(colorReset), c(colorCyan), path, c(colorReset), rep.Loaded, skipped)
}

// formatHealth formats store counts and breaker state.
func formatHealth(db string, whiskeys, reviews int, breaker string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s⚡ whiskeybar%s\n", c(colorBold), c(colorReset))
	fmt.Fprintf(&sb, "  DB:        %s\n", db)
	fmt.Fprintf(&sb, "  Whiskeys:  %d\n", whiskeys)
	fmt.Fprintf(&sb, "  Reviews:   %d\n", reviews)
	fmt.Fprintf(&sb, "  Breaker:   %s\n", breaker)
	return sb.String()
}
