package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/corey/whiskeybar/internal/app"
)

// diagnoseDBLock returns actionable guidance when the bbolt open timed out on
// the file lock. It distinguishes a live server, a stale runtime file and an
// unknown lock holder.
func diagnoseDBLock(dbPath string) string {
	paths, err := app.NewPaths(dbPath)
	if err != nil {
		return fmt.Sprintf("database %s is locked by another process", dbPath)
	}

	addr := paths.ReadAddr()
	if addr != "" && serverAlive(addr) {
		return fmt.Sprintf("database is locked by the running server at http://%s\n"+
			"  → query it over HTTP instead:  curl http://%s/api/whiskeys/ranking\n"+
			"  → or stop it first, then retry your command", addr, addr)
	}

	if _, err := os.Stat(paths.PIDFile); err == nil {
		return fmt.Sprintf("database is locked and a server pid file exists but the server is not responding\n"+
			"  → a previous server may have crashed or hung\n"+
			"  → find the process:  cat %s\n"+
			"  → kill it:           kill <PID>\n"+
			"  → clean up:          rm %s %s", paths.PIDFile, paths.PIDFile, paths.AddrFile)
	}

	return "database is locked by another process\n" +
		"  → find the process:  ps aux | grep whiskeybar\n" +
		"  → kill it:           kill <PID>\n" +
		"  → then retry your command"
}

func serverAlive(addr string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
