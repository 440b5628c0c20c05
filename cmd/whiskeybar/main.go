// whiskeybar searches and ranks a Japanese/English whiskey catalog.
// Single binary: load seed files, query from the shell, or serve the JSON API.
package main

import (
	"os"

	"github.com/corey/whiskeybar/cmd/whiskeybar/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
