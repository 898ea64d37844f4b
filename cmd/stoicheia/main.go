package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	dbPath string
	useMem bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "stoicheia",
		Short:   "A versioned, sharded store for dense multi-dimensional arrays",
		Long:    `stoicheia manages quilts: named, versioned collections of labeled patches tiled over a shared set of axes.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "stoicheia.db", "path to the catalog's SQLite file")
	rootCmd.PersistentFlags().BoolVar(&useMem, "memory", false, "use a disposable in-memory catalog instead of --db")

	rootCmd.AddCommand(
		newCreateCommand(),
		newListCommand(),
		newCommitCommand(),
		newFetchCommand(),
		newTagCommand(),
		newUntagCommand(),
		newServeCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
