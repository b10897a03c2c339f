package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/lore-crawler/internal/build"
)

var (
	cfgFile string
	dbPath  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lore-crawler",
	Short: "A knowledge-acquisition crawler with a content-addressed store.",
	Long: `lore-crawler crawls websites from seed URLs, extracts discrete
learning bits (definitions, examples, concepts, code snippets, tutorial
steps), categorizes and scores them, and persists everything in a local
content-addressed store for retrieval, search, and cross-referencing.

A multi-engine web-search command fans queries out to configured
providers; a background scheduler runs crawl jobs with priorities,
timeouts, and retries.`,
	Version: build.FullVersion(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "store path (overrides config)")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(bitsCmd)
	rootCmd.AddCommand(searchBitsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(jobsCmd)
}
