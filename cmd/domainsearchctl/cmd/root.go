package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	apiKey  string
	jobID   string
)

var rootCmd = &cobra.Command{
	Use:   "domainsearchctl",
	Short: "Talk to a running domainsearchd over its RPC surface",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8080", "domainsearchd base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("DOMAINSEARCH_API_KEY"), "API key (default: $DOMAINSEARCH_API_KEY)")
}
