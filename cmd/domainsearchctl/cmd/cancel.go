package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelJobID string

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a running job via POST /cancel",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp map[string]string
		if err := newClient().do("POST", "/cancel?job_id="+cancelJobID, nil, &resp); err != nil {
			return err
		}
		fmt.Printf("job %s: %s\n", cancelJobID, resp["status"])
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelJobID, "job-id", "", "job identifier (required)")
	cancelCmd.MarkFlagRequired("job-id") //nolint:errcheck
	rootCmd.AddCommand(cancelCmd)
}
