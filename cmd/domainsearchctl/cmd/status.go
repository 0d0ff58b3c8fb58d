package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groveplace/domainsearch/internal/controller"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the progress snapshot for a job via GET /status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap controller.StatusSnapshot
		if err := newClient().do("GET", "/status?job_id="+jobID, nil, &snap); err != nil {
			return err
		}
		fmt.Printf("job:        %s\n", snap.JobID)
		fmt.Printf("status:     %s\n", snap.Status)
		fmt.Printf("batch:      %d\n", snap.BatchNum)
		fmt.Printf("checked:    %d\n", snap.DomainsChecked)
		fmt.Printf("available:  %d\n", snap.AvailableCount)
		fmt.Printf("good:       %d\n", snap.GoodResultCount)
		fmt.Printf("tokens in:  %d\n", snap.TotalInputTokens)
		fmt.Printf("tokens out: %d\n", snap.TotalOutputTokens)
		fmt.Printf("est. cost:  $%.4f\n", snap.EstimatedCostUSD)
		if snap.Error != "" {
			fmt.Printf("error:      %s\n", snap.Error)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&jobID, "job-id", "", "job identifier (required)")
	statusCmd.MarkFlagRequired("job-id") //nolint:errcheck
	rootCmd.AddCommand(statusCmd)
}
