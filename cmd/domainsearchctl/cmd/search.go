package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groveplace/domainsearch/internal/job"
)

var (
	searchClientID       string
	searchBusinessName   string
	searchTLDs           []string
	searchVibe           string
	searchDomainIdea     string
	searchKeywords       string
	searchClientEmail    string
	searchDriverProvider string
	searchSwarmProvider  string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Start a new domain search job via POST /api/search",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{
			"client_id": searchClientID,
			"quiz_responses": job.QuizResponses{
				BusinessName:   searchBusinessName,
				TLDPreferences: searchTLDs,
				Vibe:           searchVibe,
				DomainIdea:     searchDomainIdea,
				Keywords:       searchKeywords,
				ClientEmail:    searchClientEmail,
			},
			"driver_provider": searchDriverProvider,
			"swarm_provider":  searchSwarmProvider,
		}

		var created job.Job
		if err := newClient().do("POST", "/api/search", req, &created); err != nil {
			return err
		}
		fmt.Printf("job started: %s (status=%s)\n", created.ID, created.Status)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchClientID, "client-id", "", "client identifier")
	searchCmd.Flags().StringVar(&searchBusinessName, "business-name", "", "business name (required)")
	searchCmd.Flags().StringSliceVar(&searchTLDs, "tld", nil, "preferred TLD, repeatable (e.g. --tld com --tld io)")
	searchCmd.Flags().StringVar(&searchVibe, "vibe", "", "stylistic vibe (required)")
	searchCmd.Flags().StringVar(&searchDomainIdea, "domain-idea", "", "optional seed domain idea")
	searchCmd.Flags().StringVar(&searchKeywords, "keywords", "", "optional keywords")
	searchCmd.Flags().StringVar(&searchClientEmail, "client-email", "", "optional client email for notifications")
	searchCmd.Flags().StringVar(&searchDriverProvider, "driver-provider", "", "override the generator provider")
	searchCmd.Flags().StringVar(&searchSwarmProvider, "swarm-provider", "", "override the evaluator provider")
	searchCmd.MarkFlagRequired("business-name") //nolint:errcheck
	searchCmd.MarkFlagRequired("vibe")          //nolint:errcheck
	rootCmd.AddCommand(searchCmd)
}
