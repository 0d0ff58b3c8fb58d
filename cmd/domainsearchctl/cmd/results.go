package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/groveplace/domainsearch/internal/controller"
)

var resultsJobID string

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Render a job's ranked domains via GET /results",
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap controller.ResultsSnapshot
		if err := newClient().do("GET", "/results?job_id="+resultsJobID, nil, &snap); err != nil {
			return err
		}
		fmt.Println(formatResultsTerminal(&snap))
		return nil
	},
}

func init() {
	resultsCmd.Flags().StringVar(&resultsJobID, "job-id", "", "job identifier (required)")
	resultsCmd.MarkFlagRequired("job-id") //nolint:errcheck
	rootCmd.AddCommand(resultsCmd)
}

const boxWidth = 62

// formatResultsTerminal renders ranked domains with box-drawing characters,
// grouped by pricing category, the way grove_domain_tool's
// format_results_terminal does for its own terminal consumers (§19
// "Terminal box-drawing results formatter").
func formatResultsTerminal(snap *controller.ResultsSnapshot) string {
	if len(snap.Domains) == 0 {
		return strings.Join([]string{
			boxTop(),
			boxLine(""),
			boxLine("NO DOMAINS FOUND"),
			boxLine("Try a different vibe or widen your TLD preferences."),
			boxLine(""),
			boxBottom(),
		}, "\n")
	}

	byCategory := map[string][]controller.RankedDomain{}
	for _, d := range snap.Domains {
		byCategory[d.Category] = append(byCategory[d.Category], d)
	}

	var lines []string
	lines = append(lines, boxTop(), boxLine(""), boxLine("DOMAIN OPTIONS"), boxLine(strings.Repeat("=", boxWidth-4)), boxLine(""))

	appendGroup := func(title string, limit int) {
		rows := byCategory[title]
		if len(rows) == 0 {
			return
		}
		lines = append(lines, boxLine(strings.ToUpper(title)), boxLine(""))
		for i, d := range rows {
			if i >= limit {
				break
			}
			lines = append(lines, boxLine(formatRow(d)))
		}
		lines = append(lines, boxLine(""))
	}

	appendGroup("bundled", 5)
	appendGroup("recommended", 5)
	appendGroup("premium", 3)
	appendGroup("unknown", 10)

	lines = append(lines,
		boxLine(strings.Repeat("-", boxWidth-4)),
		boxLine(fmt.Sprintf("Found %d available domains", len(snap.Domains))),
		boxLine(""),
		boxBottom(),
	)
	return strings.Join(lines, "\n")
}

func formatRow(d controller.RankedDomain) string {
	price := "N/A"
	if d.PriceCents != nil {
		price = fmt.Sprintf("$%d/yr", (*d.PriceCents+50)/100)
	}
	return fmt.Sprintf("  %-32s %10s", d.Domain, price)
}

func boxTop() string    { return "┌" + strings.Repeat("─", boxWidth-2) + "┐" }
func boxBottom() string { return "└" + strings.Repeat("─", boxWidth-2) + "┘" }

func boxLine(content string) string {
	pad := boxWidth - 4 - len([]rune(content))
	if pad < 0 {
		content = string([]rune(content)[:boxWidth-4])
		pad = 0
	}
	return "│ " + content + strings.Repeat(" ", pad) + " │"
}
