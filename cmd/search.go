package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the catalog",
	Long: `Search the media catalog with a free-text query.
An empty query (or "*") returns the most recent additions.`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Float64("threshold", 0, "Minimum similarity score (0 keeps the adaptive default)")
	searchCmd.Flags().Int("limit", 25, "Maximum number of results to print")
	searchCmd.Flags().Bool("json", false, "Output results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	threshold := mustGetFloat64(cmd, "threshold")
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}

	ctx := context.Background()
	comp, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer comp.close()

	results := comp.ranker.Search(ctx, query, threshold)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results")
		return nil
	}

	for i, res := range results {
		when := time.Unix(res.Timestamp, 0).Format("2006-01-02")
		fmt.Printf("%3d. %-5s %.3f  %s  (%s)", i+1, res.Kind, res.Score, res.Path, when)
		if len(res.Tags) > 0 {
			fmt.Printf("  [%s]", strings.Join(res.Tags, ", "))
		}
		fmt.Println()
	}
	fmt.Printf("\n%d result(s)\n", len(results))
	return nil
}
