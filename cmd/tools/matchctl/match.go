package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Print the top candidates for a stored job",
	Long:  "Query the vector store for the best-matching candidates of a processed job. Needs DATABASE_URL.",
	RunE:  runMatch,
}

var (
	matchJobID string
	matchTopN  int
)

func init() {
	matchCmd.Flags().StringVar(&matchJobID, "job", "", "Job ID (required)")
	matchCmd.Flags().IntVarP(&matchTopN, "top", "n", 0, "Number of candidates (defaults to MATCH_TOP_N)")
	_ = matchCmd.MarkFlagRequired("job")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	if cliConfig.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required to query stored jobs")
	}
	if matchTopN < 0 {
		return fmt.Errorf("--top must be positive")
	}

	ctx := cmd.Context()
	a, _, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	topN := matchTopN
	if topN == 0 {
		topN = cliConfig.MatchTopN
	}
	matches, err := a.Engine.FindMatches(ctx, matchJobID, topN)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), matches)
}
