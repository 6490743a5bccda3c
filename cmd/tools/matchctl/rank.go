package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cv-match/internal/ingest"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rankCmd = &cobra.Command{
	Use:   "rank RESUME...",
	Short: "Ingest a job description and resumes, then print the ranking",
	Long: "Create a job from --job-file, process every resume in parallel and print the top matches. " +
		"Without DATABASE_URL everything stays in memory for the duration of the run.",
	Args: cobra.MinimumNArgs(1),
	RunE: runRank,
}

var (
	rankJobFile  string
	rankJobTitle string
	rankTopN     int
)

func init() {
	rankCmd.Flags().StringVarP(&rankJobFile, "job-file", "j", "", "Path to the job description text (required)")
	rankCmd.Flags().StringVar(&rankJobTitle, "title", "", "Job title (defaults to the file name)")
	rankCmd.Flags().IntVarP(&rankTopN, "top", "n", 0, "Number of candidates (defaults to MATCH_TOP_N)")
	_ = rankCmd.MarkFlagRequired("job-file")

	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	desc, err := os.ReadFile(rankJobFile)
	if err != nil {
		return fmt.Errorf("failed to read job file: %w", err)
	}
	title := rankJobTitle
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(rankJobFile), filepath.Ext(rankJobFile))
	}

	job, err := a.Orchestrator.CreateJob(ctx, title, string(desc))
	if err != nil {
		return err
	}
	if err := a.Orchestrator.ProcessJob(ctx, job.ID); err != nil {
		return fmt.Errorf("job processing failed: %w", err)
	}

	uploads := make([]ingest.Upload, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read resume: %w", err)
		}
		c, err := a.Orchestrator.CreateCandidate(ctx, &job.ID, filepath.Base(path), data)
		if err != nil {
			return err
		}
		uploads = append(uploads, ingest.Upload{CandidateID: c.ID, Data: data})
	}

	for _, out := range a.Orchestrator.ProcessResumes(ctx, uploads) {
		if out.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", out.CandidateID, out.Err)
		}
	}

	topN := rankTopN
	if topN <= 0 {
		topN = cliConfig.MatchTopN
	}
	matches, err := a.Engine.FindMatches(ctx, job.ID, topN)
	if err != nil {
		return err
	}
	log.Info("ranking done", zap.String("job_id", job.ID), zap.Int("matches", len(matches)))
	return printJSON(cmd.OutOrStdout(), matches)
}
