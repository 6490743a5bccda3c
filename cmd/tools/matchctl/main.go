// Command matchctl runs the matching pipeline from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cv-match/internal/app"
	"cv-match/internal/config"
	"cv-match/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "matchctl",
	Short: "Resume matching pipeline tools",
	Long:  "matchctl parses resumes, ranks them against a job description and queries matches for stored jobs.",
}

var (
	verbose   bool
	cliConfig *config.Config
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress to stderr")
}

func main() {
	cliConfig = config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup validates the configuration and builds the pipeline.
func setup(ctx context.Context) (*app.App, *zap.Logger, error) {
	if err := cliConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	log := zap.NewNop()
	if verbose {
		l, err := logger.New(false, cliConfig.LogDebug)
		if err != nil {
			return nil, nil, err
		}
		log = l
	}

	a, err := app.Build(ctx, cliConfig, log)
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
