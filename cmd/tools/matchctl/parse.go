package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Extract and standardize a resume into profile JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open resume: %w", err)
	}
	defer f.Close()

	parsed, err := a.Parser.ParseFile(filepath.Base(args[0]), f)
	if err != nil {
		return err
	}

	p, err := a.Standardizer.Standardize(ctx, parsed.FullText)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), p)
}
