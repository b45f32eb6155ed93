// Command optree runs the optimizer against a debug folder containing a
// persisted dataset (dataset.bin) and a configuration (config.json), and
// prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hupe1980/optree"
	"github.com/hupe1980/optree/config"
	"github.com/hupe1980/optree/dataset"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var guess bool

	cmd := &cobra.Command{
		Use:          "optree <folder>",
		Short:        "Compute provably optimal sparse decision trees",
		Long:         "Runs the optimizer against a debug folder containing dataset.bin and config.json.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], guess)
		},
	}
	cmd.Flags().BoolVar(&guess, "guess", false, "seed the root upper bound with a greedy estimate")
	return cmd
}

func run(ctx context.Context, folder string, guess bool) error {
	configPath := filepath.Join(folder, "config.json")
	datasetPath := filepath.Join(folder, "dataset.bin")
	for _, path := range []string{configPath, datasetPath} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("missing input %s: %w", path, err)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ds, err := dataset.LoadFile(datasetPath)
	if err != nil {
		return err
	}

	if guess && cfg.UpperboundGuess == 0 {
		cfg.UpperboundGuess = optree.GreedyGuess(ds, cfg.Regularization)
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelInfo
	}
	logger := optree.NewTextLogger(level)

	res, err := optree.FitConfig(ctx, ds, cfg, logger)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
