package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwbudde/ribosearch/internal/design"
	"github.com/cwbudde/ribosearch/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeDataDir  string
	resumeSeed     uint64
	resumeMaxFails int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [result-id]",
	Short: "Continue a search from a saved result",
	Long: `Starts a new search from the final sequence of a saved result, reusing its
configuration. The continued search is saved as a new result.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for result storage")
	resumeCmd.Flags().Uint64Var(&resumeSeed, "seed", 0, "Random seed (default: saved seed + 1)")
	resumeCmd.Flags().IntVar(&resumeMaxFails, "max-fails", 0, "Override the saved failure bound")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	resultStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}

	prev, err := resultStore.LoadResult(args[0])
	if err != nil {
		return err
	}

	cfg := prev.Config
	cfg.Initial = prev.FinalSequence
	// Without --seed the continuation uses the next seed.
	cfg.Seed = prev.Config.Seed + 1
	if cmd.Flags().Changed("seed") {
		cfg.Seed = resumeSeed
	}
	if cmd.Flags().Changed("max-fails") {
		cfg.MaxSuccessiveFails = resumeMaxFails
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := design.Run(ctx, cfg, nil)
	if errors.Is(err, context.Canceled) && res != nil {
		printResult(cmd.OutOrStdout(), res)
		return fmt.Errorf("search interrupted after %d steps", res.Steps)
	}
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), res)

	id, err := storeResult(resumeDataDir, cfg, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved result %s (resumed from %s)\n", id, prev.ID)
	return nil
}
