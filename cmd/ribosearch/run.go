package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cwbudde/ribosearch/internal/config"
	"github.com/cwbudde/ribosearch/internal/design"
	"github.com/cwbudde/ribosearch/internal/score"
	"github.com/cwbudde/ribosearch/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configPath string
	alphabet   string
	length     int
	initial    string
	seed       uint64
	decision   string
	scale      float64
	maxFails   int

	objective string
	gcTarget  float64
	targetSeq string
	motifs    []string
	foldCmd   string
	structure string

	saveResult bool
	runDataDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single design search",
	Long: `Runs one local search and prints the initial and final sequences.
Settings come from --config (YAML) when given; flags override file values.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML search configuration")
	runCmd.Flags().StringVar(&alphabet, "alphabet", "AUGC", "Symbols a position may take")
	runCmd.Flags().IntVar(&length, "length", 30, "Length of a random initial sequence")
	runCmd.Flags().StringVar(&initial, "initial", "", "Initial sequence (random when empty)")
	runCmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed")
	runCmd.Flags().StringVar(&decision, "decision", config.DecisionGreedy, "Acceptance rule: greedy, metropolis")
	runCmd.Flags().Float64Var(&scale, "scale", 1, "Metropolis-Hastings scale factor")
	runCmd.Flags().IntVar(&maxFails, "max-fails", 100, "Stop after this many successive rejections")

	runCmd.Flags().StringVar(&objective, "objective", score.NameGCCount,
		"Objective: "+strings.Join(score.Names(), ", "))
	runCmd.Flags().Float64Var(&gcTarget, "gc-target", 0.5, "Target GC fraction (gc-content)")
	runCmd.Flags().StringVar(&targetSeq, "target-seq", "", "Target sequence (hamming)")
	runCmd.Flags().StringSliceVar(&motifs, "motif", nil, "Forbidden motif, repeatable (motif)")
	runCmd.Flags().StringVar(&foldCmd, "fold-cmd", "", "Folding program (fold, default RNAfold)")
	runCmd.Flags().StringVar(&structure, "structure", "", "Target dot-bracket structure (fold)")

	runCmd.Flags().BoolVar(&saveResult, "save", false, "Save the result to the result store")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "./data", "Base directory for result storage")

	rootCmd.AddCommand(runCmd)
}

// loadRunConfig builds the search configuration from --config and the flags
// that were set explicitly.
func loadRunConfig(cmd *cobra.Command) (config.SearchConfig, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("alphabet") {
		cfg.Alphabet = alphabet
	}
	if flags.Changed("length") {
		cfg.Length = length
	}
	if flags.Changed("initial") {
		cfg.Initial = initial
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("decision") {
		cfg.Decision = decision
	}
	if flags.Changed("scale") {
		cfg.ScaleFactor = scale
	}
	if flags.Changed("max-fails") {
		cfg.MaxSuccessiveFails = maxFails
	}

	if flags.Changed("objective") {
		cfg.Objective = score.Spec{Name: objective}
	}
	if flags.Changed("gc-target") {
		cfg.Objective.Target = gcTarget
	}
	if flags.Changed("target-seq") {
		cfg.Objective.Sequence = targetSeq
	}
	if flags.Changed("motif") {
		cfg.Objective.Motifs = motifs
	}
	if flags.Changed("fold-cmd") {
		cfg.Objective.Command = foldCmd
	}
	if flags.Changed("structure") {
		cfg.Objective.Structure = structure
	}

	return cfg, cfg.Validate()
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
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

	if saveResult {
		id, err := storeResult(runDataDir, cfg, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved result %s\n", id)
	}
	return nil
}

// storeResult saves res under a new ID in the store at dataDir.
func storeResult(dataDir string, cfg config.SearchConfig, res *design.Result) (string, error) {
	resultStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return "", fmt.Errorf("failed to create result store: %w", err)
	}

	id := uuid.New().String()
	if err := resultStore.SaveResult(id, store.NewResult(id, cfg, res)); err != nil {
		return "", fmt.Errorf("failed to save result: %w", err)
	}
	slog.Info("Result saved", "id", id, "data_dir", dataDir)
	return id, nil
}

func printResult(w io.Writer, res *design.Result) {
	fmt.Fprintf(w, "Initial: %s (score %.4f)\n", res.InitSequence, res.InitScore)
	fmt.Fprintf(w, "Final:   %s (score %.4f)\n", res.FinalSequence, res.FinalScore)
	fmt.Fprintf(w, "Steps:   %d (%d accepted) in %s\n", res.Steps, res.SuccessfulSteps, res.Elapsed.Round(time.Microsecond))
}
