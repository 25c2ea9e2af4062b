// Package design wires a SearchConfig into a runnable local search.
package design

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/ribosearch/internal/config"
	"github.com/cwbudde/ribosearch/internal/score"
	"github.com/cwbudde/ribosearch/internal/search"
)

// Result holds the outcome of a search.
type Result struct {
	InitSequence    string
	InitScore       float64
	FinalSequence   string
	FinalScore      float64
	Steps           int
	SuccessfulSteps int
	Elapsed         time.Duration
}

// Search is a configured, not yet started search.
type Search struct {
	Config    config.SearchConfig
	Optimizer *search.Optimizer
}

// New validates cfg and builds the random source, mutator, decision,
// objective and optimizer it describes. All random draws come from one
// source seeded with cfg.Seed. External folds, including the one scoring the
// initial state, are killed once ctx is done.
func New(ctx context.Context, cfg config.SearchConfig, observer func(search.Progress)) (*Search, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scoreFn, err := score.BuildContext(ctx, cfg.Objective)
	if err != nil {
		return nil, fmt.Errorf("failed to build objective: %w", err)
	}

	rng := search.NewRand(cfg.Seed)
	alphabet := search.NewAlphabet(cfg.Alphabet)

	var mutator *search.Mutator
	if cfg.Initial != "" {
		mutator, err = search.NewMutator(rng, alphabet, search.ParseSequence(cfg.Initial))
	} else {
		mutator, err = search.NewRandomMutator(rng, alphabet, cfg.Length)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create mutator: %w", err)
	}

	var decision search.Decision = search.Greedy{}
	if cfg.Decision == config.DecisionMetropolis {
		decision, err = search.NewMetropolisHastings(cfg.ScaleFactor, rng)
		if err != nil {
			return nil, fmt.Errorf("failed to create decision: %w", err)
		}
	}

	opts := []search.Option{
		search.WithDecision(decision),
		search.WithMaxSuccessiveFails(cfg.MaxSuccessiveFails),
	}
	if observer != nil {
		opts = append(opts, search.WithObserver(observer))
	}

	optimizer, err := search.NewOptimizer(mutator, scoreFn, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create optimizer: %w", err)
	}

	return &Search{Config: cfg, Optimizer: optimizer}, nil
}

// Run executes the search until the failure bound is hit or ctx is done. On
// cancellation the partial result is returned together with ctx.Err().
func (s *Search) Run(ctx context.Context) (*Result, error) {
	slog.Info("Starting search",
		"alphabet", s.Config.Alphabet,
		"length", len(s.Optimizer.InitState()),
		"decision", s.Config.Decision,
		"objective", s.Config.Objective.Name,
		"init_score", s.Optimizer.InitScore(),
	)

	start := time.Now()
	final, finalScore, err := s.Optimizer.RunContext(ctx, s.Optimizer.MaxSuccessiveFails())
	res := &Result{
		InitSequence:    s.Optimizer.InitState().String(),
		InitScore:       s.Optimizer.InitScore(),
		FinalSequence:   final.String(),
		FinalScore:      finalScore,
		Steps:           s.Optimizer.StepCount(),
		SuccessfulSteps: s.Optimizer.SuccessfulStepCount(),
		Elapsed:         time.Since(start),
	}
	if err != nil {
		return res, err
	}

	slog.Info("Search complete",
		"elapsed", res.Elapsed,
		"steps", res.Steps,
		"accepted", res.SuccessfulSteps,
		"init_score", res.InitScore,
		"final_score", res.FinalScore,
	)
	return res, nil
}

// Run builds and executes a search in one call.
func Run(ctx context.Context, cfg config.SearchConfig, observer func(search.Progress)) (*Result, error) {
	s, err := New(ctx, cfg, observer)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}
