package search

import "context"

// DefaultMaxSuccessiveFails bounds Run when no other limit is configured.
const DefaultMaxSuccessiveFails = 100

// Generator proposes candidates one substitution at a time. *Mutator is the
// standard implementation.
type Generator interface {
	// Next applies one mutation and returns the resulting sequence.
	Next() Sequence
	// Revert undoes the latest mutation, reporting whether there was one.
	Revert() bool
	// Current returns the sequence as it stands.
	Current() Sequence
}

// ScoreFunc evaluates a sequence. Lower is better. Errors are handed back to
// the caller of Step or Run untouched.
type ScoreFunc func(Sequence) (float64, error)

// Progress describes the optimizer right after a step.
type Progress struct {
	Step            int
	SuccessfulSteps int
	Accepted        bool
	SuccessiveFails int
	CurrentScore    float64
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithDecision replaces the default Greedy decision.
func WithDecision(d Decision) Option {
	return func(o *Optimizer) {
		o.decision = d
	}
}

// WithInitialState records s as the initial state. It must equal the
// generator's current sequence; NewOptimizer rejects a mismatch.
func WithInitialState(s Sequence) Option {
	return func(o *Optimizer) {
		o.initState = s.Clone()
	}
}

// WithMaxSuccessiveFails sets the bound used by Run.
func WithMaxSuccessiveFails(n int) Option {
	return func(o *Optimizer) {
		o.maxFails = n
	}
}

// WithObserver registers fn to be called after every completed step.
func WithObserver(fn func(Progress)) Option {
	return func(o *Optimizer) {
		o.observer = fn
	}
}

// Optimizer runs a generate, score, decide, commit-or-revert loop that
// minimises a score.
//
// An Optimizer is single-threaded and must be the only user of its generator.
type Optimizer struct {
	gen      Generator
	score    ScoreFunc
	decision Decision
	maxFails int
	observer func(Progress)

	initState    Sequence
	initScore    float64
	currentState Sequence
	currentScore float64

	steps      int
	successful int
	fails      int
}

// NewOptimizer builds an optimizer and scores its initial state. A scoring
// error is returned as is.
func NewOptimizer(gen Generator, score ScoreFunc, opts ...Option) (*Optimizer, error) {
	if gen == nil {
		return nil, &ConfigurationError{Field: "generator", Reason: "cannot be nil"}
	}
	if score == nil {
		return nil, &ConfigurationError{Field: "score", Reason: "cannot be nil"}
	}

	o := &Optimizer{
		gen:      gen,
		score:    score,
		decision: Greedy{},
		maxFails: DefaultMaxSuccessiveFails,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.decision == nil {
		return nil, &ConfigurationError{Field: "decision", Reason: "cannot be nil"}
	}
	if o.maxFails < 0 {
		return nil, &ConfigurationError{Field: "maxSuccessiveFails", Reason: "cannot be negative"}
	}
	if o.initState == nil {
		o.initState = gen.Current()
	} else if !o.initState.Equal(gen.Current()) {
		return nil, &ConfigurationError{Field: "initialState", Reason: "differs from the generator's current sequence"}
	}

	initScore, err := score(o.initState.Clone())
	if err != nil {
		return nil, err
	}
	o.initScore = initScore
	o.currentState = o.initState.Clone()
	o.currentScore = initScore

	return o, nil
}

// Step proposes one candidate and either keeps it or reverts it. It reports
// whether the candidate was accepted. If scoring fails the candidate is
// reverted, the step is not counted and the error is returned unchanged.
func (o *Optimizer) Step() (bool, error) {
	candidate := o.gen.Next()

	candidateScore, err := o.score(candidate)
	if err != nil {
		o.gen.Revert()
		return false, err
	}

	accepted := o.decision.Accept(o.currentScore, candidateScore)
	if accepted {
		o.currentState = candidate
		o.currentScore = candidateScore
		o.successful++
		o.fails = 0
	} else {
		o.gen.Revert()
		o.fails++
	}
	o.steps++

	if o.observer != nil {
		o.observer(Progress{
			Step:            o.steps,
			SuccessfulSteps: o.successful,
			Accepted:        accepted,
			SuccessiveFails: o.fails,
			CurrentScore:    o.currentScore,
		})
	}

	return accepted, nil
}

// Run steps with the configured failure bound. See RunLimit.
func (o *Optimizer) Run() (Sequence, float64, error) {
	return o.RunContext(context.Background(), o.maxFails)
}

// RunLimit steps until more than maxSuccessiveFails consecutive steps have
// been rejected, so it stops after maxSuccessiveFails+1 failures in a row.
// It returns the current state and its score.
func (o *Optimizer) RunLimit(maxSuccessiveFails int) (Sequence, float64, error) {
	return o.RunContext(context.Background(), maxSuccessiveFails)
}

// RunContext is RunLimit that also stops between steps once ctx is done, in
// which case ctx.Err() is returned alongside the state reached so far.
func (o *Optimizer) RunContext(ctx context.Context, maxSuccessiveFails int) (Sequence, float64, error) {
	fails := 0
	for fails <= maxSuccessiveFails {
		if err := ctx.Err(); err != nil {
			return o.CurrentState(), o.currentScore, err
		}
		accepted, err := o.Step()
		if err != nil {
			return o.CurrentState(), o.currentScore, err
		}
		if accepted {
			fails = 0
		} else {
			fails++
		}
	}
	return o.CurrentState(), o.currentScore, nil
}

// InitState returns a copy of the state the search started from.
func (o *Optimizer) InitState() Sequence { return o.initState.Clone() }

// InitScore returns the score of InitState.
func (o *Optimizer) InitScore() float64 { return o.initScore }

// CurrentState returns a copy of the latest accepted state.
func (o *Optimizer) CurrentState() Sequence { return o.currentState.Clone() }

// CurrentScore returns the score of CurrentState.
func (o *Optimizer) CurrentScore() float64 { return o.currentScore }

// StepCount returns the number of completed steps.
func (o *Optimizer) StepCount() int { return o.steps }

// SuccessfulStepCount returns the number of accepted steps.
func (o *Optimizer) SuccessfulStepCount() int { return o.successful }

// MaxSuccessiveFails returns the bound used by Run.
func (o *Optimizer) MaxSuccessiveFails() int { return o.maxFails }
