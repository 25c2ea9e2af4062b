package search

import "math"

// Decision decides whether the search moves from a state scored oldScore to a
// candidate scored newScore. Lower scores are better.
type Decision interface {
	Accept(oldScore, newScore float64) bool
}

// DecisionFunc adapts a plain function to the Decision interface.
type DecisionFunc func(oldScore, newScore float64) bool

// Accept calls f(oldScore, newScore).
func (f DecisionFunc) Accept(oldScore, newScore float64) bool {
	return f(oldScore, newScore)
}

// Greedy accepts strict improvements only. Ties are rejected.
type Greedy struct{}

func (Greedy) Accept(oldScore, newScore float64) bool {
	return newScore < oldScore
}

// Uniform is a source of uniform draws in [0, 1). *rand.Rand satisfies it.
type Uniform interface {
	Float64() float64
}

// MetropolisHastings always accepts improvements and accepts a worse (or
// equal) candidate with probability exp((old-new)/scale).
type MetropolisHastings struct {
	scale float64
	src   Uniform
}

// NewMetropolisHastings creates the stochastic decision. Larger scale factors
// tolerate worse moves more often.
func NewMetropolisHastings(scale float64, src Uniform) (*MetropolisHastings, error) {
	if !(scale > 0) || math.IsInf(scale, 1) {
		return nil, &ConfigurationError{Field: "scale", Reason: "must be a positive finite number"}
	}
	if src == nil {
		return nil, &ConfigurationError{Field: "src", Reason: "cannot be nil"}
	}
	return &MetropolisHastings{scale: scale, src: src}, nil
}

// Scale returns the configured scale factor.
func (mh *MetropolisHastings) Scale() float64 {
	return mh.scale
}

func (mh *MetropolisHastings) Accept(oldScore, newScore float64) bool {
	if newScore < oldScore {
		return true
	}
	return math.Exp((oldScore-newScore)/mh.scale) > mh.src.Float64()
}
