// Package score provides the objectives a design search minimises.
package score

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cwbudde/ribosearch/internal/search"
)

// Objective names understood by Build.
const (
	NameGCCount   = "gc-count"
	NameGCContent = "gc-content"
	NameHamming   = "hamming"
	NameMotif     = "motif"
	NameFold      = "fold"
	NameWeighted  = "weighted"
)

// Spec describes an objective. Only the fields relevant to Name are read.
type Spec struct {
	Name string `json:"name" yaml:"name"`

	// gc-content
	Target float64 `json:"target,omitempty" yaml:"target,omitempty"`

	// hamming
	Sequence string `json:"sequence,omitempty" yaml:"sequence,omitempty"`

	// motif
	Motifs []string `json:"motifs,omitempty" yaml:"motifs,omitempty"`

	// fold
	Command   string        `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string      `json:"args,omitempty" yaml:"args,omitempty"`
	Structure string        `json:"structure,omitempty" yaml:"structure,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// weighted
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Terms  []Spec  `json:"terms,omitempty" yaml:"terms,omitempty"`
}

// Names lists the objective names Build accepts.
func Names() []string {
	names := []string{NameGCCount, NameGCContent, NameHamming, NameMotif, NameFold, NameWeighted}
	sort.Strings(names)
	return names
}

// SetsCommand reports whether the spec, or any of its terms, names an
// external program or its arguments.
func (s Spec) SetsCommand() bool {
	if s.Command != "" || len(s.Args) > 0 {
		return true
	}
	for _, t := range s.Terms {
		if t.SetsCommand() {
			return true
		}
	}
	return false
}

// WithFoldEngine returns a copy of the spec whose fold objectives, including
// those nested in weighted terms, run command with args.
func (s Spec) WithFoldEngine(command string, args []string) Spec {
	if s.Name == NameFold {
		s.Command = command
		s.Args = append([]string(nil), args...)
	}
	if len(s.Terms) > 0 {
		terms := make([]Spec, len(s.Terms))
		for i, t := range s.Terms {
			terms[i] = t.WithFoldEngine(command, args)
		}
		s.Terms = terms
	}
	return s
}

// Build turns a spec into a score function. External folds run without a
// deadline beyond their own timeout; see BuildContext.
func Build(spec Spec) (search.ScoreFunc, error) {
	return BuildContext(context.Background(), spec)
}

// BuildContext is Build with every external fold bound to ctx.
func BuildContext(ctx context.Context, spec Spec) (search.ScoreFunc, error) {
	switch spec.Name {
	case NameGCCount:
		return GCCount, nil
	case NameGCContent:
		return GCContent(spec.Target)
	case NameHamming:
		return Hamming(spec.Sequence)
	case NameMotif:
		return Motifs(spec.Motifs)
	case NameFold:
		f, err := NewFolder(spec.Command, spec.Args, spec.Structure, spec.Timeout)
		if err != nil {
			return nil, err
		}
		return f.ScoreContext(ctx), nil
	case NameWeighted:
		return buildWeighted(ctx, spec.Terms)
	case "":
		return nil, fmt.Errorf("objective name cannot be empty")
	default:
		return nil, fmt.Errorf("unknown objective: %s", spec.Name)
	}
}

// buildWeighted sums its terms, each scaled by its Weight (1 when unset).
func buildWeighted(ctx context.Context, terms []Spec) (search.ScoreFunc, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("weighted objective needs at least one term")
	}

	fns := make([]search.ScoreFunc, len(terms))
	weights := make([]float64, len(terms))
	for i, t := range terms {
		fn, err := BuildContext(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("term %d (%s): %w", i, t.Name, err)
		}
		fns[i] = fn
		weights[i] = t.Weight
		if weights[i] == 0 {
			weights[i] = 1
		}
	}

	return func(seq search.Sequence) (float64, error) {
		var total float64
		for i, fn := range fns {
			v, err := fn(seq)
			if err != nil {
				return 0, err
			}
			total += weights[i] * v
		}
		return total, nil
	}, nil
}
