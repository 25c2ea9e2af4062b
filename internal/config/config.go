// Package config holds the settings of a single design search and loads them
// from YAML files.
package config

import (
	"fmt"
	"os"

	"github.com/cwbudde/ribosearch/internal/score"
	"github.com/cwbudde/ribosearch/internal/search"
	"gopkg.in/yaml.v3"
)

// Decision kinds.
const (
	DecisionGreedy     = "greedy"
	DecisionMetropolis = "metropolis"
)

// SearchConfig describes one local search: the sequence space, the acceptance
// rule, the stopping bound and the objective.
type SearchConfig struct {
	// Alphabet lists the symbols a position may take (e.g. "AUGC").
	Alphabet string `json:"alphabet" yaml:"alphabet"`

	// Length is the sequence length of a random start. Ignored when Initial
	// is set.
	Length int `json:"length,omitempty" yaml:"length,omitempty"`

	// Initial is the starting sequence. A random one is drawn when empty.
	Initial string `json:"initial,omitempty" yaml:"initial,omitempty"`

	// Seed drives every random draw of the search.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Decision is either "greedy" or "metropolis".
	Decision string `json:"decision" yaml:"decision"`

	// ScaleFactor is the Metropolis-Hastings temperature.
	ScaleFactor float64 `json:"scaleFactor,omitempty" yaml:"scaleFactor,omitempty"`

	// MaxSuccessiveFails stops the search after this many rejections in a row (plus one).
	MaxSuccessiveFails int `json:"maxSuccessiveFails" yaml:"maxSuccessiveFails"`

	Objective score.Spec `json:"objective" yaml:"objective"`
}

// Default returns a greedy RNA search maximising GC count.
func Default() SearchConfig {
	return SearchConfig{
		Alphabet:           search.RNA.String(),
		Length:             30,
		Seed:               42,
		Decision:           DecisionGreedy,
		ScaleFactor:        1,
		MaxSuccessiveFails: search.DefaultMaxSuccessiveFails,
		Objective:          score.Spec{Name: score.NameGCCount},
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (SearchConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for values a search cannot start with.
func (c *SearchConfig) Validate() error {
	if len(search.NewAlphabet(c.Alphabet)) < 2 {
		return &ValidationError{Field: "Alphabet", Reason: "needs at least two distinct symbols"}
	}
	if c.Initial == "" && c.Length <= 0 {
		return &ValidationError{Field: "Length", Reason: "must be positive when no initial sequence is given"}
	}
	switch c.Decision {
	case DecisionGreedy:
	case DecisionMetropolis:
		if !(c.ScaleFactor > 0) {
			return &ValidationError{Field: "ScaleFactor", Reason: "must be positive"}
		}
	default:
		return &ValidationError{Field: "Decision", Reason: fmt.Sprintf("unknown decision %q", c.Decision)}
	}
	if c.MaxSuccessiveFails < 0 {
		return &ValidationError{Field: "MaxSuccessiveFails", Reason: "cannot be negative"}
	}
	if c.Objective.Name == "" {
		return &ValidationError{Field: "Objective.Name", Reason: "cannot be empty"}
	}
	return nil
}

// ValidationError represents an invalid config value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
