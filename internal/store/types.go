package store

import (
	"strings"
	"time"

	"github.com/cwbudde/ribosearch/internal/config"
	"github.com/cwbudde/ribosearch/internal/design"
)

// Result is the saved outcome of one search. Only the endpoints are kept;
// intermediate states are never recorded.
type Result struct {
	// ID identifies the search (a job ID for server runs).
	ID string `json:"id"`

	// Config is the configuration the search was started with.
	Config config.SearchConfig `json:"config"`

	InitSequence  string  `json:"initSequence"`
	InitScore     float64 `json:"initScore"`
	FinalSequence string  `json:"finalSequence"`
	FinalScore    float64 `json:"finalScore"`

	Steps           int `json:"steps"`
	SuccessfulSteps int `json:"successfulSteps"`

	// Elapsed is the wall time of the search.
	Elapsed time.Duration `json:"elapsed"`

	// Timestamp records when the result was saved.
	Timestamp time.Time `json:"timestamp"`
}

// ResultInfo is the listing view of a Result.
type ResultInfo struct {
	ID            string    `json:"id"`
	Objective     string    `json:"objective"`
	Decision      string    `json:"decision"`
	Length        int       `json:"length"`
	FinalScore    float64   `json:"finalScore"`
	Improvement   float64   `json:"improvement"`
	Steps         int       `json:"steps"`
	FinalSequence string    `json:"finalSequence"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewResult converts a finished search into a storable result.
func NewResult(id string, cfg config.SearchConfig, res *design.Result) *Result {
	return &Result{
		ID:              id,
		Config:          cfg,
		InitSequence:    res.InitSequence,
		InitScore:       res.InitScore,
		FinalSequence:   res.FinalSequence,
		FinalScore:      res.FinalScore,
		Steps:           res.Steps,
		SuccessfulSteps: res.SuccessfulSteps,
		Elapsed:         res.Elapsed,
		Timestamp:       time.Now(),
	}
}

// ToInfo converts a Result to its listing view.
func (r *Result) ToInfo() ResultInfo {
	return ResultInfo{
		ID:            r.ID,
		Objective:     r.Config.Objective.Name,
		Decision:      r.Config.Decision,
		Length:        len(r.FinalSequence),
		FinalScore:    r.FinalScore,
		Improvement:   r.InitScore - r.FinalScore,
		Steps:         r.Steps,
		FinalSequence: r.FinalSequence,
		Timestamp:     r.Timestamp,
	}
}

// Validate checks that the result is complete and self-consistent.
func (r *Result) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if strings.ContainsAny(r.ID, `/\`) || r.ID == "." || r.ID == ".." {
		return &ValidationError{Field: "ID", Reason: "must be a single path element"}
	}
	if r.InitSequence == "" {
		return &ValidationError{Field: "InitSequence", Reason: "cannot be empty"}
	}
	if len(r.FinalSequence) != len(r.InitSequence) {
		return &ValidationError{Field: "FinalSequence", Reason: "length differs from InitSequence"}
	}
	if r.Steps < 0 {
		return &ValidationError{Field: "Steps", Reason: "cannot be negative"}
	}
	if r.SuccessfulSteps < 0 || r.SuccessfulSteps > r.Steps {
		return &ValidationError{Field: "SuccessfulSteps", Reason: "must be within [0, Steps]"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a result validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
