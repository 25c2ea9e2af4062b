package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/ribosearch/internal/search"
)

// GCCount scores a sequence as the negated number of G and C symbols, so that
// minimisation drives GC content up.
func GCCount(seq search.Sequence) (float64, error) {
	return -float64(countGC(seq)), nil
}

// GCContent returns an objective measuring how far the GC fraction of a
// sequence is from target, which must lie in [0, 1].
func GCContent(target float64) (search.ScoreFunc, error) {
	if target < 0 || target > 1 || math.IsNaN(target) {
		return nil, fmt.Errorf("gc-content target must be within [0, 1], got %v", target)
	}
	return func(seq search.Sequence) (float64, error) {
		if len(seq) == 0 {
			return 0, fmt.Errorf("cannot compute gc-content of an empty sequence")
		}
		frac := float64(countGC(seq)) / float64(len(seq))
		return math.Abs(frac - target), nil
	}, nil
}

// Hamming returns an objective counting positions that differ from target.
// Sequences of a different length are an error.
func Hamming(target string) (search.ScoreFunc, error) {
	if target == "" {
		return nil, fmt.Errorf("hamming target cannot be empty")
	}
	return func(seq search.Sequence) (float64, error) {
		if len(seq) != len(target) {
			return 0, fmt.Errorf("length mismatch: sequence %d, target %d", len(seq), len(target))
		}
		d := 0
		for i := range seq {
			if seq[i] != target[i] {
				d++
			}
		}
		return float64(d), nil
	}, nil
}

// Motifs returns an objective counting (possibly overlapping) occurrences of
// the forbidden motifs.
func Motifs(motifs []string) (search.ScoreFunc, error) {
	if len(motifs) == 0 {
		return nil, fmt.Errorf("motif objective needs at least one motif")
	}
	for _, m := range motifs {
		if m == "" {
			return nil, fmt.Errorf("motifs cannot be empty strings")
		}
	}
	return func(seq search.Sequence) (float64, error) {
		s := seq.String()
		n := 0
		for _, m := range motifs {
			n += countOverlapping(s, m)
		}
		return float64(n), nil
	}, nil
}

func countGC(seq search.Sequence) int {
	n := 0
	for _, c := range seq {
		switch c {
		case 'G', 'C', 'g', 'c':
			n++
		}
	}
	return n
}

func countOverlapping(s, sub string) int {
	n := 0
	for {
		i := strings.Index(s, sub)
		if i < 0 {
			return n
		}
		n++
		s = s[i+1:]
	}
}
