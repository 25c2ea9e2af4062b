package search

import (
	"fmt"
	"math/rand/v2"
)

// mutation is the undo record of the most recent substitution.
type mutation struct {
	pos int
	old Symbol
}

// Mutator owns one sequence buffer and changes it one position at a time.
// The latest substitution can be undone exactly once.
//
// A Mutator is not safe for concurrent use and must be owned by a single
// optimizer.
type Mutator struct {
	rng      *rand.Rand
	alphabet Alphabet
	buf      Sequence
	pending  *mutation
}

// NewMutator creates a mutator starting from a copy of initial.
func NewMutator(rng *rand.Rand, alphabet Alphabet, initial Sequence) (*Mutator, error) {
	alphabet, err := checkAlphabet(rng, alphabet)
	if err != nil {
		return nil, err
	}
	if len(initial) == 0 {
		return nil, &InvalidParameterError{Param: "initial", Reason: "cannot be empty"}
	}
	for i, s := range initial {
		if !alphabet.Contains(s) {
			return nil, &InvalidParameterError{
				Param:  "initial",
				Reason: fmt.Sprintf("symbol %q at position %d is not in alphabet %s", s, i, alphabet),
			}
		}
	}

	return &Mutator{
		rng:      rng,
		alphabet: alphabet,
		buf:      initial.Clone(),
	}, nil
}

// NewRandomMutator creates a mutator starting from a uniformly random sequence
// of the given length.
func NewRandomMutator(rng *rand.Rand, alphabet Alphabet, length int) (*Mutator, error) {
	alphabet, err := checkAlphabet(rng, alphabet)
	if err != nil {
		return nil, err
	}
	initial, err := Sample(rng, alphabet, length)
	if err != nil {
		return nil, err
	}

	return &Mutator{
		rng:      rng,
		alphabet: alphabet,
		buf:      initial,
	}, nil
}

// checkAlphabet rejects alphabets on which Next could never terminate.
func checkAlphabet(rng *rand.Rand, alphabet Alphabet) (Alphabet, error) {
	if rng == nil {
		return nil, &ConfigurationError{Field: "rng", Reason: "cannot be nil"}
	}
	if len(alphabet) == 0 {
		return nil, &InvalidParameterError{Param: "alphabet", Reason: "cannot be empty"}
	}
	distinct := NewAlphabet(alphabet.String())
	if distinct.Len() < 2 {
		return nil, &ConfigurationError{Field: "alphabet", Reason: "needs at least two distinct symbols"}
	}
	return distinct, nil
}

// Next substitutes one uniformly chosen position with a different symbol and
// returns a copy of the mutated sequence. A mutation that was still pending
// becomes permanent.
func (m *Mutator) Next() Sequence {
	pos := m.rng.IntN(len(m.buf))
	old := m.buf[pos]

	sym := old
	for sym == old {
		sym = m.alphabet[m.rng.IntN(len(m.alphabet))]
	}

	m.pending = &mutation{pos: pos, old: old}
	m.buf[pos] = sym
	return m.buf.Clone()
}

// Revert undoes the pending mutation. It returns false, leaving the sequence
// untouched, when there is nothing to undo.
func (m *Mutator) Revert() bool {
	if m.pending == nil {
		return false
	}
	m.buf[m.pending.pos] = m.pending.old
	m.pending = nil
	return true
}

// Current returns a copy of the sequence as it stands.
func (m *Mutator) Current() Sequence {
	return m.buf.Clone()
}

// Pending reports whether a revertible mutation exists.
func (m *Mutator) Pending() bool {
	return m.pending != nil
}

// Alphabet returns the deduplicated alphabet the mutator draws from.
func (m *Mutator) Alphabet() Alphabet {
	return m.alphabet
}

// Len returns the fixed sequence length.
func (m *Mutator) Len() int {
	return len(m.buf)
}
