package search

import (
	"math/rand/v2"
	"strings"
)

// Symbol is a single letter of an Alphabet.
type Symbol = byte

// Alphabet is the finite set of symbols a sequence position may take.
type Alphabet []Symbol

// NewAlphabet builds an alphabet from the distinct bytes of s, keeping their
// first-seen order.
func NewAlphabet(s string) Alphabet {
	seen := make(map[byte]bool, len(s))
	a := make(Alphabet, 0, len(s))
	for i := 0; i < len(s); i++ {
		if seen[s[i]] {
			continue
		}
		seen[s[i]] = true
		a = append(a, s[i])
	}
	return a
}

// RNA is the four-letter ribonucleotide alphabet.
var RNA = NewAlphabet("AUGC")

// DNA is the four-letter deoxyribonucleotide alphabet.
var DNA = NewAlphabet("ACGT")

// Len returns the number of symbols.
func (a Alphabet) Len() int {
	return len(a)
}

// Contains reports whether s belongs to the alphabet.
func (a Alphabet) Contains(s Symbol) bool {
	for _, x := range a {
		if x == s {
			return true
		}
	}
	return false
}

// Distinct returns the number of distinct symbols in a.
func (a Alphabet) Distinct() int {
	return len(NewAlphabet(string(a)))
}

func (a Alphabet) String() string {
	return string(a)
}

// Sequence is a fixed-length ordered list of symbols.
type Sequence []Symbol

// ParseSequence converts s to a Sequence.
func ParseSequence(s string) Sequence {
	return Sequence(strings.Clone(s))
}

// Clone returns an independent copy of the sequence.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Equal reports whether s and o hold the same symbols.
func (s Sequence) Equal(o Sequence) bool {
	return string(s) == string(o)
}

func (s Sequence) String() string {
	return string(s)
}

// NewRand returns a seeded random source. Sampler, mutator and stochastic
// decisions of one search should share the same instance so a run is
// reproducible from its seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

// Sample draws a sequence of the given length where every position is chosen
// independently and uniformly from alphabet.
func Sample(rng *rand.Rand, alphabet Alphabet, length int) (Sequence, error) {
	if length <= 0 {
		return nil, &InvalidParameterError{Param: "length", Reason: "must be positive"}
	}
	if len(alphabet) < 1 {
		return nil, &InvalidParameterError{Param: "alphabet", Reason: "cannot be empty"}
	}
	if rng == nil {
		return nil, &ConfigurationError{Field: "rng", Reason: "cannot be nil"}
	}

	seq := make(Sequence, length)
	for i := range seq {
		seq[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return seq, nil
}
