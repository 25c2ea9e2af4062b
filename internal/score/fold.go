package score

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/ribosearch/internal/search"
)

// DefaultFoldCommand is the folding engine invoked when none is configured.
const DefaultFoldCommand = "RNAfold"

// DefaultFoldTimeout bounds a single fold when no timeout is configured.
const DefaultFoldTimeout = 30 * time.Second

// foldWaitDelay is how long a killed engine may keep its output pipes open
// (e.g. through child processes) before they are closed forcibly.
const foldWaitDelay = 200 * time.Millisecond

// foldLine matches "<dot-bracket> (<energy>)" as printed by RNAfold.
var foldLine = regexp.MustCompile(`^([.()\[\]{}<>]+)\s+\(\s*([-+]?\d+(?:\.\d+)?)\s*\)\s*$`)

// FoldResult is the minimum free energy structure of a sequence.
type FoldResult struct {
	Structure string
	Energy    float64
}

// Folder scores sequences with an external folding engine. The sequence is
// written to the engine's stdin and the last structure line of its output is
// parsed.
type Folder struct {
	Command string
	Args    []string
	Timeout time.Duration

	// Target, when set, switches the score from free energy to the base-pair
	// distance between the predicted structure and Target.
	Target string
}

// NewFolder creates a folder for the given command, falling back to RNAfold
// with --noPS. A zero timeout means DefaultFoldTimeout.
func NewFolder(command string, args []string, target string, timeout time.Duration) (*Folder, error) {
	if timeout <= 0 {
		timeout = DefaultFoldTimeout
	}
	if command == "" {
		command = DefaultFoldCommand
		if args == nil {
			args = []string{"--noPS"}
		}
	}
	if target != "" {
		if _, err := pairTable(target); err != nil {
			return nil, fmt.Errorf("invalid target structure: %w", err)
		}
	}
	return &Folder{
		Command: command,
		Args:    args,
		Timeout: timeout,
		Target:  target,
	}, nil
}

// Fold runs the engine on seq. The engine is killed when ctx is done, in
// which case the returned error wraps ctx.Err(). Running past the folder's
// timeout is reported as a plain failure.
func (f *Folder) Fold(ctx context.Context, seq search.Sequence) (*FoldResult, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFoldTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, f.Command, f.Args...)
	cmd.Stdin = strings.NewReader(seq.String() + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = foldWaitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fold interrupted: %w", ctxErr)
		}
		if runCtx.Err() != nil {
			return nil, fmt.Errorf("%s timed out after %v", f.Command, timeout)
		}
		slog.Debug("Fold command failed", "command", f.Command, "stderr", stderr.String())
		return nil, fmt.Errorf("failed to execute %s: %w", f.Command, err)
	}

	res, err := ParseFoldOutput(stdout.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s output: %w", f.Command, err)
	}
	if len(res.Structure) != len(seq) {
		return nil, fmt.Errorf("structure length %d does not match sequence length %d", len(res.Structure), len(seq))
	}
	return res, nil
}

// Score folds seq and returns its free energy, or its base-pair distance to
// the target structure when one is configured.
func (f *Folder) Score(seq search.Sequence) (float64, error) {
	return f.score(context.Background(), seq)
}

// ScoreContext returns Score bound to ctx, so every fold it starts is killed
// once ctx is done.
func (f *Folder) ScoreContext(ctx context.Context) search.ScoreFunc {
	return func(seq search.Sequence) (float64, error) {
		return f.score(ctx, seq)
	}
}

func (f *Folder) score(ctx context.Context, seq search.Sequence) (float64, error) {
	res, err := f.Fold(ctx, seq)
	if err != nil {
		return 0, err
	}
	if f.Target == "" {
		return res.Energy, nil
	}
	d, err := BasePairDistance(res.Structure, f.Target)
	if err != nil {
		return 0, err
	}
	return float64(d), nil
}

// ParseFoldOutput extracts the structure and energy from the last matching
// line of folding engine output.
func ParseFoldOutput(out string) (*FoldResult, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		m := foldLine.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}
		energy, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil, fmt.Errorf("bad energy %q: %w", m[2], err)
		}
		return &FoldResult{Structure: m[1], Energy: energy}, nil
	}
	return nil, fmt.Errorf("no structure line found")
}

// BasePairDistance counts the base pairs present in exactly one of the two
// dot-bracket structures.
func BasePairDistance(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("structure lengths differ: %d and %d", len(a), len(b))
	}
	pa, err := pairTable(a)
	if err != nil {
		return 0, err
	}
	pb, err := pairTable(b)
	if err != nil {
		return 0, err
	}

	d := 0
	for i := range pa {
		if pa[i] > i && pa[i] != pb[i] {
			d++
		}
		if pb[i] > i && pb[i] != pa[i] {
			d++
		}
	}
	return d, nil
}

// pairTable maps every position to its partner, or -1 when unpaired.
func pairTable(s string) ([]int, error) {
	table := make([]int, len(s))
	var stack []int
	for i := 0; i < len(s); i++ {
		table[i] = -1
		switch s[i] {
		case '(':
			stack = append(stack, i)
		case ')':
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced ')' at %d", i)
			}
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			table[i], table[j] = j, i
		case '.':
		default:
			return nil, fmt.Errorf("unsupported character %q at %d", s[i], i)
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unbalanced '(' at %d", stack[len(stack)-1])
	}
	return table, nil
}
