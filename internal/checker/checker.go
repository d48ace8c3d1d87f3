// Package checker drives the external probabilistic model checker as a
// subprocess, exporting its adversary and model tables and classifying its
// outcome from stdout.
package checker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Outcome classifies a single model-checker invocation.
type Outcome int

const (
	// Computed means at least one property value was parsed and the
	// adversary file was produced.
	Computed Outcome = iota
	// NoProbability means no Result: line matched stdout and the process
	// exited cleanly.
	NoProbability
	// NoAdversary means a probability was computed but no adversary file
	// was produced — typically a degenerate property.
	NoAdversary
	// Failure means an exception or Error: line was observed on stdout,
	// the binary could not be launched, or it exited nonzero without any
	// Result: line.
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Computed:
		return "computed"
	case NoProbability:
		return "no_probability"
	case NoAdversary:
		return "no_adversary"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Paths names the file artifacts one invocation produces or consumes.
type Paths struct {
	Model  string // the property-bearing PRISM model to check
	Props  string // the .props file holding the property list
	Adv    string // -exportadvmdp target
	Sta    string // -exportstates target
	Tra    string // -exporttrans target
	Lab    string // -exportlabels target
}

// Result is what one Run call returns.
type Result struct {
	Outcome    Outcome
	Properties []float64 // prop1..propN, in the order Result: lines appeared
	Stdout     string
	Stderr     string
}

var resultLineRe = regexp.MustCompile(`^Result:\s+(\d+(?:\.\d+)?)\s*$`)

// execCommandContext is overridden in tests to avoid spawning the real
// binary.
var execCommandContext = exec.CommandContext

// Checker runs the external model checker binary.
type Checker struct {
	binaryPath string
	workingDir string
	log        *zap.Logger
}

// New returns a Checker that invokes binaryPath from workingDir.
func New(binaryPath, workingDir string, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{binaryPath: binaryPath, workingDir: workingDir, log: log}
}

// Run invokes the model checker with export flags, scans its stdout for
// Result: lines, and classifies the outcome. advFileExists reports whether
// the adversary export file was actually produced (since a model checker
// that fails partway through can print partial results but skip exports).
func (c *Checker) Run(ctx context.Context, p Paths, advFileExists func(string) bool) (*Result, error) {
	args := []string{
		"-exportadvmdp", p.Adv,
		"-exportstates", p.Sta,
		"-exporttrans", p.Tra,
		"-exportlabels", p.Lab,
		p.Model, p.Props,
	}
	cmd := execCommandContext(ctx, c.binaryPath, args...)
	cmd.Dir = c.workingDir

	// A binary that can't even be launched (missing from PATH, no exec
	// permission) is an external-tool failure, not an infrastructure
	// error: the oracle's no-raise policy needs this to degrade like any
	// other Failure outcome rather than abort the round.
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		c.log.Debug("model checker stdout pipe setup failed", zap.Error(err))
		return &Result{Outcome: Failure, Stderr: err.Error()}, nil
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		c.log.Debug("model checker stderr pipe setup failed", zap.Error(err))
		return &Result{Outcome: Failure, Stderr: err.Error()}, nil
	}

	if err := cmd.Start(); err != nil {
		c.log.Debug("model checker failed to start", zap.Error(err))
		return &Result{Outcome: Failure, Stderr: err.Error()}, nil
	}

	var stdoutBuf, stderrBuf strings.Builder
	var properties []float64
	exception := false

	scanner := bufio.NewScanner(stdoutPipe)
	for scanner.Scan() {
		line := scanner.Text()
		stdoutBuf.WriteString(line)
		stdoutBuf.WriteByte('\n')

		if m := resultLineRe.FindStringSubmatch(line); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				properties = append(properties, v)
			}
		}
		if strings.HasPrefix(line, "Exception in thread") || strings.Contains(line, "Error:") {
			exception = true
		}
	}

	if errBytes, err := io.ReadAll(stderrPipe); err == nil {
		stderrBuf.Write(errBytes)
	}

	// A nonzero exit with no diagnosable stdout is itself an external
	// tool failure; cmd.Wait()'s error is otherwise not load-bearing,
	// since PRISM can exit nonzero after printing a usable Result: line.
	waitErr := cmd.Wait()

	res := &Result{Properties: properties, Stdout: stdoutBuf.String(), Stderr: stderrBuf.String()}

	switch {
	case exception:
		res.Outcome = Failure
	case len(properties) == 0:
		if waitErr != nil {
			res.Outcome = Failure
		} else {
			res.Outcome = NoProbability
		}
	case !advFileExists(p.Adv):
		res.Outcome = NoAdversary
	default:
		res.Outcome = Computed
	}

	c.log.Debug("model checker invocation finished",
		zap.String("outcome", res.Outcome.String()),
		zap.Int("properties", len(properties)))

	return res, nil
}
