// Package smc drives the strategy bridge against a system under test,
// collects traces, and tests the resulting satisfaction frequency against a
// hypothesized probability.
package smc

import (
	"errors"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/satos-jp/probbbc/internal/bridge"
	"github.com/satos-jp/probbbc/internal/propeval"
	"github.com/satos-jp/probbbc/internal/sul"
	"github.com/satos-jp/probbbc/internal/trace"
)

// TableHandle is the narrow, read-only borrow into the learner's
// observation table: does replaying t break its closedness or consistency.
type TableHandle interface {
	IsTraceTableBreaking(t trace.Trace) bool
}

// NopTable never reports a trace as table-breaking, for callers with no
// observation table to consult (tests, the demo command).
type NopTable struct{}

// IsTraceTableBreaking always returns false.
func (NopTable) IsTraceTableBreaking(trace.Trace) bool { return false }

// ErrTableBroken is SMC's sentinel: a sampled trace would invalidate the
// learner's observation table. The caller abandons the round.
var ErrTableBroken = errors.New("smc: trace breaks observation table invariants")

// Config holds one invocation's tunables.
type Config struct {
	NExec         int
	MaxTraceSteps int
	ReturnCEX     bool
}

// Result is everything exposed after a Run completes normally (no
// ErrTableBroken, no counterexample trace returned early).
type Result struct {
	ExecCountSat         int
	ExecCountVio         int
	ExecSample           []trace.Trace
	SatisfiedExecSample  []trace.Trace
	NumSteps             int
	PValue               float64
}

// Checker drives B against sut under prop, sampling NExec runs per Run call.
type Checker struct {
	sut   sul.SUT
	b     *bridge.Bridge
	prop  propeval.Evaluator
	table TableHandle
	log   *zap.Logger
}

// New returns a Checker over the given collaborators. table may be nil, in
// which case no trace is ever considered table-breaking.
func New(s sul.SUT, b *bridge.Bridge, prop propeval.Evaluator, table TableHandle, log *zap.Logger) *Checker {
	if table == nil {
		table = NopTable{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{sut: s, b: b, prop: prop, table: table, log: log}
}

// Run samples cfg.NExec executions. It returns (trace, nil, nil) if an
// inconsistent observation was found early and cfg.ReturnCEX is set
// (cex != nil); (nil, ErrTableBroken, nil) if the table
// handle flagged a sampled trace; or (nil, nil, result) with the full
// hypothesis-test result otherwise.
func (c *Checker) Run(vHyp float64, cfg Config) (cex trace.Trace, err error, result *Result) {
	res := &Result{}

	for i := 0; i < cfg.NExec; i++ {
		c.sut.Reset()
		c.b.Reset()
		var t trace.Trace

		for {
			action, actionErr := c.b.NextAction()
			if actionErr != nil {
				c.log.Debug("smc: next_action failed mid-run", zap.Error(actionErr))
				res.ExecCountVio++
				break
			}

			observation, stepErr := c.sut.Step(action)
			if stepErr != nil {
				c.log.Debug("smc: sut step failed", zap.Error(stepErr))
				res.ExecCountVio++
				break
			}
			t = append(t, trace.Step{Input: action, Observation: observation})
			res.NumSteps++

			updateErr := c.b.Update(action, observation)
			if errors.Is(updateErr, bridge.ErrInconsistentObservation) {
				if cfg.ReturnCEX {
					return t, nil, nil
				}
				res.ExecCountVio++
				break
			}

			if c.table.IsTraceTableBreaking(t) {
				return nil, ErrTableBroken, nil
			}

			verdict := c.prop.Evaluate(t)
			if verdict == propeval.Sat {
				res.ExecCountSat++
				res.ExecSample = append(res.ExecSample, t)
				res.SatisfiedExecSample = append(res.SatisfiedExecSample, t)
				break
			}
			if verdict == propeval.Vio {
				res.ExecCountVio++
				res.ExecSample = append(res.ExecSample, t)
				break
			}
			if cfg.MaxTraceSteps > 0 && len(t) >= cfg.MaxTraceSteps {
				res.ExecCountVio++
				res.ExecSample = append(res.ExecSample, t)
				break
			}
		}
	}

	res.PValue = twoSidedBinomialTest(res.ExecCountSat, cfg.NExec, vHyp)
	return nil, nil, res
}

// twoSidedBinomialTest returns the two-sided p-value for H0: p = vHyp given
// sat successes out of n trials, using the exact binomial distribution.
// With n == 0 the test is undefined and this returns NaN — callers must
// treat that as "take the random-walk branch", per the zero-samples
// boundary case.
func twoSidedBinomialTest(sat, n int, vHyp float64) float64 {
	if n == 0 {
		return math.NaN()
	}
	dist := distuv.Binomial{N: float64(n), P: vHyp}

	pLower := dist.CDF(float64(sat))
	pUpper := 1 - dist.CDF(float64(sat)-1)

	p := 2 * math.Min(pLower, pUpper)
	if p > 1 {
		p = 1
	}
	return p
}
