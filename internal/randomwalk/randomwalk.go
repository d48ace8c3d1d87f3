// Package randomwalk implements the equivalence-test fallback the
// refinement oracle falls through to whenever the model checker cannot
// produce a usable adversary: step the hypothesis and the SUT together
// under random inputs, restarting with probability resetProb, until their
// observations diverge or the step budget runs out.
package randomwalk

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/satos-jp/probbbc/internal/mdp"
	"github.com/satos-jp/probbbc/internal/sul"
	"github.com/satos-jp/probbbc/internal/trace"
)

// Oracle drives sut and a hypothesis MDP together, picking inputs uniformly
// at random from the hypothesis's declared alphabet at its current state.
type Oracle struct {
	sut sul.SUT
	rng *rand.Rand
	log *zap.Logger
}

// New returns an Oracle over sut, using rng for both reset decisions and
// input selection.
func New(s sul.SUT, rng *rand.Rand, log *zap.Logger) *Oracle {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Oracle{sut: s, rng: rng, log: log}
}

// Run performs up to maxSteps steps against hypothesis, resetting both the
// SUT and the walk's position in hypothesis with probability resetProb
// before each step. It returns the trace up to and including the first
// step whose SUT observation diverges from hypothesis's, or (nil, false) if
// maxSteps elapses with no divergence.
func (o *Oracle) Run(hypothesis *mdp.MDP, resetProb float64, maxSteps int) (trace.Trace, bool) {
	state := hypothesis.Initial
	o.sut.Reset()
	var t trace.Trace

	for step := 0; step < maxSteps; step++ {
		if o.rng.Float64() < resetProb {
			o.sut.Reset()
			state = hypothesis.Initial
			t = nil
		}

		inputs := hypothesis.Inputs(state)
		if len(inputs) == 0 {
			o.sut.Reset()
			state = hypothesis.Initial
			t = nil
			continue
		}
		input := inputs[o.rng.Intn(len(inputs))]

		observation, err := o.sut.Step(input)
		if err != nil {
			o.log.Debug("randomwalk: sut step failed", zap.Error(err))
			continue
		}
		t = append(t, trace.Step{Input: input, Observation: observation})

		next, _, ok := hypothesis.Step(state, input, observation)
		if !ok {
			return t, true
		}
		state = next
	}

	return nil, false
}
