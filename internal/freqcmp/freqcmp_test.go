package freqcmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satos-jp/probbbc/internal/mdp"
	"github.com/satos-jp/probbbc/internal/trace"
)

// skewedFixture builds the Scenario S3 hypothesis: s0 --a--> s1 (p=0.5, o=X)
// or s2 (p=0.5, o=Y).
func skewedFixture(t *testing.T) *mdp.MDP {
	t.Helper()
	m := mdp.New(0)
	m.SetLabel(0, "____start")
	m.SetLabel(1, "X")
	m.SetLabel(2, "Y")
	require.NoError(t, m.SetTransition(0, "a", []mdp.Successor{
		{State: 1, Prob: 0.5},
		{State: 2, Prob: 0.5},
	}))
	return m
}

func sample(n int, input mdp.Input, observation mdp.Observation) []trace.Trace {
	out := make([]trace.Trace, n)
	for i := range out {
		out[i] = trace.Trace{{Input: input, Observation: observation}}
	}
	return out
}

func TestCompareTailFindsDeviatingTraceScenarioS3(t *testing.T) {
	m := skewedFixture(t)
	sut := append(sample(180, "a", "X"), sample(20, "a", "Y")...)

	cex, found := Compare(Tail, sut, nil, m, 0.05)
	require.True(t, found)
	assert.Equal(t, mdp.Observation("X"), cex[len(cex)-1].Observation)
}

func TestCompareTailFindsNoCounterexampleScenarioS4(t *testing.T) {
	m := skewedFixture(t)
	sut := append(sample(498, "a", "X"), sample(502, "a", "Y")...)

	_, found := Compare(Tail, sut, nil, m, 0.05)
	assert.False(t, found)
}

func TestCompareTailSkipsTracesWhosePrefixIsNotRealizableInModel(t *testing.T) {
	m := skewedFixture(t)
	// The prefix {a,Z} has no matching successor in m (only X and Y exist),
	// so walk(prefix) fails for the two-step candidate and it is skipped
	// before its last step, {a,X}, is ever compared. The one-step candidate
	// {a,Z} has a realizable (empty) prefix: the model gives it 0 and the
	// sample gives it 1, so it is the counterexample returned.
	unrealizable := []trace.Trace{{{Input: "a", Observation: "Z"}, {Input: "a", Observation: "X"}}}

	cex, found := Compare(Tail, unrealizable, nil, m, 0.01)
	require.True(t, found)
	assert.Equal(t, trace.Trace{{Input: "a", Observation: "Z"}}, cex)
}

func TestCompareWholeTraceUsesSatisfiedSampleAsCandidates(t *testing.T) {
	m := skewedFixture(t)
	satisfied := sample(180, "a", "X")
	total := append(sample(180, "a", "X"), sample(20, "a", "Y")...)

	cex, found := Compare(WholeTrace, total, satisfied, m, 0.05)
	require.True(t, found)
	assert.Equal(t, mdp.Observation("X"), cex[len(cex)-1].Observation)
}
