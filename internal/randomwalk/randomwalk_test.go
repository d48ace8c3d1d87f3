package randomwalk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satos-jp/probbbc/internal/mdp"
)

// divergingSUT always answers "wrong" regardless of the hypothesis's
// expectations, so every walk diverges on its first real step.
type divergingSUT struct {
	resets, steps int
}

func (d *divergingSUT) Reset()                        { d.resets++ }
func (d *divergingSUT) Step(mdp.Input) (mdp.Observation, error) { d.steps++; return "wrong", nil }
func (d *divergingSUT) NumQueries() int                { return d.resets }
func (d *divergingSUT) NumSteps() int                  { return d.steps }

func fixtureHypothesis(t *testing.T) *mdp.MDP {
	t.Helper()
	m := mdp.New(0)
	m.SetLabel(0, "____start")
	m.SetLabel(1, "right")
	require.NoError(t, m.SetTransition(0, "go", []mdp.Successor{{State: 1, Prob: 1.0}}))
	return m
}

func TestRunReturnsTraceOnFirstDivergence(t *testing.T) {
	m := fixtureHypothesis(t)
	sut := &divergingSUT{}
	o := New(sut, rand.New(rand.NewSource(1)), nil)

	tr, found := o.Run(m, 0.0, 10)
	require.True(t, found)
	require.Len(t, tr, 1)
	assert.Equal(t, mdp.Input("go"), tr[0].Input)
	assert.Equal(t, mdp.Observation("wrong"), tr[0].Observation)
}

// agreeingSUT always follows the hypothesis's sole transition exactly, so no
// divergence should ever be found.
type agreeingSUT struct {
	m       *mdp.MDP
	current mdp.StateID
}

func (a *agreeingSUT) Reset() { a.current = a.m.Initial }
func (a *agreeingSUT) Step(input mdp.Input) (mdp.Observation, error) {
	next, _, _ := a.m.Step(a.current, input, mustLabel(a.m, mustSuccessor(a.m, a.current, input)))
	a.current = next
	return mustLabel(a.m, next), nil
}
func (a *agreeingSUT) NumQueries() int { return 0 }
func (a *agreeingSUT) NumSteps() int   { return 0 }

func mustSuccessor(m *mdp.MDP, s mdp.StateID, i mdp.Input) mdp.StateID {
	dist := m.Transitions(s, i)
	return dist[0].State
}

func mustLabel(m *mdp.MDP, s mdp.StateID) mdp.Observation {
	label, _ := m.Label(s)
	return label
}

func TestRunExhaustsBudgetWithoutDivergence(t *testing.T) {
	m := fixtureHypothesis(t)
	sut := &agreeingSUT{m: m}
	sut.Reset()
	o := New(sut, rand.New(rand.NewSource(2)), nil)

	_, found := o.Run(m, 0.0, 20)
	assert.False(t, found)
}

func TestRunResetsWhenStateHasNoInputs(t *testing.T) {
	m := mdp.New(0)
	m.SetLabel(0, "____start") // a dead end: no transitions at all
	sut := &divergingSUT{}
	o := New(sut, rand.New(rand.NewSource(3)), nil)

	_, found := o.Run(m, 0.0, 5)
	assert.False(t, found)
	assert.Greater(t, sut.resets, 1)
}
