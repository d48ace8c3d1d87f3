package sul

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satos-jp/probbbc/internal/mdp"
)

func coinFlip(t *testing.T) *mdp.MDP {
	t.Helper()
	m := mdp.New(0)
	m.SetLabel(0, "____start")
	m.SetLabel(1, "heads")
	m.SetLabel(2, "tails")
	require.NoError(t, m.SetTransition(0, "flip", []mdp.Successor{
		{State: 1, Prob: 0.5},
		{State: 2, Prob: 0.5},
	}))
	return m
}

func TestResetReturnsToInitialStateAndCountsAQuery(t *testing.T) {
	s := NewMDPSUL(coinFlip(t), rand.New(rand.NewSource(1)))
	assert.Equal(t, 1, s.NumQueries(), "NewMDPSUL resets once to establish the starting state")

	s.Step("flip")
	s.Reset()
	assert.Equal(t, 2, s.NumQueries())
	assert.Equal(t, mdp.StateID(0), s.current)
}

func TestStepSamplesASuccessorAndCountsIt(t *testing.T) {
	s := NewMDPSUL(coinFlip(t), rand.New(rand.NewSource(1)))

	obs, err := s.Step("flip")
	require.NoError(t, err)
	assert.Contains(t, []mdp.Observation{"heads", "tails"}, obs)
	assert.Equal(t, 1, s.NumSteps())
}

func TestStepErrorsWhenInputHasNoTransitionAtCurrentState(t *testing.T) {
	s := NewMDPSUL(coinFlip(t), rand.New(rand.NewSource(1)))

	_, err := s.Step("never-defined")
	assert.Error(t, err)
}

func TestStepDistributionMatchesDeclaredProbabilitiesOverManySamples(t *testing.T) {
	m := coinFlip(t)
	s := NewMDPSUL(m, rand.New(rand.NewSource(7)))

	heads := 0
	const n = 4000
	for i := 0; i < n; i++ {
		s.Reset()
		obs, err := s.Step("flip")
		require.NoError(t, err)
		if obs == "heads" {
			heads++
		}
	}
	ratio := float64(heads) / float64(n)
	assert.InDelta(t, 0.5, ratio, 0.05)
}
