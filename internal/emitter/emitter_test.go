package emitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satos-jp/probbbc/internal/mdp"
)

func twoStateMDP(t *testing.T) *mdp.MDP {
	t.Helper()
	m := mdp.New(0)
	m.SetLabel(0, "____start")
	m.SetLabel(42, "agree__c1_tails__c2_tails__six")
	require.NoError(t, m.SetTransition(0, "go2", []mdp.Successor{{State: 42, Prob: 1.0}}))
	return m
}

func TestEmitProducesGuardedCommandPerTransition(t *testing.T) {
	m := twoStateMDP(t)
	out := New().Emit(m, "mc_exp")

	assert.Contains(t, out, "mdp\n\nmodule mc_exp\n")
	assert.Contains(t, out, "s : [0..42] init 0;")
	assert.Contains(t, out, "[go2] s=0 -> 1:(s'=42);")
	assert.Contains(t, out, `label "____start" = s=0;`)
	assert.Contains(t, out, `label "agree__c1_tails__c2_tails__six" = s=42;`)
}

func TestEmitGroupsStatesSharingOneObservationIntoOneLabel(t *testing.T) {
	m := mdp.New(0)
	m.SetLabel(0, "o")
	m.SetLabel(1, "o")
	out := New().Emit(m, "mc_exp")

	assert.Contains(t, out, `label "o" = s=0 | s=1;`)
}

func TestAddStepCounterGuardsAndIncrementsEveryCommand(t *testing.T) {
	m := twoStateMDP(t)
	base := New().Emit(m, "mc_exp")

	withCounter := New().AddStepCounter(base, 10)

	assert.Contains(t, withCounter, "c : [0..10] init 0;")
	assert.Contains(t, withCounter, "[go2] s=0 & c<10 -> 1:(s'=42)&(c'=c+1);")
}

func TestAddStepCounterHandlesMultiBranchCommands(t *testing.T) {
	m := mdp.New(0)
	m.SetLabel(0, "____start")
	m.SetLabel(1, "heads")
	m.SetLabel(2, "tails")
	require.NoError(t, m.SetTransition(0, "flip", []mdp.Successor{
		{State: 1, Prob: 0.5},
		{State: 2, Prob: 0.5},
	}))
	base := New().Emit(m, "mc_exp")

	withCounter := New().AddStepCounter(base, 3)

	assert.Contains(t, withCounter,
		"[flip] s=0 & c<3 -> 0.5:(s'=1)&(c'=c+1) + 0.5:(s'=2)&(c'=c+1);")
}
