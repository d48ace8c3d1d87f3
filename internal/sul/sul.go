// Package sul defines the system-under-test adapter the statistical model
// checker and random-walk oracle drive, plus an in-memory MDP-backed
// implementation used by tests and the demo command.
package sul

import (
	"fmt"
	"math/rand"

	"github.com/satos-jp/probbbc/internal/mdp"
)

// SUT is the system-under-test boundary: reset to the start state, step on
// an input and observe the result, and track query/step counters the way
// aalpy's SUL does.
type SUT interface {
	Reset()
	Step(input mdp.Input) (mdp.Observation, error)
	NumQueries() int
	NumSteps() int
}

// MDPSUL is an in-memory SUT backed directly by a labeled MDP, sampling
// successors according to delta(s, i). It mirrors aalpy's MdpSUL for
// components that need a concrete, dependency-free SUT to exercise.
type MDPSUL struct {
	m          *mdp.MDP
	rng        *rand.Rand
	current    mdp.StateID
	numQueries int
	numSteps   int
}

// NewMDPSUL returns a SUT over m, seeded with rng (a non-nil source of
// determinism for tests).
func NewMDPSUL(m *mdp.MDP, rng *rand.Rand) *MDPSUL {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	s := &MDPSUL{m: m, rng: rng}
	s.Reset()
	return s
}

// Reset returns the SUT to the MDP's initial state and counts a new query.
func (s *MDPSUL) Reset() {
	s.current = s.m.Initial
	s.numQueries++
}

// Step samples a successor of delta(current, input) and returns its
// observation.
func (s *MDPSUL) Step(input mdp.Input) (mdp.Observation, error) {
	dist := s.m.Transitions(s.current, input)
	if len(dist) == 0 {
		return "", fmt.Errorf("sul: no transition for input %q at state %d", input, s.current)
	}

	r := s.rng.Float64()
	acc := 0.0
	chosen := dist[len(dist)-1]
	for _, succ := range dist {
		acc += succ.Prob
		if r < acc {
			chosen = succ
			break
		}
	}

	s.current = chosen.State
	s.numSteps++
	label, _ := s.m.Label(chosen.State)
	return label, nil
}

// NumQueries returns the number of Reset calls.
func (s *MDPSUL) NumQueries() int { return s.numQueries }

// NumSteps returns the number of Step calls across all queries.
func (s *MDPSUL) NumSteps() int { return s.numSteps }
