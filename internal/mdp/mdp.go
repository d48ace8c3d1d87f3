// Package mdp defines the labeled Markov Decision Process data model shared
// by every component of the refinement loop: states carry an observation
// label, and each (state, input) pair maps to a probability distribution
// over successor states whose labels are pairwise distinct.
package mdp

import (
	"fmt"
	"sort"
)

// StateID identifies a state within an MDP.
type StateID int

// Input is a member of the input alphabet Sigma_in.
type Input string

// Observation is a member of the output alphabet Sigma_out.
type Observation string

// Successor is one (state, probability) pair in a transition distribution.
type Successor struct {
	State StateID
	Prob  float64
}

// ProbEpsilon is the tolerance used whenever a probability distribution is
// checked for summing to 1.
const ProbEpsilon = 1e-9

// MDP is a labeled MDP M = (S, s0, Sigma_in, Sigma_out, delta, L).
type MDP struct {
	Initial StateID
	labels  map[StateID]Observation
	delta   map[StateID]map[Input][]Successor
}

// New returns an empty MDP rooted at initial.
func New(initial StateID) *MDP {
	return &MDP{
		Initial: initial,
		labels:  make(map[StateID]Observation),
		delta:   make(map[StateID]map[Input][]Successor),
	}
}

// SetLabel assigns the observation label L(s).
func (m *MDP) SetLabel(s StateID, o Observation) {
	m.labels[s] = o
}

// Label returns L(s) and whether s is known to the MDP.
func (m *MDP) Label(s StateID) (Observation, bool) {
	o, ok := m.labels[s]
	return o, ok
}

// States returns every known state id, sorted for deterministic iteration.
func (m *MDP) States() []StateID {
	ids := make([]StateID, 0, len(m.labels))
	for s := range m.labels {
		ids = append(ids, s)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SetTransition installs delta(s, i) = dist, enforcing the output-determinism
// invariant: successor labels within dist must be unique, and probabilities
// must sum to 1 within ProbEpsilon.
func (m *MDP) SetTransition(s StateID, i Input, dist []Successor) error {
	seen := make(map[Observation]bool, len(dist))
	total := 0.0
	for _, succ := range dist {
		label, ok := m.Label(succ.State)
		if !ok {
			return fmt.Errorf("mdp: successor state %d has no observation label", succ.State)
		}
		if seen[label] {
			return fmt.Errorf("mdp: delta(%d,%s) violates output-determinism: observation %q reached twice", s, i, label)
		}
		seen[label] = true
		total += succ.Prob
	}
	if len(dist) > 0 && diff(total, 1.0) > ProbEpsilon {
		return fmt.Errorf("mdp: delta(%d,%s) probabilities sum to %f, not 1", s, i, total)
	}
	if m.delta[s] == nil {
		m.delta[s] = make(map[Input][]Successor)
	}
	m.delta[s][i] = dist
	return nil
}

// Transitions returns delta(s, i), or nil if undefined.
func (m *MDP) Transitions(s StateID, i Input) []Successor {
	return m.delta[s][i]
}

// Inputs returns every input with a defined transition at s.
func (m *MDP) Inputs(s StateID) []Input {
	ins := make([]Input, 0, len(m.delta[s]))
	for i := range m.delta[s] {
		ins = append(ins, i)
	}
	sort.Slice(ins, func(a, b int) bool { return ins[a] < ins[b] })
	return ins
}

// Step walks delta(s, i) to the unique successor labeled o. ok is false when
// no successor under i carries that observation (probability 0 under the
// output-determinism invariant).
func (m *MDP) Step(s StateID, i Input, o Observation) (next StateID, prob float64, ok bool) {
	for _, succ := range m.delta[s][i] {
		if label, _ := m.Label(succ.State); label == o {
			return succ.State, succ.Prob, true
		}
	}
	return 0, 0, false
}

// ProbabilityOf returns the probability mass delta(s,i) assigns to the
// successor labeled o, or 0 if there is none.
func (m *MDP) ProbabilityOf(s StateID, i Input, o Observation) float64 {
	_, p, ok := m.Step(s, i, o)
	if !ok {
		return 0
	}
	return p
}

func diff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}
