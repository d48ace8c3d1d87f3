// Package bridge implements the strategy bridge: a stateful executor of a
// PRISM-synthesized adversary that tracks a belief distribution over the
// adversary's internal states and answers "what action next" and "here is
// what the SUT produced, update yourself".
package bridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/satos-jp/probbbc/internal/mdp"
)

// Bridge holds the immutable, borrowed adversary table and the bridge's own
// mutable belief. It never mutates the adversary it was built from.
type Bridge struct {
	adversary *mdp.Adversary
	belief    map[mdp.AdversaryState]float64
	log       *zap.Logger
}

// New returns a Bridge over adversary, already reset to the Dirac belief on
// q0.
func New(adversary *mdp.Adversary, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bridge{adversary: adversary, log: log}
	b.Reset()
	return b
}

// Reset sets the belief to a point mass on the adversary's initial state.
func (b *Bridge) Reset() {
	b.belief = map[mdp.AdversaryState]float64{b.adversary.Initial: 1.0}
}

// Belief returns a defensive copy of the current belief distribution.
func (b *Bridge) Belief() map[mdp.AdversaryState]float64 {
	out := make(map[mdp.AdversaryState]float64, len(b.belief))
	for q, p := range b.belief {
		out[q] = p
	}
	return out
}

// support returns the adversary states with nonzero belief mass.
func (b *Bridge) support() []mdp.AdversaryState {
	qs := make([]mdp.AdversaryState, 0, len(b.belief))
	for q, p := range b.belief {
		if p > 0 {
			qs = append(qs, q)
		}
	}
	return qs
}

// NextAction returns the action mandated by alpha across the belief's
// support. alpha must agree on every state in the support — all belief mass
// corresponds to a single learner-equivalence-class observation, and the
// synthesized scheduler is memoryless per observation — otherwise this
// returns ErrAmbiguousStrategy.
func (b *Bridge) NextAction() (mdp.Input, error) {
	support := b.support()
	if len(support) == 0 {
		return "", fmt.Errorf("bridge: empty belief support")
	}
	action, ok := b.adversary.Action[support[0]]
	if !ok {
		return "", fmt.Errorf("bridge: adversary state %d has no action", support[0])
	}
	for _, q := range support[1:] {
		other, ok := b.adversary.Action[q]
		if !ok || other != action {
			return "", ErrAmbiguousStrategy
		}
	}
	return action, nil
}

// Update computes b'(q') = sum_q b(q) * tau(q, observation)(q'). If the
// resulting total mass is zero, the observation was impossible under the
// belief and Update returns ErrInconsistentObservation, leaving the belief
// unchanged so the caller can decide how to proceed.
func (b *Bridge) Update(action mdp.Input, observation mdp.Observation) error {
	next := map[mdp.AdversaryState]float64{}
	for q, p := range b.belief {
		if p == 0 {
			continue
		}
		dist, ok := b.adversary.Next[q][observation]
		if !ok {
			continue
		}
		for qp, tp := range dist {
			next[qp] += p * tp
		}
	}

	total := 0.0
	for _, p := range next {
		total += p
	}
	if total == 0 {
		b.log.Debug("inconsistent observation",
			zap.String("action", string(action)),
			zap.String("observation", string(observation)))
		return ErrInconsistentObservation
	}

	for q := range next {
		next[q] /= total
	}
	b.belief = next
	return nil
}
