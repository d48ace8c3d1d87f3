package mdp

// AdversaryState identifies a state of a deterministic PRISM-synthesized
// scheduler A = (Q, q0, alpha, tau). Many adversary states may map to the
// same underlying MDP state.
type AdversaryState int

// Adversary is the parsed, immutable table form of a scheduler exported by
// the model checker: one action per adversary state, and a belief-update
// distribution keyed by (state, observation).
type Adversary struct {
	Initial AdversaryState

	// Action is alpha: Q -> Sigma_in.
	Action map[AdversaryState]Input

	// Next is tau: Q x Sigma_out -> Distribution(Q), stored as
	// Next[(q, o)] -> {q': prob}, each renormalized to sum to 1.
	Next map[AdversaryState]map[Observation]map[AdversaryState]float64
}

// NewAdversary returns an empty Adversary rooted at initial.
func NewAdversary(initial AdversaryState) *Adversary {
	return &Adversary{
		Initial: initial,
		Action:  make(map[AdversaryState]Input),
		Next:    make(map[AdversaryState]map[Observation]map[AdversaryState]float64),
	}
}
