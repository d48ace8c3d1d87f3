package bridge

import "errors"

// ErrAmbiguousStrategy is returned by NextAction when alpha does not agree
// on every adversary state in the current belief's support.
var ErrAmbiguousStrategy = errors.New("bridge: ambiguous strategy across belief support")

// ErrInconsistentObservation is returned by Update when the observed output
// has zero probability under the current belief — a candidate statistical
// counterexample, not a hard failure.
var ErrInconsistentObservation = errors.New("bridge: observation inconsistent with belief")
