// Package propeval defines the property-evaluator boundary: a pure decider
// on finite traces, plus a bounded-reachability reference implementation
// used for tests and the demo command.
package propeval

import "github.com/satos-jp/probbbc/internal/trace"

// Verdict is the outcome of evaluating a property against a trace prefix.
type Verdict int

const (
	// Unknown means the trace is too short to decide; keep sampling.
	Unknown Verdict = iota
	// Sat means the property is satisfied by this trace.
	Sat
	// Vio means the property is violated by this trace.
	Vio
)

// Evaluator is phi_trace: a pure decider on finite traces.
type Evaluator interface {
	Evaluate(t trace.Trace) Verdict
}

// BoundedReachability is a reference evaluator: sat once any observation in
// target appears within the first horizon steps, vio once horizon steps
// have elapsed without reaching target.
type BoundedReachability struct {
	Target  map[string]bool
	Horizon int
}

// NewBoundedReachability returns an evaluator satisfied by reaching any
// observation named in targets within horizon steps.
func NewBoundedReachability(targets []string, horizon int) *BoundedReachability {
	set := make(map[string]bool, len(targets))
	for _, o := range targets {
		set[o] = true
	}
	return &BoundedReachability{Target: set, Horizon: horizon}
}

// Evaluate walks t and returns Sat as soon as a step's observation is a
// target, Vio once horizon steps have elapsed without reaching one, else
// Unknown.
func (b *BoundedReachability) Evaluate(t trace.Trace) Verdict {
	for i, step := range t {
		if step.Observation == "" {
			continue
		}
		if b.Target[string(step.Observation)] {
			return Sat
		}
		if i+1 >= b.Horizon {
			return Vio
		}
	}
	if len(t) >= b.Horizon {
		return Vio
	}
	return Unknown
}
