// Package emitter serializes a learned MDP into the model checker's input
// syntax and injects a step-counter module enabling bounded-reachability
// queries.
package emitter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/satos-jp/probbbc/internal/mdp"
)

// Emitter writes MDP models in PRISM's module syntax.
type Emitter struct{}

// New returns an Emitter.
func New() *Emitter { return &Emitter{} }

// Emit serializes m as a PRISM "mdp" model named name: one state variable s,
// one guarded command per (state, input) transition, and one label per
// distinct observation.
func (e *Emitter) Emit(m *mdp.MDP, name string) string {
	states := m.States()

	maxState := 0
	for _, s := range states {
		if int(s) > maxState {
			maxState = int(s)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "mdp\n\nmodule %s\n", name)
	fmt.Fprintf(&b, "  s : [0..%d] init %d;\n\n", maxState, int(m.Initial))

	for _, s := range states {
		for _, i := range m.Inputs(s) {
			dist := m.Transitions(s, i)
			terms := make([]string, 0, len(dist))
			for _, succ := range dist {
				terms = append(terms, fmt.Sprintf("%g:(s'=%d)", succ.Prob, int(succ.State)))
			}
			fmt.Fprintf(&b, "  [%s] s=%d -> %s;\n", i, int(s), strings.Join(terms, " + "))
		}
	}
	fmt.Fprintf(&b, "endmodule\n\n")

	byObservation := map[mdp.Observation][]mdp.StateID{}
	for _, s := range states {
		label, _ := m.Label(s)
		byObservation[label] = append(byObservation[label], s)
	}
	observations := make([]mdp.Observation, 0, len(byObservation))
	for o := range byObservation {
		observations = append(observations, o)
	}
	sort.Slice(observations, func(i, j int) bool { return observations[i] < observations[j] })

	for _, o := range observations {
		stateSet := byObservation[o]
		sort.Slice(stateSet, func(i, j int) bool { return stateSet[i] < stateSet[j] })
		disjuncts := make([]string, 0, len(stateSet))
		for _, s := range stateSet {
			disjuncts = append(disjuncts, fmt.Sprintf("s=%d", int(s)))
		}
		fmt.Fprintf(&b, "label %q = %s;\n", string(o), strings.Join(disjuncts, " | "))
	}

	return b.String()
}

var commandRe = regexp.MustCompile(`(?m)^(\s*\[[^\]]*\]\s+)(.*?)(\s*->\s*)(.*?)(;\s*)$`)
var updateTermRe = regexp.MustCompile(`\(s'=\d+\)`)
var moduleVarRe = regexp.MustCompile(`(?m)^(\s*s\s*:\s*\[0\.\.\d+\]\s*init\s*\d+;\s*\n)`)

// AddStepCounter rewrites model (as produced by Emit) to add a bounded step
// counter c, guarding every command with c<maxSteps and incrementing c on
// every transition. This enables bounded-reachability queries of the form
// P=? [F (c<=k) & target].
func (e *Emitter) AddStepCounter(model string, maxSteps int) string {
	out := moduleVarRe.ReplaceAllString(model, fmt.Sprintf("${1}  c : [0..%d] init 0;\n", maxSteps))

	out = commandRe.ReplaceAllStringFunc(out, func(line string) string {
		m := commandRe.FindStringSubmatch(line)
		prefix, guard, arrow, updates, tail := m[1], m[2], m[3], m[4], m[5]
		guard = fmt.Sprintf("%s & c<%d", guard, maxSteps)
		updates = updateTermRe.ReplaceAllString(updates, "$0&(c'=c+1)")
		return prefix + guard + arrow + updates + tail
	})

	return out
}
