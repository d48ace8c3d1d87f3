// Package freqcmp finds a single SUT trace whose empirical transition
// frequency deviates from the hypothesis MDP by more than a threshold, even
// when the aggregate property probability matched.
package freqcmp

import (
	"math"

	"github.com/satos-jp/probbbc/internal/mdp"
	"github.com/satos-jp/probbbc/internal/trace"
)

// Mode selects which comparison routine Compare runs.
type Mode int

const (
	// Tail compares only the last transition of each candidate trace
	// (compare_frequency_with_tail). This is the default.
	Tail Mode = iota
	// WholeTrace compares each candidate's full trace probability against
	// the model (compare_frequency). Kept as a documented alternative:
	// candidates not realizable in the hypothesis are skipped, and the
	// empirical population is matched by input sequence only, ignoring
	// observations — prefer Tail.
	WholeTrace
)

// walk replays t's inputs through m from the initial state, following
// whichever successor matches each step's observation. ok is false if some
// step has no matching successor (t is not realizable in m).
func walk(m *mdp.MDP, t trace.Trace) (state mdp.StateID, ok bool) {
	state = m.Initial
	for _, step := range t {
		next, _, stepOK := m.Step(state, step.Input, step.Observation)
		if !stepOK {
			return 0, false
		}
		state = next
	}
	return state, true
}

// walkProbability is like walk but returns the product of per-step
// probabilities along the path instead of the reached state.
func walkProbability(m *mdp.MDP, t trace.Trace) (prob float64, ok bool) {
	state := m.Initial
	prob = 1.0
	for _, step := range t {
		next, p, stepOK := m.Step(state, step.Input, step.Observation)
		if !stepOK {
			return 0, false
		}
		prob *= p
		state = next
	}
	return prob, true
}

// Compare runs the selected comparison mode and returns the first
// deviating trace it finds, or (nil, false) if none deviates by more than
// epsilon. execSample is every sampled trace from one SMC run;
// satisfiedSample is the subset that satisfied the property — only
// WholeTrace mode uses it.
func Compare(mode Mode, execSample, satisfiedSample []trace.Trace, hypothesis *mdp.MDP, epsilon float64) (trace.Trace, bool) {
	if mode == WholeTrace {
		return compareWholeTrace(satisfiedSample, execSample, hypothesis, epsilon)
	}
	return compareTail(execSample, hypothesis, epsilon)
}

// compareTail is compare_frequency_with_tail: for each distinct prefix
// (most frequent first, ties broken lexicographically), it compares the
// model's probability for the prefix's final step against its empirical
// frequency among same-length-minus-one prefixes sharing the same action.
func compareTail(sample []trace.Trace, hypothesis *mdp.MDP, epsilon float64) (trace.Trace, bool) {
	candidates := trace.EvenPrefixes(sample).MostCommon()
	prefixWithAction := trace.OddPrefixes(sample)

	for _, entry := range candidates {
		t := entry.Trace
		if len(t) == 0 {
			continue
		}
		last := t[len(t)-1]
		prefix := t[:len(t)-1]

		state, ok := walk(hypothesis, prefix)
		if !ok {
			continue
		}
		pHyp := hypothesis.ProbabilityOf(state, last.Input, last.Observation)

		prefixWithActionStep := append(prefix.Clone(), trace.Step{Input: last.Input})
		denom := prefixWithAction.Count(prefixWithActionStep)
		if denom == 0 {
			continue
		}
		pSut := float64(entry.Freq) / float64(denom)

		if math.Abs(pHyp-pSut) > epsilon {
			return t, true
		}
	}
	return nil, false
}

// compareWholeTrace is compare_frequency: for each distinct satisfied
// trace (most frequent first), it compares the model's whole-trace
// probability against the fraction of execSample whose input sequence
// matches the candidate's, for however many inputs the candidate has.
func compareWholeTrace(satisfiedSample, execSample []trace.Trace, hypothesis *mdp.MDP, epsilon float64) (trace.Trace, bool) {
	candidates := wholeTraceCounter(satisfiedSample).MostCommon()

	for _, entry := range candidates {
		t := entry.Trace
		pHyp, ok := walkProbability(hypothesis, t)
		if !ok {
			continue
		}

		population := 0
		for _, other := range execSample {
			if sameInputPrefix(t, other) {
				population++
			}
		}
		if population == 0 {
			continue
		}
		pSut := float64(entry.Freq) / float64(population)

		if math.Abs(pHyp-pSut) > epsilon {
			return t, true
		}
	}
	return nil, false
}

// wholeTraceCounter counts each trace in sample as a single entry at its
// own full length — unlike trace.EvenPrefixes, it does not also count
// shorter prefixes.
func wholeTraceCounter(sample []trace.Trace) *trace.Counter {
	c := trace.NewCounter()
	for _, t := range sample {
		c.Add(t)
	}
	return c
}

// sameInputPrefix reports whether other's inputs agree with candidate's
// inputs over candidate's length (other may be longer).
func sameInputPrefix(candidate, other trace.Trace) bool {
	if len(other) < len(candidate) {
		return false
	}
	for i, step := range candidate {
		if other[i].Input != step.Input {
			return false
		}
	}
	return true
}
