// Package trace implements the alternating input/observation trace type and
// the prefix-closed frequency counters the frequency comparator (4.F) and the
// refinement oracle (4.G) build over a bag of SUT executions.
package trace

import (
	"sort"

	"github.com/satos-jp/probbbc/internal/mdp"
)

// Step is one (input, observation) pair within a Trace.
type Step struct {
	Input       mdp.Input
	Observation mdp.Observation
}

// Trace is the alternating sequence i0 o0 i1 o1 ... in on.
type Trace []Step

// Key renders a trace as a comparable, orderable string, used for
// deterministic tie-breaking and as a Counter map key.
func (t Trace) Key() string {
	var b []byte
	for _, s := range t {
		b = append(b, []byte(s.Input)...)
		b = append(b, 0)
		b = append(b, []byte(s.Observation)...)
		b = append(b, 0)
	}
	return string(b)
}

// Prefix returns the first n steps of t.
func (t Trace) Prefix(n int) Trace {
	if n > len(t) {
		n = len(t)
	}
	out := make(Trace, n)
	copy(out, t[:n])
	return out
}

// Clone returns a defensive copy.
func (t Trace) Clone() Trace {
	out := make(Trace, len(t))
	copy(out, t)
	return out
}

// Counter counts occurrences of distinct traces, keyed by Trace.Key().
type Counter struct {
	counts map[string]int
	traces map[string]Trace
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int), traces: make(map[string]Trace)}
}

// Add increments the count for t by one.
func (c *Counter) Add(t Trace) {
	k := t.Key()
	c.counts[k]++
	if _, ok := c.traces[k]; !ok {
		c.traces[k] = t.Clone()
	}
}

// Count returns the current count for t.
func (c *Counter) Count(t Trace) int {
	return c.counts[t.Key()]
}

// Entry pairs a distinct trace with its observed frequency.
type Entry struct {
	Trace Trace
	Freq  int
}

// MostCommon returns entries ordered by descending frequency, with
// lexicographic order on the trace key as a deterministic tie-break —
// matching original_source's sort_by_frequency.
func (c *Counter) MostCommon() []Entry {
	entries := make([]Entry, 0, len(c.counts))
	for k, freq := range c.counts {
		entries = append(entries, Entry{Trace: c.traces[k], Freq: freq})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Freq != entries[j].Freq {
			return entries[i].Freq > entries[j].Freq
		}
		return entries[i].Trace.Key() < entries[j].Trace.Key()
	})
	return entries
}

// EvenPrefixes builds a Counter over every even-length prefix of every trace
// in traces — i.e. every output-indexed prefix, each ending in an
// (input, observation) pair. This is original_source's
// sort_by_frequency_counter.
func EvenPrefixes(traces []Trace) *Counter {
	c := NewCounter()
	for _, t := range traces {
		for n := 1; n <= len(t); n++ {
			c.Add(t.Prefix(n))
		}
	}
	return c
}

// OddPrefixes builds a Counter over every odd-length prefix — every
// input-indexed prefix, ending in an input with its observation still
// pending. This is original_source's sort_by_frequency_counter_in; the
// convention used here treats the Step.Observation of the final partial
// element as empty.
func OddPrefixes(traces []Trace) *Counter {
	c := NewCounter()
	for _, t := range traces {
		for k := 0; k < len(t); k++ {
			prefix := append(t.Prefix(k), Step{Input: t[k].Input})
			c.Add(prefix)
		}
	}
	return c
}
