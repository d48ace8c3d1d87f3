// Package prismio parses the state-label (.sta), transition (.tra), label
// (.lab) and adversary (adv.tra) files emitted by the external model checker
// into an in-memory labeled MDP and deterministic scheduler.
package prismio

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/satos-jp/probbbc/internal/mdp"
)

// initLabelName is the PRISM convention: label index 0 is always "init".
const initLabelName = "init"

// startObservation is rendered for a state whose only true label is "init".
const startObservation = "____start"

var staHeaderVar = regexp.MustCompile(`\(([^)]*)\)`)

// traRow is one parsed line of a .tra or adv.tra file.
type traRow struct {
	Src  int
	Act  string
	Dst  int
	Prob float64
}

// Result is everything the reader extracts: the full labeled MDP rebuilt
// from .sta/.tra/.lab, plus the adversary table parsed from adv.tra.
type Result struct {
	MDP       *mdp.MDP
	Adversary *mdp.Adversary
}

// Reader parses a model checker's export file quartet.
type Reader struct {
	log *zap.Logger
}

// New returns a Reader that logs to log (may be zap.NewNop()).
func New(log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{log: log}
}

// Read parses the .sta, .tra, .lab and adv.tra files at the given paths.
func (r *Reader) Read(staPath, traPath, labPath, advPath string) (*Result, error) {
	labels, initial, err := r.readLab(labPath)
	if err != nil {
		return nil, err
	}

	stateIDs, err := r.readSta(staPath)
	if err != nil {
		return nil, err
	}

	m := mdp.New(initial)
	for _, s := range stateIDs {
		label, ok := labels[s]
		if !ok {
			return nil, fmt.Errorf("%w: state %d has no .lab entry", ErrMalformedExport, s)
		}
		m.SetLabel(s, label)
	}

	traRows, err := r.readTraLines(traPath)
	if err != nil {
		return nil, err
	}
	if err := buildMDP(m, traRows); err != nil {
		return nil, err
	}

	advRows, err := r.readTraLines(advPath)
	if err != nil {
		return nil, err
	}
	adversary, err := buildAdversary(advRows, labels, initial)
	if err != nil {
		return nil, err
	}

	r.log.Debug("parsed model checker export",
		zap.Int("states", len(stateIDs)),
		zap.Int("adversary_rows", len(advRows)))

	return &Result{MDP: m, Adversary: adversary}, nil
}

// readLab parses the .lab file: header "0=\"init\" 1=\"...\" ...", then one
// line per state listing the indices of its true labels. It returns the
// reassembled observation per state and the initial state id.
func (r *Reader) readLab(path string) (map[mdp.StateID]mdp.Observation, mdp.StateID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: opening .lab: %v", ErrMalformedExport, err)
	}
	defer f.Close()

	names := map[int]string{}
	labels := map[mdp.StateID][]string{}

	scanner := bufio.NewScanner(f)
	headerSeen := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !headerSeen {
			headerSeen = true
			for _, entry := range strings.Fields(line) {
				parts := strings.SplitN(entry, "=", 2)
				if len(parts) != 2 {
					continue
				}
				idx, err := strconv.Atoi(parts[0])
				if err != nil {
					continue
				}
				names[idx] = strings.Trim(parts[1], `"`)
			}
			continue
		}
		colon := strings.Index(line, ":")
		if colon < 0 {
			return nil, 0, fmt.Errorf("%w: malformed .lab line %q", ErrMalformedExport, line)
		}
		sid, err := strconv.Atoi(strings.TrimSpace(line[:colon]))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: malformed .lab state id %q", ErrMalformedExport, line[:colon])
		}
		var trueLabels []string
		for _, tok := range strings.Fields(line[colon+1:]) {
			idx, err := strconv.Atoi(tok)
			if err != nil {
				return nil, 0, fmt.Errorf("%w: malformed .lab label index %q", ErrMalformedExport, tok)
			}
			if name, ok := names[idx]; ok {
				trueLabels = append(trueLabels, name)
			}
		}
		labels[mdp.StateID(sid)] = trueLabels
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: reading .lab: %v", ErrMalformedExport, err)
	}

	observations := make(map[mdp.StateID]mdp.Observation, len(labels))
	var initial mdp.StateID
	foundInitial := false
	for sid, trueLabels := range labels {
		isInit := false
		aps := make([]string, 0, len(trueLabels))
		for _, l := range trueLabels {
			if l == initLabelName {
				isInit = true
				continue
			}
			aps = append(aps, l)
		}
		if isInit {
			if foundInitial {
				return nil, 0, fmt.Errorf("%w: multiple states flagged init", ErrMalformedExport)
			}
			foundInitial = true
			initial = sid
		}
		sort.Strings(aps)
		if len(aps) == 0 {
			observations[sid] = startObservation
		} else {
			observations[sid] = mdp.Observation(strings.Join(aps, "__"))
		}
	}
	if !foundInitial {
		return nil, 0, fmt.Errorf("%w: missing initial state", ErrMalformedExport)
	}

	return observations, initial, nil
}

// readSta parses the .sta header and state lines, returning the set of
// declared state ids. Variable values are not otherwise interpreted: the
// reader's observation semantics come entirely from .lab.
func (r *Reader) readSta(path string) ([]mdp.StateID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening .sta: %v", ErrMalformedExport, err)
	}
	defer f.Close()

	var ids []mdp.StateID
	scanner := bufio.NewScanner(f)
	headerSeen := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !headerSeen {
			headerSeen = true
			if !staHeaderVar.MatchString(line) {
				return nil, fmt.Errorf("%w: malformed .sta header %q", ErrMalformedExport, line)
			}
			continue
		}
		colon := strings.Index(line, ":")
		if colon < 0 {
			return nil, fmt.Errorf("%w: malformed .sta line %q", ErrMalformedExport, line)
		}
		sid, err := strconv.Atoi(strings.TrimSpace(line[:colon]))
		if err != nil {
			return nil, fmt.Errorf("%w: malformed .sta state id %q", ErrMalformedExport, line[:colon])
		}
		ids = append(ids, mdp.StateID(sid))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading .sta: %v", ErrMalformedExport, err)
	}
	return ids, nil
}

// readTraLines parses a .tra or adv.tra file's "src act dst prob [label]"
// rows, skipping the leading PRISM header line ("numStates numTransitions").
func (r *Reader) readTraLines(path string) ([]traRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening .tra: %v", ErrMalformedExport, err)
	}
	defer f.Close()

	var rows []traRow
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			// PRISM's leading counts line, or any other non-row header.
			continue
		}
		src, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		dst, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%w: malformed .tra dst %q", ErrMalformedExport, fields[2])
		}
		prob, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed .tra probability %q", ErrMalformedExport, fields[3])
		}
		rows = append(rows, traRow{Src: src, Act: fields[1], Dst: dst, Prob: prob})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading .tra: %v", ErrMalformedExport, err)
	}
	return rows, nil
}

// buildMDP installs delta(s,i) for every (src,act) group found in rows.
func buildMDP(m *mdp.MDP, rows []traRow) error {
	type key struct {
		src int
		act string
	}
	grouped := map[key][]traRow{}
	var order []key
	for _, row := range rows {
		k := key{row.Src, row.Act}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], row)
	}
	for _, k := range order {
		group := grouped[k]
		dist := make([]mdp.Successor, 0, len(group))
		for _, row := range group {
			dist = append(dist, mdp.Successor{State: mdp.StateID(row.Dst), Prob: row.Prob})
		}
		if err := m.SetTransition(mdp.StateID(k.src), mdp.Input(k.act), dist); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedExport, err)
		}
	}
	return nil
}

// buildAdversary turns adv.tra rows into strategy (one action per source)
// and the per-(state,observation) belief-update table, renormalized to sum
// to 1 within each (state, action, observation) group.
func buildAdversary(rows []traRow, labels map[mdp.StateID]mdp.Observation, initial mdp.StateID) (*mdp.Adversary, error) {
	a := mdp.NewAdversary(mdp.AdversaryState(initial))

	bySrc := map[int][]traRow{}
	var srcOrder []int
	for _, row := range rows {
		if _, ok := bySrc[row.Src]; !ok {
			srcOrder = append(srcOrder, row.Src)
		}
		bySrc[row.Src] = append(bySrc[row.Src], row)
	}

	for _, src := range srcOrder {
		group := bySrc[src]
		action := group[0].Act
		total := 0.0
		for _, row := range group {
			if row.Act != action {
				return nil, fmt.Errorf("%w: state %d has multiple actions in adversary (%q and %q)",
					ErrMalformedExport, src, action, row.Act)
			}
			total += row.Prob
		}
		if diff(total, 1.0) > mdp.ProbEpsilon {
			return nil, fmt.Errorf("%w: state %d action %q probabilities sum to %f, not 1",
				ErrMalformedExport, src, action, total)
		}

		q := mdp.AdversaryState(src)
		a.Action[q] = mdp.Input(action)

		rawByObs := map[mdp.Observation]map[mdp.AdversaryState]float64{}
		for _, row := range group {
			obs, ok := labels[mdp.StateID(row.Dst)]
			if !ok {
				return nil, fmt.Errorf("%w: adversary successor %d has no observation label", ErrMalformedExport, row.Dst)
			}
			if rawByObs[obs] == nil {
				rawByObs[obs] = map[mdp.AdversaryState]float64{}
			}
			rawByObs[obs][mdp.AdversaryState(row.Dst)] += row.Prob
		}

		if a.Next[q] == nil {
			a.Next[q] = map[mdp.Observation]map[mdp.AdversaryState]float64{}
		}
		for obs, dsts := range rawByObs {
			mass := 0.0
			for _, p := range dsts {
				mass += p
			}
			normalized := make(map[mdp.AdversaryState]float64, len(dsts))
			for dst, p := range dsts {
				normalized[dst] = p / mass
			}
			a.Next[q][obs] = normalized
		}
	}

	return a, nil
}

func diff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}
