// Package oracle implements the refinement oracle: the top-level
// find_cex(hypothesis) entry point that orchestrates the model checker
// driver, the strategy bridge, the statistical model checker, the frequency
// comparator, and the random-walk fallback, one learner round at a time.
package oracle

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satos-jp/probbbc/internal/bridge"
	"github.com/satos-jp/probbbc/internal/checker"
	"github.com/satos-jp/probbbc/internal/config"
	"github.com/satos-jp/probbbc/internal/emitter"
	"github.com/satos-jp/probbbc/internal/freqcmp"
	"github.com/satos-jp/probbbc/internal/logging"
	"github.com/satos-jp/probbbc/internal/mdp"
	"github.com/satos-jp/probbbc/internal/prismio"
	"github.com/satos-jp/probbbc/internal/propeval"
	"github.com/satos-jp/probbbc/internal/randomwalk"
	"github.com/satos-jp/probbbc/internal/smc"
	"github.com/satos-jp/probbbc/internal/sul"
	"github.com/satos-jp/probbbc/internal/trace"
)

// roundPaths names every per-round artifact. All rounds share the same
// directory and file names; FindCEX deletes the previous round's files
// before writing new ones.
type roundPaths struct {
	dir       string
	model     string
	converted string
	adv       string
	sta       string
	tra       string
	lab       string
}

func newRoundPaths(outputDir string) roundPaths {
	return roundPaths{
		dir:       outputDir,
		model:     filepath.Join(outputDir, "model.prism"),
		converted: filepath.Join(outputDir, "converted.prism"),
		adv:       filepath.Join(outputDir, "adv.tra"),
		sta:       filepath.Join(outputDir, "m.sta"),
		tra:       filepath.Join(outputDir, "m.tra"),
		lab:       filepath.Join(outputDir, "m.lab"),
	}
}

func (p roundPaths) all() []string {
	return []string{p.model, p.converted, p.adv, p.sta, p.tra, p.lab}
}

// modelChecker is the narrow interface Oracle drives the model checker
// driver through, so tests can substitute a fake without spawning a real
// subprocess.
type modelChecker interface {
	Run(ctx context.Context, p checker.Paths, advFileExists func(string) bool) (*checker.Result, error)
}

// OracleOutcome is the closed result of one FindCEX round: a counterexample
// was found, the round had to be abandoned because a sampled trace would
// have broken the learner's observation table, or the round made no
// progress at all. Modeled as a sealed interface rather than the sentinel
// values (-1, None, a live trace) the source overloads onto one return.
type OracleOutcome interface {
	isOracleOutcome()
}

// Cex is a counterexample trace found during the round, via SMC's
// inconsistent-observation detection, the frequency comparator, or the
// random-walk fallback.
type Cex struct {
	Trace trace.Trace
}

func (Cex) isOracleOutcome() {}

// TableBroken means a sampled trace would have invalidated the learner's
// observation table; the round is abandoned so the learner can process the
// new information before another round is attempted.
type TableBroken struct{}

func (TableBroken) isOracleOutcome() {}

// NoProgress means the round completed without finding any evidence the
// hypothesis is wrong.
type NoProgress struct{}

func (NoProgress) isOracleOutcome() {}

// Oracle holds everything find_cex needs across rounds: the external
// collaborators it drives, and the counters whose evolution the round-trip
// invariants govern (rounds monotone non-decreasing, resetProb monotone
// non-increasing).
type Oracle struct {
	cfg *config.Config

	emit    *emitter.Emitter
	check   modelChecker
	sut     sul.SUT
	prop    propeval.Evaluator
	table   smc.TableHandle
	rng     *rand.Rand
	freqMod freqcmp.Mode

	log *zap.Logger

	rounds    int
	resetProb float64
}

// New returns an Oracle driven by the given external collaborators.
func New(cfg *config.Config, sut sul.SUT, prop propeval.Evaluator, table smc.TableHandle, log *zap.Logger) *Oracle {
	if log == nil {
		log = zap.NewNop()
	}
	freqMod := freqcmp.Tail
	if !cfg.Oracle.UseFrequencyTailMode {
		freqMod = freqcmp.WholeTrace
	}
	return &Oracle{
		cfg:       cfg,
		emit:      emitter.New(),
		check:     checker.New(cfg.Prism.BinaryPath, cfg.Prism.WorkingDir, logging.Scoped(log, logging.ComponentChecker)),
		sut:       sut,
		prop:      prop,
		table:     table,
		rng:       rand.New(rand.NewSource(1)),
		freqMod:   freqMod,
		log:       logging.Scoped(log, logging.ComponentOracle),
		resetProb: cfg.Oracle.InitialResetProb,
	}
}

// Rounds returns how many times FindCEX has been invoked.
func (o *Oracle) Rounds() int { return o.rounds }

// ResetProb returns the current random-walk reset probability.
func (o *Oracle) ResetProb() float64 { return o.resetProb }

// FindCEX is invoked once per learner round. It never returns an error for
// a recoverable model-checker or SUT-observation fault — those degrade to
// the random-walk path or to a Cex or TableBroken outcome, per the no-raise
// policy. A
// non-nil error here means an unrecoverable infrastructure problem (e.g.
// the filesystem rejected a write).
func (o *Oracle) FindCEX(ctx context.Context, hypothesis *mdp.MDP) (OracleOutcome, error) {
	o.rounds++
	roundID := uuid.New().String()
	log := o.log.With(zap.Int("round", o.rounds), zap.String("round_id", roundID))

	paths := newRoundPaths(o.cfg.OutputDir)
	if err := os.MkdirAll(paths.dir, 0o755); err != nil {
		return nil, fmt.Errorf("oracle: create output dir: %w", err)
	}
	deleteStaleFiles(paths)

	if err := o.emitHypothesis(hypothesis, paths); err != nil {
		return nil, fmt.Errorf("oracle: emit hypothesis: %w", err)
	}

	res, err := o.check.Run(ctx, checker.Paths{
		Model: paths.converted, Props: o.cfg.Prism.PropsPath,
		Adv: paths.adv, Sta: paths.sta, Tra: paths.tra, Lab: paths.lab,
	}, fileExists)
	if err != nil {
		return nil, fmt.Errorf("oracle: invoke model checker: %w", err)
	}

	if o.cfg.Oracle.SaveFilesPerRound {
		o.saveRoundArtifacts(paths, roundID)
	}

	if res.Outcome != checker.Computed {
		log.Debug("model checker did not produce a usable adversary", zap.String("outcome", res.Outcome.String()))
		return o.fallThroughToRandomWalk(hypothesis, log)
	}
	if len(res.Properties) == 0 {
		log.Debug("model checker reported Computed with no property value")
		return o.fallThroughToRandomWalk(hypothesis, log)
	}
	vHyp := res.Properties[0]

	read, err := prismio.New(logging.Scoped(o.log, logging.ComponentPrismIO)).Read(paths.sta, paths.tra, paths.lab, paths.adv)
	if err != nil {
		log.Debug("malformed model checker export", zap.Error(err))
		return o.fallThroughToRandomWalk(hypothesis, log)
	}

	b := bridge.New(read.Adversary, logging.Scoped(o.log, logging.ComponentBridge))
	smcChecker := smc.New(o.sut, b, o.prop, o.table, logging.Scoped(o.log, logging.ComponentSMC))

	if o.cfg.Oracle.OnlyClassicalEqTest {
		return o.fallThroughToRandomWalk(hypothesis, log)
	}

	cex, smcErr, result := smcChecker.Run(vHyp, smc.Config{
		NExec:         o.cfg.SMC.NExec,
		MaxTraceSteps: o.cfg.SMC.MaxTraceSteps,
		ReturnCEX:     true,
	})

	switch {
	case smcErr != nil:
		// Table-breaking trace: abandon the round, let the learner
		// process the new information.
		log.Debug("observation table invariant broken, abandoning round")
		return TableBroken{}, nil
	case cex != nil:
		return Cex{Trace: cex}, nil
	}

	if math.IsNaN(result.PValue) {
		// Boundary case: zero samples leaves the hypothesis test
		// undefined; never crash, just fall through.
		return o.fallThroughToRandomWalk(hypothesis, log)
	}

	if result.PValue < o.cfg.Oracle.StatisticalTestBound {
		if freqCex, found := freqcmp.Compare(o.freqMod, result.ExecSample, result.SatisfiedExecSample, hypothesis, o.cfg.Oracle.FrequencyEpsilon); found {
			return Cex{Trace: freqCex}, nil
		}
	}

	return o.fallThroughToRandomWalk(hypothesis, log)
}

// fallThroughToRandomWalk runs the random-walk equivalence test and applies
// the reset-probability discount on failure, per the reset-probability
// discount rule: each miss biases later rounds toward longer exploration.
func (o *Oracle) fallThroughToRandomWalk(hypothesis *mdp.MDP, log *zap.Logger) (OracleOutcome, error) {
	rw := randomwalk.New(o.sut, o.rng, logging.Scoped(o.log, logging.ComponentRandomWalk))
	cex, found := rw.Run(hypothesis, o.resetProb, o.cfg.Oracle.RandomWalkMaxSteps)
	if !found {
		o.resetProb *= o.cfg.Oracle.ResetProbDiscount
		log.Debug("random walk found no divergence", zap.Float64("reset_prob", o.resetProb))
		return NoProgress{}, nil
	}
	return Cex{Trace: cex}, nil
}

// FinalCheck runs one statistical model checking pass against the
// converged hypothesis's own hypothesis value, returning the resulting
// two-sided test p-value. It is not part of the refinement loop; a learner
// calls it once after convergence as a sanity check.
func (o *Oracle) FinalCheck(ctx context.Context, hypothesis *mdp.MDP) (float64, error) {
	paths := newRoundPaths(filepath.Join(o.cfg.OutputDir, "final"))
	if err := os.MkdirAll(paths.dir, 0o755); err != nil {
		return 0, fmt.Errorf("oracle: create final-check dir: %w", err)
	}
	if err := o.emitHypothesis(hypothesis, paths); err != nil {
		return 0, fmt.Errorf("oracle: emit hypothesis: %w", err)
	}

	res, err := o.check.Run(ctx, checker.Paths{
		Model: paths.converted, Props: o.cfg.Prism.PropsPath,
		Adv: paths.adv, Sta: paths.sta, Tra: paths.tra, Lab: paths.lab,
	}, fileExists)
	if err != nil {
		return 0, fmt.Errorf("oracle: invoke model checker: %w", err)
	}
	if res.Outcome != checker.Computed || len(res.Properties) == 0 {
		return 0, fmt.Errorf("oracle: final check could not compute a hypothesis value (outcome %s)", res.Outcome)
	}
	vHyp := res.Properties[0]

	read, err := prismio.New(logging.Scoped(o.log, logging.ComponentPrismIO)).Read(paths.sta, paths.tra, paths.lab, paths.adv)
	if err != nil {
		return 0, fmt.Errorf("oracle: final check malformed export: %w", err)
	}

	b := bridge.New(read.Adversary, logging.Scoped(o.log, logging.ComponentBridge))
	smcChecker := smc.New(o.sut, b, o.prop, o.table, logging.Scoped(o.log, logging.ComponentSMC))
	_, smcErr, result := smcChecker.Run(vHyp, smc.Config{
		NExec:         o.cfg.SMC.NExec,
		MaxTraceSteps: o.cfg.SMC.MaxTraceSteps,
	})
	if smcErr != nil {
		return 0, fmt.Errorf("oracle: final check: %w", smcErr)
	}
	return result.PValue, nil
}

func (o *Oracle) emitHypothesis(hypothesis *mdp.MDP, paths roundPaths) error {
	base := o.emit.Emit(hypothesis, "mc_exp")
	if err := os.WriteFile(paths.model, []byte(base), 0o644); err != nil {
		return err
	}
	converted := o.emit.AddStepCounter(base, o.cfg.Prism.Horizon)
	return os.WriteFile(paths.converted, []byte(converted), 0o644)
}

// saveRoundArtifacts copies the round's files into
// {output_dir}/rounds/r{N}-{roundID}, skipping any that weren't produced.
func (o *Oracle) saveRoundArtifacts(paths roundPaths, roundID string) {
	dest := filepath.Join(o.cfg.OutputDir, "rounds", fmt.Sprintf("r%d-%s", o.rounds, roundID))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		o.log.Debug("could not create round artifact directory", zap.Error(err))
		return
	}
	for _, src := range paths.all() {
		if !fileExists(src) {
			continue
		}
		if err := copyFile(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			o.log.Debug("could not copy round artifact", zap.String("path", src), zap.Error(err))
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func deleteStaleFiles(paths roundPaths) {
	for _, p := range paths.all() {
		_ = os.Remove(p)
	}
}

var fileExists = func(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
