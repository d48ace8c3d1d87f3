package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satos-jp/probbbc/internal/mdp"
	"github.com/satos-jp/probbbc/internal/oracle"
	"github.com/satos-jp/probbbc/internal/propeval"
	"github.com/satos-jp/probbbc/internal/smc"
	"github.com/satos-jp/probbbc/internal/sul"
)

var runRounds int

// runCmd executes N rounds of find_cex against the in-memory demo SUT and
// hypothesis, for smoke-testing the oracle without a learner or PRISM
// installed.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the refinement oracle against the built-in demo system",
	Long: `run drives find_cex for --rounds iterations against a small built-in
coin-flip MDP, standing in for both the learner's current hypothesis and the
system under test. It requires no PRISM installation: the demo hypothesis and
SUT already agree, so a round's random walk exhausts its step budget without
a divergence, the round reports no progress, and the random-walk reset
probability is discounted.`,
	RunE: runDemo,
}

func init() {
	runCmd.Flags().IntVar(&runRounds, "rounds", 5, "number of find_cex rounds to run")
}

func demoHypothesis() *mdp.MDP {
	m := mdp.New(0)
	m.SetLabel(0, "____start")
	m.SetLabel(1, "heads")
	m.SetLabel(2, "tails")
	_ = m.SetTransition(0, "flip", []mdp.Successor{
		{State: 1, Prob: 0.5},
		{State: 2, Prob: 0.5},
	})
	_ = m.SetTransition(1, "flip", []mdp.Successor{
		{State: 1, Prob: 0.5},
		{State: 2, Prob: 0.5},
	})
	_ = m.SetTransition(2, "flip", []mdp.Successor{
		{State: 1, Prob: 0.5},
		{State: 2, Prob: 0.5},
	})
	return m
}

func runDemo(cmd *cobra.Command, args []string) error {
	hypothesis := demoHypothesis()
	demoSUT := sul.NewMDPSUL(hypothesis, rand.New(rand.NewSource(1)))
	prop := propeval.NewBoundedReachability([]string{"tails"}, cfg.SMC.MaxTraceSteps)

	o := oracle.New(cfg, demoSUT, prop, smc.NopTable{}, logger)

	for round := 1; round <= runRounds; round++ {
		outcome, err := o.FindCEX(cmd.Context(), hypothesis)
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		switch v := outcome.(type) {
		case oracle.Cex:
			logger.Info("counterexample found", zap.Int("round", round), zap.Int("trace_length", len(v.Trace)))
			fmt.Printf("round %d: counterexample of length %d\n", round, len(v.Trace))
		case oracle.TableBroken:
			logger.Info("round abandoned: observation table invariant broken", zap.Int("round", round))
			fmt.Printf("round %d: table broken\n", round)
		case oracle.NoProgress:
			fmt.Printf("round %d: no progress (reset_prob=%.4f)\n", round, o.ResetProb())
		}
	}
	return nil
}
