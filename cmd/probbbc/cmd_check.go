package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/satos-jp/probbbc/internal/oracle"
	"github.com/satos-jp/probbbc/internal/propeval"
	"github.com/satos-jp/probbbc/internal/smc"
	"github.com/satos-jp/probbbc/internal/sul"
)

// checkCmd runs FinalCheck against the same built-in demo hypothesis run
// uses, as a convergence sanity check a learner would run once after its
// last accepted round.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "run a single final statistical check against the demo hypothesis",
	RunE:  runFinalCheck,
}

func runFinalCheck(cmd *cobra.Command, args []string) error {
	hypothesis := demoHypothesis()
	demoSUT := sul.NewMDPSUL(hypothesis, rand.New(rand.NewSource(1)))
	prop := propeval.NewBoundedReachability([]string{"tails"}, cfg.SMC.MaxTraceSteps)

	o := oracle.New(cfg, demoSUT, prop, smc.NopTable{}, logger)

	pValue, err := o.FinalCheck(cmd.Context(), hypothesis)
	if err != nil {
		return fmt.Errorf("final check: %w", err)
	}
	fmt.Printf("final check p-value: %.6f\n", pValue)
	return nil
}
