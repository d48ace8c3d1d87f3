// Package main implements the probbbc CLI: drives the refinement oracle
// against a built-in demo hypothesis and system under test, either for a
// number of find_cex rounds (run) or for one final statistical check
// (check).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satos-jp/probbbc/internal/config"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "probbbc",
	Short: "probabilistic black-box conformance oracle",
	Long: `probbbc drives a statistical equivalence test between a learned MDP
hypothesis and a system under test, backed by an external probabilistic
model checker for computing exact reachability bounds on the hypothesis.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Debug {
			logger, _ = zap.NewDevelopmentConfig().Build()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "probbbc.yaml", "path to the YAML config file")

	rootCmd.AddCommand(runCmd, checkCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
