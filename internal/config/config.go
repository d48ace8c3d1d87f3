// Package config loads probbbc's YAML configuration: the model checker
// binary location, the refinement oracle's thresholds, and the statistical
// model checker's per-round execution budget.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// PrismConfig locates the external model-checker binary, its working
// directory, and the property file checked against every emitted model.
type PrismConfig struct {
	BinaryPath string `yaml:"binary_path"`
	WorkingDir string `yaml:"working_dir"`
	PropsPath  string `yaml:"props_path"`
	Horizon    int    `yaml:"horizon"`
}

// OracleConfig holds the refinement oracle's tunables.
type OracleConfig struct {
	StatisticalTestBound  float64 `yaml:"statistical_test_bound"`
	FrequencyEpsilon      float64 `yaml:"frequency_epsilon"`
	InitialResetProb      float64 `yaml:"initial_reset_prob"`
	ResetProbDiscount     float64 `yaml:"reset_prob_discount"`
	OnlyClassicalEqTest   bool    `yaml:"only_classical_eq_test"`
	SaveFilesPerRound     bool    `yaml:"save_files_per_round"`
	UseFrequencyTailMode  bool    `yaml:"use_frequency_tail_mode"`
	RandomWalkMaxSteps    int     `yaml:"random_walk_max_steps"`
}

// SMCConfig holds the statistical model checker's per-round budget.
type SMCConfig struct {
	NExec        int `yaml:"n_exec"`
	MaxTraceSteps int `yaml:"max_trace_steps"`
}

// Config is probbbc's top-level configuration.
type Config struct {
	Prism     PrismConfig  `yaml:"prism"`
	Oracle    OracleConfig `yaml:"oracle"`
	SMC       SMCConfig    `yaml:"smc"`
	OutputDir string       `yaml:"output_dir"`
	Debug     bool         `yaml:"debug"`
}

// DefaultConfig returns the configuration used when no file is present,
// matching original_source's ProbBBReachOracle defaults.
func DefaultConfig() *Config {
	return &Config{
		Prism: PrismConfig{
			BinaryPath: "prism",
			WorkingDir: ".",
			PropsPath:  "model.props",
			Horizon:    50,
		},
		Oracle: OracleConfig{
			StatisticalTestBound: 0.025,
			FrequencyEpsilon:     0.025,
			InitialResetProb:     0.25,
			ResetProbDiscount:    0.90,
			OnlyClassicalEqTest:  false,
			SaveFilesPerRound:    false,
			UseFrequencyTailMode: true,
			RandomWalkMaxSteps:   5000,
		},
		SMC: SMCConfig{
			NExec:         5000,
			MaxTraceSteps: 1000,
		},
		OutputDir: "results",
	}
}

// Load reads config from path, overlaying it on DefaultConfig and then
// applying environment overrides. A missing file is not an error: defaults
// (plus env overrides) are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies PROBBBC_* environment variables over the loaded
// config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PROBBBC_PRISM_PATH"); v != "" {
		c.Prism.BinaryPath = v
	}
	if v := os.Getenv("PROBBBC_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("PROBBBC_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
}
