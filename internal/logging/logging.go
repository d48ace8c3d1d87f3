// Package logging builds the zap loggers shared across the refinement loop.
// Each component gets one named, scoped logger built once at startup and
// injected into its constructor, rather than a package-global.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component names each named logger is scoped under.
const (
	ComponentOracle     = "oracle"
	ComponentChecker    = "checker"
	ComponentSMC        = "smc"
	ComponentBridge     = "bridge"
	ComponentPrismIO    = "prismio"
	ComponentEmitter    = "emitter"
	ComponentFreqCmp    = "freqcmp"
	ComponentRandomWalk = "randomwalk"
)

// New builds a production zap.Logger, or a debug-level one when debug is
// true.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// Scoped returns a child logger named after component.
func Scoped(root *zap.Logger, component string) *zap.Logger {
	return root.Named(component)
}
