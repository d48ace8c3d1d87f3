package checker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess isn't a real test. It's the subprocess body invoked in
// place of the real model checker binary.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, os.Getenv("MOCK_STDOUT"))
	fmt.Fprint(os.Stderr, os.Getenv("MOCK_STDERR"))
	if os.Getenv("MOCK_EXIT_NONZERO") == "1" {
		os.Exit(1)
	}
	os.Exit(0)
}

func fakeExecCommandContext(env map[string]string) func(ctx context.Context, command string, args ...string) *exec.Cmd {
	return func(ctx context.Context, command string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", command}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		for k, v := range env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return cmd
	}
}

func withFakeExec(t *testing.T, env map[string]string) {
	t.Helper()
	old := execCommandContext
	execCommandContext = fakeExecCommandContext(env)
	t.Cleanup(func() { execCommandContext = old })
}

func alwaysExists(string) bool { return true }
func neverExists(string) bool  { return false }

func TestRunClassifiesComputedWhenResultsAndAdversaryFilePresent(t *testing.T) {
	withFakeExec(t, map[string]string{
		"MOCK_STDOUT": "Result: 0.75\n",
	})
	c := New("prism", "", nil)

	res, err := c.Run(context.Background(), Paths{Model: "m.prism", Props: "p.props", Adv: "adv.tra"}, alwaysExists)
	require.NoError(t, err)

	assert.Equal(t, Computed, res.Outcome)
	assert.Equal(t, []float64{0.75}, res.Properties)
}

func TestRunParsesMultiplePropertiesInOrder(t *testing.T) {
	withFakeExec(t, map[string]string{
		"MOCK_STDOUT": "some banner\nResult: 0.1\nnoise\nResult: 0.9\n",
	})
	c := New("prism", "", nil)

	res, err := c.Run(context.Background(), Paths{Adv: "adv.tra"}, alwaysExists)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.9}, res.Properties)
}

func TestRunClassifiesNoProbabilityWhenNoResultLines(t *testing.T) {
	withFakeExec(t, map[string]string{
		"MOCK_STDOUT": "nothing matched here\n",
	})
	c := New("prism", "", nil)

	res, err := c.Run(context.Background(), Paths{Adv: "adv.tra"}, alwaysExists)
	require.NoError(t, err)
	assert.Equal(t, NoProbability, res.Outcome)
}

func TestRunClassifiesNoAdversaryWhenAdvFileMissing(t *testing.T) {
	withFakeExec(t, map[string]string{
		"MOCK_STDOUT": "Result: 0.5\n",
	})
	c := New("prism", "", nil)

	res, err := c.Run(context.Background(), Paths{Adv: "adv.tra"}, neverExists)
	require.NoError(t, err)
	assert.Equal(t, NoAdversary, res.Outcome)
}

func TestRunClassifiesFailureOnExceptionLine(t *testing.T) {
	withFakeExec(t, map[string]string{
		"MOCK_STDOUT": "Result: 0.5\nException in thread \"main\" java.lang.Foo\n",
	})
	c := New("prism", "", nil)

	res, err := c.Run(context.Background(), Paths{Adv: "adv.tra"}, alwaysExists)
	require.NoError(t, err)
	assert.Equal(t, Failure, res.Outcome)
}

func TestRunClassifiesFailureOnErrorLine(t *testing.T) {
	withFakeExec(t, map[string]string{
		"MOCK_STDOUT": "Error: syntax error in model file\n",
	})
	c := New("prism", "", nil)

	res, err := c.Run(context.Background(), Paths{Adv: "adv.tra"}, alwaysExists)
	require.NoError(t, err)
	assert.Equal(t, Failure, res.Outcome)
}

func TestRunClassifiesFailureOnNonzeroExitWithNoResults(t *testing.T) {
	withFakeExec(t, map[string]string{
		"MOCK_STDOUT":       "",
		"MOCK_EXIT_NONZERO": "1",
	})
	c := New("prism", "", nil)

	res, err := c.Run(context.Background(), Paths{Adv: "adv.tra"}, alwaysExists)
	require.NoError(t, err)
	assert.Equal(t, Failure, res.Outcome)
}

func TestRunClassifiesFailureWhenBinaryCannotBeLaunched(t *testing.T) {
	c := New("/nonexistent/path/not-a-real-prism-binary", "", nil)

	res, err := c.Run(context.Background(), Paths{Adv: "adv.tra"}, alwaysExists)
	require.NoError(t, err)
	assert.Equal(t, Failure, res.Outcome)
}

func TestOutcomeStringIsStable(t *testing.T) {
	assert.Equal(t, "computed", Computed.String())
	assert.Equal(t, "no_probability", NoProbability.String())
	assert.Equal(t, "no_adversary", NoAdversary.String())
	assert.Equal(t, "failure", Failure.String())
}

func TestRunBuildsExportFlagsInOrder(t *testing.T) {
	var captured []string
	old := execCommandContext
	execCommandContext = func(ctx context.Context, command string, args ...string) *exec.Cmd {
		captured = args
		return fakeExecCommandContext(map[string]string{"MOCK_STDOUT": "Result: 1.0\n"})(ctx, command, args...)
	}
	t.Cleanup(func() { execCommandContext = old })

	c := New("prism", "", nil)
	_, err := c.Run(context.Background(), Paths{
		Model: "m.prism", Props: "p.props",
		Adv: "a.tra", Sta: "s.sta", Tra: "t.tra", Lab: "l.lab",
	}, alwaysExists)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"-exportadvmdp", "a.tra",
		"-exportstates", "s.sta",
		"-exporttrans", "t.tra",
		"-exportlabels", "l.lab",
		"m.prism", "p.props",
	}, captured)
	assert.True(t, strings.HasSuffix(captured[len(captured)-2], "m.prism"))
}
