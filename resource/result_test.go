package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickwporter/gointegration/framework"
)

// runSingleCase pushes one case through a real orchestrator so tests can
// exercise helpers that need a live test context.
func runSingleCase(t *testing.T, c *framework.Case) framework.Outcome {
	o, err := framework.NewOrchestrator(framework.RunConfig{OutputDir: t.TempDir()}, framework.Options{})
	require.NoError(t, err)
	report, err := o.Run(context.Background(), framework.NewCaseList(c))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	return report.Outcomes[0]
}

func TestResultOK(t *testing.T) {
	assert.True(t, Result{ExitCode: 0}.OK())
	assert.False(t, Result{ExitCode: 2}.OK())
}

func TestResultContains(t *testing.T) {
	r := Result{Stdout: "all pets accounted for", Stderr: "warning: slow"}
	assert.True(t, r.Contains("pets"))
	assert.True(t, r.Contains("slow"))
	assert.False(t, r.Contains("missing"))
}

func TestResultTranscript(t *testing.T) {
	r := Result{
		Command:  "inventory --check",
		ExitCode: 3,
		Stdout:   "checking...\n",
		Stderr:   "not found",
		Duration: 2 * time.Second,
	}
	expected := transcriptSeparator + " Command: inventory --check\n" +
		"Return: 3\n" +
		"Time: 2s\n" +
		"checking...\n" +
		"not found\n" +
		"\n"
	assert.Equal(t, expected, r.Transcript())
}

func TestResultTranscriptOmitsEmptySections(t *testing.T) {
	r := Result{Command: "true", ExitCode: 0}
	expected := transcriptSeparator + " Command: true\n" +
		"Return: 0\n" +
		"\n"
	assert.Equal(t, expected, r.Transcript())
}

func TestResultArtifact(t *testing.T) {
	a := Result{Command: "ls", ExitCode: 0}.Artifact("listing.txt")
	assert.Equal(t, "listing.txt", a.Name)
	assert.Equal(t, "text/plain", a.ContentType)
	assert.Contains(t, string(a.Data), "Command: ls")
}

func TestRequireSuccessPassesQuietZeroExit(t *testing.T) {
	outcome := runSingleCase(t, &framework.Case{
		Name: "quiet success",
		Body: func(ft *framework.T) error {
			Result{Command: "true", ExitCode: 0}.RequireSuccess(ft)
			return nil
		},
	})
	assert.Equal(t, framework.StatusPassed, outcome.Status)
}

func TestRequireSuccessFailsOnStderr(t *testing.T) {
	outcome := runSingleCase(t, &framework.Case{
		Name: "noisy success",
		Body: func(ft *framework.T) error {
			Result{Command: "check", ExitCode: 0, Stderr: "cannot reach host\n"}.RequireSuccess(ft)
			return nil
		},
	})
	assert.Equal(t, framework.StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Detail, "wrote to stderr")
	assert.Contains(t, outcome.Detail, "cannot reach host")
}

func TestRequireSuccessFailsOnNonzeroExit(t *testing.T) {
	outcome := runSingleCase(t, &framework.Case{
		Name: "bad exit",
		Body: func(ft *framework.T) error {
			Result{Command: "check", ExitCode: 7}.RequireSuccess(ft)
			return nil
		},
	})
	assert.Equal(t, framework.StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Detail, "exited with status 7")
}
