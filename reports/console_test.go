package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/rickwporter/gointegration/framework"
	"github.com/rickwporter/gointegration/logging"
)

func init() {
	color.NoColor = true
}

func sampleReport() *framework.RunReport {
	return &framework.RunReport{
		RunID:      "run-1",
		JobID:      "job-1",
		ScratchDir: "/tmp/run-job-1",
		Outcomes: []framework.Outcome{
			{Name: "petstore/add pet", Status: framework.StatusPassed,
				Duration: framework.Duration(120 * time.Millisecond)},
			{Name: "petstore/get pet", Status: framework.StatusFailed,
				Detail:   "assertion failed: wrong name",
				Duration: framework.Duration(80 * time.Millisecond),
				Artifacts: []framework.Artifact{
					{Name: "debug.log", Path: "/tmp/run-job-1/petstore-get-pet_debug.log"},
				}},
			{Name: "petstore/list pets", Status: framework.StatusSkipped, Detail: "known issue: #42"},
		},
		Totals: framework.Totals{Passed: 1, Failed: 1, Skipped: 1},
	}
}

func TestConsoleReporterEvents(t *testing.T) {
	var buf bytes.Buffer
	c := &ConsoleReporter{Output: &buf}

	c.TestStarted("petstore/add pet")
	assert.Equal(t, "[petstore/add pet]\n", buf.String())

	buf.Reset()
	c.TestError("petstore/add pet", assert.AnError)
	assert.Equal(t, "  "+assert.AnError.Error()+"\n", buf.String())

	buf.Reset()
	c.TestFinished(framework.Outcome{Name: "x", Status: framework.StatusFailed}, nil)
	assert.Equal(t, "  FAILED: x\n", buf.String())

	buf.Reset()
	c.TestFinished(framework.Outcome{Name: "x", Status: framework.StatusErrored,
		Annotations: []framework.Annotation{
			{Kind: framework.AnnotationTeardownError, Message: "cleanup of db failed: gone"},
		}}, nil)
	assert.Equal(t, "  ERRORED: x\n  NOTE (teardown-error): cleanup of db failed: gone\n", buf.String())

	buf.Reset()
	c.TestFinished(framework.Outcome{Name: "x", Status: framework.StatusPassed}, nil)
	assert.Equal(t, "", buf.String())

	buf.Reset()
	c.TestSkipped("y", "")
	c.TestSkipped("y", "no backend")
	assert.Equal(t, "  SKIPPED: y\n  SKIPPED: y (no backend)\n", buf.String())
}

func TestConsoleReporterQuietMode(t *testing.T) {
	var buf bytes.Buffer
	c := &ConsoleReporter{Output: &buf, Quiet: true}

	c.TestStarted("petstore/add pet")
	c.TestSkipped("petstore/list pets", "known issue")
	c.TestFinished(framework.Outcome{Name: "x", Status: framework.StatusPassed}, nil)
	assert.Equal(t, "", buf.String())

	c.TestFinished(framework.Outcome{Name: "x", Status: framework.StatusFailed}, nil)
	assert.Equal(t, "  FAILED: x\n", buf.String())
}

func TestConsoleReporterMultiLineErrorsAreIndented(t *testing.T) {
	var buf bytes.Buffer
	c := &ConsoleReporter{Output: &buf}

	c.TestError("x", assert.AnError)
	buf.Reset()
	c.TestError("x", errTwoLines{})
	assert.Equal(t, "  first\n  second\n", buf.String())
}

type errTwoLines struct{}

func (errTwoLines) Error() string { return "first\nsecond" }

func TestConsoleReporterDebugOutputToggles(t *testing.T) {
	output := logging.CapturedOutput{{Time: time.Now(), Message: "probing"}}

	var buf bytes.Buffer
	c := &ConsoleReporter{Output: &buf}
	c.TestFinished(framework.Outcome{Name: "x", Status: framework.StatusFailed}, output)
	assert.NotContains(t, buf.String(), "DEBUG")

	buf.Reset()
	c.DebugOutputOnFailure = true
	c.TestFinished(framework.Outcome{Name: "x", Status: framework.StatusFailed}, output)
	assert.Contains(t, buf.String(), "    DEBUG ")
	assert.Contains(t, buf.String(), "probing")

	buf.Reset()
	c.TestFinished(framework.Outcome{Name: "x", Status: framework.StatusPassed}, output)
	assert.NotContains(t, buf.String(), "DEBUG")

	buf.Reset()
	c.DebugOutputOnSuccess = true
	c.TestFinished(framework.Outcome{Name: "x", Status: framework.StatusPassed}, output)
	assert.Contains(t, buf.String(), "probing")
}

func TestConsoleReporterSummary(t *testing.T) {
	var buf bytes.Buffer
	c := &ConsoleReporter{Output: &buf}

	c.Summary(sampleReport())
	text := buf.String()
	assert.Contains(t, text, "Ran 3 test(s)")
	assert.Contains(t, text, "passed: 1")
	assert.Contains(t, text, "failed: 1")
	assert.Contains(t, text, "skipped: 1")
	assert.NotContains(t, text, "errored:")
	assert.Contains(t, text, "FAILED: petstore/get pet")
	assert.Contains(t, text, "  assertion failed: wrong name")
	assert.Contains(t, text, "artifact: /tmp/run-job-1/petstore-get-pet_debug.log")
	assert.Contains(t, text, "Run files are under /tmp/run-job-1")
}
