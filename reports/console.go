package reports

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/rickwporter/gointegration/framework"
	"github.com/rickwporter/gointegration/logging"
)

var (
	passColor  = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed)
	errorColor = color.New(color.FgMagenta)
	skipColor  = color.New(color.FgYellow)
)

// ConsoleReporter prints test progress as it happens and a summary at the
// end. It implements framework.TestLogger.
type ConsoleReporter struct {
	// Output defaults to os.Stdout.
	Output               io.Writer
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
	// Quiet drops the per-case start and skip lines, leaving only failures
	// and the summary.
	Quiet bool
}

func (c *ConsoleReporter) out() io.Writer {
	if c.Output == nil {
		return os.Stdout
	}
	return c.Output
}

func (c *ConsoleReporter) TestStarted(name string) {
	if c.Quiet {
		return
	}
	fmt.Fprintf(c.out(), "[%s]\n", name)
}

func (c *ConsoleReporter) TestError(name string, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(c.out(), "  %s\n", line)
	}
}

func (c *ConsoleReporter) TestFinished(outcome framework.Outcome, debugOutput logging.CapturedOutput) {
	w := c.out()
	switch outcome.Status {
	case framework.StatusFailed:
		failColor.Fprintf(w, "  FAILED: %s\n", outcome.Name)
	case framework.StatusErrored:
		errorColor.Fprintf(w, "  ERRORED: %s\n", outcome.Name)
	}
	for _, a := range outcome.Annotations {
		fmt.Fprintf(w, "  NOTE (%s): %s\n", a.Kind, a.Message)
	}
	failed := outcome.IsFailure()
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		debugOutput.Dump(w, "    DEBUG ")
	}
}

func (c *ConsoleReporter) TestSkipped(name string, reason string) {
	if c.Quiet {
		return
	}
	if reason == "" {
		skipColor.Fprintf(c.out(), "  SKIPPED: %s\n", name)
	} else {
		skipColor.Fprintf(c.out(), "  SKIPPED: %s (%s)\n", name, reason)
	}
}

// Summary prints the totals, a recap of every failure with its artifacts,
// and where the run's files ended up.
func (c *ConsoleReporter) Summary(report *framework.RunReport) {
	w := c.out()
	t := report.Totals
	total := t.Passed + t.Failed + t.Errored + t.Skipped

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Ran %d test(s) in %s\n", total, report.Duration().Round(time.Millisecond))
	passColor.Fprintf(w, "  passed: %d\n", t.Passed)
	if t.Failed > 0 {
		failColor.Fprintf(w, "  failed: %d\n", t.Failed)
	}
	if t.Errored > 0 {
		errorColor.Fprintf(w, "  errored: %d\n", t.Errored)
	}
	if t.Skipped > 0 {
		skipColor.Fprintf(w, "  skipped: %d\n", t.Skipped)
	}

	failures := report.Failures()
	if len(failures) > 0 {
		fmt.Fprintln(w)
		for _, outcome := range failures {
			headline := failColor
			if outcome.Status == framework.StatusErrored {
				headline = errorColor
			}
			headline.Fprintf(w, "%s: %s\n", strings.ToUpper(string(outcome.Status)), outcome.Name)
			if outcome.Detail != "" {
				for _, line := range strings.Split(outcome.Detail, "\n") {
					fmt.Fprintf(w, "  %s\n", line)
				}
			}
			for _, a := range outcome.Artifacts {
				if a.Path != "" {
					fmt.Fprintf(w, "  artifact: %s\n", a.Path)
				}
			}
		}
	}

	if report.ScratchDir != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Run files are under %s\n", report.ScratchDir)
	}
}
