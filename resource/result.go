package resource

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickwporter/gointegration/framework"
)

// transcriptSeparator marks the start of each command block in debug output.
const transcriptSeparator = "**************************"

// Result is the outcome of running one command: what ran, how it exited,
// and everything it printed.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// OK reports whether the command exited with status zero.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Contains reports whether text appears on either output stream.
func (r Result) Contains(text string) bool {
	return strings.Contains(r.Stdout, text) || strings.Contains(r.Stderr, text)
}

// Transcript renders the result as a block suitable for debug logs and
// artifacts.
func (r Result) Transcript() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Command: %s\n", transcriptSeparator, r.Command)
	fmt.Fprintf(&sb, "Return: %d\n", r.ExitCode)
	if r.Duration > 0 {
		fmt.Fprintf(&sb, "Time: %s\n", r.Duration)
	}
	if r.Stdout != "" {
		sb.WriteString(strings.TrimRight(r.Stdout, "\n"))
		sb.WriteString("\n")
	}
	if r.Stderr != "" {
		sb.WriteString(strings.TrimRight(r.Stderr, "\n"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

// Artifact packages the transcript for a test report.
func (r Result) Artifact(name string) framework.Artifact {
	return framework.TextArtifact(name, r.Transcript())
}

// RequireSuccess fails the test unless the command succeeded quietly.
// Stderr is checked before the exit code because it usually names the
// actual problem.
func (r Result) RequireSuccess(t *framework.T) {
	if r.Stderr != "" {
		t.Errorf("command %s wrote to stderr: %s", r.Command, strings.TrimSpace(r.Stderr))
	}
	if r.ExitCode != 0 {
		t.Errorf("command %s exited with status %d", r.Command, r.ExitCode)
	}
	if r.Stderr != "" || r.ExitCode != 0 {
		t.FailNow()
	}
}
