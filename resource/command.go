package resource

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/pkg/errors"

	"github.com/rickwporter/gointegration/framework"
	"github.com/rickwporter/gointegration/logging"
)

// Command runs a program in the foreground and collects its output. For a
// program that should keep running across test steps, use ProcessSpec.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env entries are appended to the current environment.
	Env    []string
	Logger logging.Logger
}

// QuoteCommand renders an argv as a copy-pasteable shell string.
func QuoteCommand(path string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellescape.Quote(path))
	for _, a := range args {
		parts = append(parts, shellescape.Quote(a))
	}
	return strings.Join(parts, " ")
}

// Run executes the command and waits for it. A nonzero exit status is
// reported in the Result, not as an error; the error return is for commands
// that could not run at all.
func (c Command) Run(ctx context.Context) (Result, error) {
	quoted := QuoteCommand(c.Path, c.Args...)
	if c.Logger != nil {
		c.Logger.Printf("running: %s", quoted)
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Command:  quoted,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			return result, errors.Wrapf(err, "could not run %s", c.Path)
		}
	}
	return result, nil
}

// RunForTest executes the command with its transcript going to the test's
// debug output. Failure to start the command fails the test immediately; a
// nonzero exit does not, so callers can assert on the Result themselves.
func (c Command) RunForTest(t *framework.T) Result {
	cmd := c
	if cmd.Logger == nil {
		cmd.Logger = t.DebugLogger()
	}
	result, err := cmd.Run(t.Context())
	t.Debug("%s", strings.TrimRight(result.Transcript(), "\n"))
	if err != nil {
		t.Errorf("%s", err)
		t.FailNow()
	}
	return result
}
