package framework

import "github.com/rickwporter/gointegration/logging"

// TestLogger receives test progress events. TestStarted fires as soon as a
// case begins executing; TestError fires for each recorded error as it
// happens; TestFinished and TestSkipped fire in schedule order once the
// case's outcome is settled.
type TestLogger interface {
	TestStarted(name string)
	TestError(name string, err error)
	TestFinished(outcome Outcome, debugOutput logging.CapturedOutput)
	TestSkipped(name string, reason string)
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(string) {}

func (n nullTestLogger) TestError(string, error) {}

func (n nullTestLogger) TestFinished(Outcome, logging.CapturedOutput) {}

func (n nullTestLogger) TestSkipped(string, string) {}
