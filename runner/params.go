package runner

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/rickwporter/gointegration/framework"
)

type commandParams struct {
	configPath     string
	mode           string
	maxWorkers     int
	capture        string
	perTestTimeout time.Duration
	failFast       bool
	knownIssues    bool
	jobID          string
	outputDir      string
	jsonReport     string
	junitReport    string
	list           bool
	filters        framework.RegexFilters
	debug          bool
	debugAll       bool
	quiet          bool
	noColor        bool
	sweep          bool

	explicit map[string]bool
}

func (c *commandParams) Read(args []string, errOut io.Writer) bool {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&c.configPath, "config", "", "path to a YAML configuration file")
	fs.StringVar(&c.mode, "mode", "", "run mode: sequential or parallel")
	fs.IntVar(&c.maxWorkers, "max-workers", 0, "worker pool size in parallel mode")
	fs.StringVar(&c.capture, "capture", "", "capture strategy: on-failure, always, or none")
	fs.DurationVar(&c.perTestTimeout, "timeout", 0, "time limit per test (0 means none)")
	fs.BoolVar(&c.failFast, "fail-fast", false, "skip remaining tests after the first failure")
	fs.BoolVar(&c.knownIssues, "known-issues", false, "run tests marked as known issues instead of skipping them")
	fs.StringVar(&c.jobID, "job-id", "", "identifier qualifying external resource names")
	fs.StringVar(&c.outputDir, "output-dir", "", "directory for the run's scratch space and artifacts")
	fs.StringVar(&c.jsonReport, "json-report", "", "write a JSON report to this path")
	fs.StringVar(&c.junitReport, "junit-report", "", "write a JUnit XML report to this path")
	fs.BoolVar(&c.list, "list", false, "list the tests that would run, then exit")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.BoolVar(&c.quiet, "quiet", false, "only print failures and the summary")
	fs.BoolVar(&c.noColor, "no-color", false, "disable colored output")
	fs.BoolVar(&c.sweep, "sweep", false, "remove leftover docker containers after the run")

	if err := fs.Parse(args[1:]); err != nil {
		return false
	}
	if len(fs.Args()) > 0 {
		fmt.Fprintf(errOut, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return false
	}

	c.explicit = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { c.explicit[f.Name] = true })
	return true
}

// applyTo lays explicitly set flags over the configuration, which may have
// come from a file.
func (c *commandParams) applyTo(cfg *framework.RunConfig, reports *ReportsConfig) {
	if c.explicit["mode"] {
		cfg.Mode = framework.Mode(c.mode)
	}
	if c.explicit["max-workers"] {
		cfg.MaxWorkers = c.maxWorkers
	}
	if c.explicit["capture"] {
		cfg.CaptureStrategy = framework.CaptureStrategy(c.capture)
	}
	if c.explicit["timeout"] {
		cfg.PerTestTimeout = framework.Duration(c.perTestTimeout)
	}
	if c.explicit["fail-fast"] {
		cfg.FailFast = c.failFast
	}
	if c.explicit["known-issues"] {
		cfg.IncludeKnownIssues = c.knownIssues
	}
	if c.explicit["job-id"] {
		cfg.JobID = c.jobID
	}
	if c.explicit["output-dir"] {
		cfg.OutputDir = c.outputDir
	}
	if c.explicit["json-report"] {
		reports.JSON = c.jsonReport
	}
	if c.explicit["junit-report"] {
		reports.JUnit = c.junitReport
	}
}
