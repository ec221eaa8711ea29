// Package runner is the command line entry point: it reads flags and an
// optional config file, runs the suite, prints the results, and maps the
// outcome to a process exit code.
package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/rickwporter/gointegration/framework"
	"github.com/rickwporter/gointegration/logging"
	"github.com/rickwporter/gointegration/reports"
	"github.com/rickwporter/gointegration/resource"
)

// Process exit codes. CI scripts distinguish "tests failed" from "the run
// itself broke".
const (
	ExitOK          = 0
	ExitTestsFailed = 1
	ExitUsage       = 2
	ExitNoTests     = 3
	ExitFatal       = 4
)

// Main runs the suite with the given command line arguments and returns the
// process exit code. A typical main function is one line:
//
//	os.Exit(runner.Main(os.Args, mysuite.Cases()))
func Main(args []string, source framework.CaseSource) int {
	return run(args, source, os.Stdout, os.Stderr)
}

func run(args []string, source framework.CaseSource, out, errOut io.Writer) int {
	var params commandParams
	if !params.Read(args, errOut) {
		return ExitUsage
	}
	if params.noColor {
		color.NoColor = true
	}

	cfg := framework.RunConfig{}
	reportsCfg := ReportsConfig{}
	if params.configPath != "" {
		fc, err := LoadFileConfig(params.configPath)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return ExitUsage
		}
		cfg = fc.RunConfig
		reportsCfg = fc.Reports
	}
	params.applyTo(&cfg, &reportsCfg)

	if params.list {
		return listCases(out, errOut, source, params.filters.AsFilter)
	}

	var debugLogger logging.Logger
	if params.debugAll {
		debugLogger = log.New(out, "", log.LstdFlags)
	}

	console := &reports.ConsoleReporter{
		Output:               out,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
		Quiet:                params.quiet,
	}

	orchestrator, err := framework.NewOrchestrator(cfg, framework.Options{
		TestLogger: console,
		Filter:     params.filters.AsFilter,
		Logger:     debugLogger,
	})
	if err != nil {
		fmt.Fprintf(errOut, "invalid configuration: %s\n", err)
		return ExitUsage
	}
	rc := orchestrator.RunContext()

	if params.sweep {
		defer func() {
			if err := resource.SweepContainers(context.Background(), rc.Logger, rc.RunID); err != nil {
				fmt.Fprintf(errOut, "container sweep: %s\n", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !params.quiet {
		describeFilters(out, params.filters)
		fmt.Fprintln(out, "Running test suite")
	}

	report, err := orchestrator.Run(ctx, source)
	if err != nil {
		fmt.Fprintf(errOut, "%s\n", err)
		return ExitFatal
	}
	if len(report.Outcomes) == 0 {
		fmt.Fprintln(errOut, "no tests were run")
		return ExitNoTests
	}

	console.Summary(report)
	writeReports(errOut, report, reportsCfg)

	if !report.OK() {
		return ExitTestsFailed
	}
	return ExitOK
}

func listCases(out, errOut io.Writer, source framework.CaseSource, filter framework.Filter) int {
	n := 0
	for {
		adapter, ok := source.Next()
		if !ok {
			break
		}
		if adapter == nil || !filter(adapter.Name()) {
			continue
		}
		fmt.Fprintln(out, adapter.Name())
		n++
	}
	if n == 0 {
		fmt.Fprintln(errOut, "no tests matched the filters")
		return ExitNoTests
	}
	return ExitOK
}

func describeFilters(out io.Writer, filters framework.RegexFilters) {
	if !filters.IsDefined() {
		return
	}
	fmt.Fprintln(out, "Some tests will be skipped based on the filter criteria for this test run:")
	if filters.MustMatch.IsDefined() {
		fmt.Fprintf(out, "  skip any tests that do not match %s\n", filters.MustMatch.String())
	}
	if filters.MustNotMatch.IsDefined() {
		fmt.Fprintf(out, "  skip any tests that match %s\n", filters.MustNotMatch.String())
	}
}

// writeReports persists the configured report files. A report that cannot
// be written is printed to errOut but does not change the exit code.
func writeReports(errOut io.Writer, report *framework.RunReport, cfg ReportsConfig) {
	if cfg.JSON != "" {
		if err := reports.WriteJSONFile(report, cfg.JSON); err != nil {
			fmt.Fprintln(errOut, err)
		}
	}
	if cfg.JUnit != "" {
		if err := reports.WriteJUnitFile(report, cfg.JUnit); err != nil {
			fmt.Fprintln(errOut, err)
		}
	}
}
