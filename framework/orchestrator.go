package framework

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rickwporter/gointegration/logging"
)

// phase names the steps of one case's lifecycle, in order. Every case moves
// from pending to done; capturing only happens when the configured strategy
// asks for it.
type phase int

const (
	phasePending phase = iota
	phaseAcquiring
	phaseExecuting
	phaseCapturing
	phaseReleasing
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phasePending:
		return "pending"
	case phaseAcquiring:
		return "acquiring"
	case phaseExecuting:
		return "executing"
	case phaseCapturing:
		return "capturing"
	case phaseReleasing:
		return "releasing"
	case phaseDone:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Options are the injectable collaborators of an Orchestrator. Every field
// may be left nil.
type Options struct {
	// Sink collects diagnostic artifacts for completed cases. Defaults to
	// DefaultCaptureSink.
	Sink CaptureSink
	// TestLogger receives progress events as the run proceeds. Defaults to a
	// silent logger.
	TestLogger TestLogger
	// Filter drops cases from the schedule. A dropped case is announced as
	// skipped but gets no outcome in the report.
	Filter Filter
	// Logger receives the orchestrator's own debug output, including phase
	// transitions. Defaults to no output.
	Logger logging.Logger
}

// Orchestrator runs a schedule of test cases under one RunConfig: it
// acquires each case's resources, executes the body, captures diagnostics
// according to the configured strategy, and guarantees that everything
// acquired is released. One Orchestrator performs one run.
type Orchestrator struct {
	rc         *RunContext
	cfg        RunConfig
	sink       CaptureSink
	testLogger TestLogger
	filter     Filter
	logger     logging.Logger

	anyFailed atomic.Bool
	fatalMu   sync.Mutex
	fatalErr  error
}

func NewOrchestrator(config RunConfig, opts Options) (*Orchestrator, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NullLogger()
	}
	rc, err := newRunContext(config, logger)
	if err != nil {
		return nil, err
	}
	sink := opts.Sink
	if sink == nil {
		sink = DefaultCaptureSink()
	}
	testLogger := opts.TestLogger
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	return &Orchestrator{
		rc:         rc,
		cfg:        config,
		sink:       sink,
		testLogger: testLogger,
		filter:     opts.Filter,
		logger:     logger,
	}, nil
}

// RunContext exposes the run-scoped identity and scratch directory.
func (o *Orchestrator) RunContext() *RunContext {
	return o.rc
}

// Run drains the source into a schedule and executes it. Cancelling ctx does
// not interrupt cases that have started; cases that have not started are
// recorded as skipped. The returned error is always a RunFatalError, and it
// means the run itself broke and no report could be produced. Test failures
// are never an error here; they are in the report.
func (o *Orchestrator) Run(ctx context.Context, source CaseSource) (report *RunReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = &RunFatalError{Err: fmt.Errorf("panic in orchestrator: %+v\n%s", r, string(debug.Stack()))}
		}
	}()

	schedule, scheduleErr := o.buildSchedule(source)
	if scheduleErr != nil {
		return nil, &RunFatalError{Err: scheduleErr}
	}
	o.logger.Printf("run %s: %d cases scheduled in %s mode", o.rc.RunID, len(schedule), o.cfg.Mode)

	builder := NewReportBuilder(o.rc, len(schedule))
	if o.cfg.Mode == ModeParallel {
		o.runParallel(ctx, schedule, builder)
	} else {
		o.runSequential(ctx, schedule, builder)
	}

	if fatal := o.fatal(); fatal != nil {
		return nil, &RunFatalError{Err: fatal}
	}
	report, finalizeErr := builder.Finalize()
	if finalizeErr != nil {
		return nil, &RunFatalError{Err: finalizeErr}
	}
	return report, nil
}

type scheduledCase struct {
	index   int
	adapter CaseAdapter
}

func (o *Orchestrator) buildSchedule(source CaseSource) ([]scheduledCase, error) {
	var schedule []scheduledCase
	seen := make(map[string]bool)
	for {
		adapter, ok := source.Next()
		if !ok {
			break
		}
		if adapter == nil {
			return nil, errors.New("case source produced a nil case")
		}
		name := adapter.Name()
		if name == "" {
			return nil, errors.New("case source produced a case with no name")
		}
		if seen[name] {
			return nil, fmt.Errorf("case source produced duplicate case name %q", name)
		}
		seen[name] = true
		if o.filter != nil && !o.filter(name) {
			o.testLogger.TestSkipped(name, "excluded by filter parameters")
			continue
		}
		o.logPhase(name, phasePending)
		schedule = append(schedule, scheduledCase{index: len(schedule), adapter: adapter})
	}
	return schedule, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, schedule []scheduledCase, builder *ReportBuilder) {
	for _, sc := range schedule {
		cc := o.runCase(ctx, sc)
		if err := builder.Record(cc.Outcome); err != nil {
			o.setFatal(err)
			return
		}
		o.emit(cc)
		if o.fatal() != nil {
			return
		}
	}
}

// runParallel runs cases through a bounded worker pool. Terminal events go
// through a sorting queue so listeners see them in schedule order no matter
// when each case actually finished. The queue buffers the whole schedule so
// Accept never blocks a worker.
func (o *Orchestrator) runParallel(ctx context.Context, schedule []scheduledCase, builder *ReportBuilder) {
	queue := NewOutcomeSortingQueue(len(schedule))
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for cc := range queue.C {
			o.emit(cc)
		}
	}()

	sem := semaphore.NewWeighted(int64(o.cfg.MaxWorkers))
	var wg sync.WaitGroup
	for _, sc := range schedule {
		if o.fatal() != nil {
			break
		}
		sc := sc
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Acquire fails only when ctx is cancelled; the case still gets
			// an outcome, which will be a skip.
			if err := sem.Acquire(ctx, 1); err == nil {
				defer sem.Release(1)
			}
			cc := o.runCase(ctx, sc)
			if err := builder.Record(cc.Outcome); err != nil {
				o.setFatal(err)
				return
			}
			queue.Accept(cc)
		}()
	}
	wg.Wait()
	queue.Close()
	<-drained
}

func (o *Orchestrator) emit(cc CompletedCase) {
	if cc.Outcome.Status == StatusSkipped {
		o.testLogger.TestSkipped(cc.Outcome.Name, cc.Outcome.Detail)
	} else {
		o.testLogger.TestFinished(cc.Outcome, cc.DebugOutput)
	}
}

// runCase walks one case through its phases and always produces an outcome.
func (o *Orchestrator) runCase(ctx context.Context, sc scheduledCase) CompletedCase {
	adapter := sc.adapter
	name := adapter.Name()
	outcome := Outcome{
		Name:          name,
		ScheduleIndex: sc.index,
		StartedAt:     time.Now(),
	}
	finish := func(status Status, detail string, annotations []Annotation, t *T) CompletedCase {
		o.logPhase(name, phaseDone)
		outcome.Status = status
		outcome.Detail = detail
		outcome.Annotations = annotations
		outcome.CompletedAt = time.Now()
		outcome.Duration = Duration(outcome.CompletedAt.Sub(outcome.StartedAt))
		if outcome.IsFailure() {
			o.anyFailed.Store(true)
		}
		cc := CompletedCase{Outcome: outcome}
		if t != nil {
			cc.DebugOutput = t.debugOutput()
		}
		return cc
	}

	if reason := o.preskipReason(ctx, adapter); reason != "" {
		return finish(StatusSkipped, reason, nil, nil)
	}

	t := newT(name, o.rc, func(err error) {
		o.testLogger.TestError(name, err)
	})
	o.testLogger.TestStarted(name)

	var annotations []Annotation
	annotate := func(kind string, err error) {
		annotations = append(annotations, Annotation{Kind: kind, Message: err.Error()})
	}

	o.logPhase(name, phaseAcquiring)
	handles, setupErr := o.safeSetup(adapter, t)
	t.setHandles(handles)
	rl := newReleaseList(handles)

	status := StatusPassed
	detail := ""
	setupOK := false

	failed, skipped, skipReason, errs := t.snapshot()
	switch {
	case setupErr != nil:
		var acq *AcquisitionError
		if !errors.As(setupErr, &acq) {
			setupErr = &AcquisitionError{Resource: "setup", Err: setupErr}
		}
		status, detail = StatusErrored, setupErr.Error()
		o.testLogger.TestError(name, setupErr)
	case skipped:
		status = StatusSkipped
		detail = skipReason
		if detail == "" {
			detail = "skipped during setup"
		}
	case failed:
		// FailNow during setup. Individual errors were already streamed.
		acq := &AcquisitionError{Resource: "setup", Err: firstError(errs, "setup failed")}
		status, detail = StatusErrored, acq.Error()
	default:
		setupOK = true
		o.logPhase(name, phaseExecuting)
		execErr := o.executeBody(adapter, t)
		failed, skipped, skipReason, errs = t.snapshot()
		switch {
		case execErr != nil:
			status, detail = StatusErrored, execErr.Error()
			o.testLogger.TestError(name, execErr)
		case skipped:
			status, detail = StatusSkipped, skipReason
		case failed:
			fail := &AssertionFailure{Err: firstError(errs, "test failed with no failure message")}
			status, detail = StatusFailed, fail.Error()
		}
	}

	if shouldCapture(o.cfg.CaptureStrategy, status) {
		o.logPhase(name, phaseCapturing)
		o.capture(t, status, detail, errs, &outcome, annotate)
	}

	o.logPhase(name, phaseReleasing)
	teardownFailure := func(stage string, err error) {
		te := &TeardownError{Stage: stage, Err: err}
		annotate(AnnotationTeardownError, te)
		o.testLogger.TestError(name, te)
	}
	t.runCleanups(teardownFailure)
	if setupOK {
		if err := o.safeTeardown(adapter, t); err != nil {
			teardownFailure("teardown", err)
		}
	}
	rl.releaseAll(func(h ResourceHandle, err error) {
		teardownFailure(h.Kind(), err)
	})

	return finish(status, detail, annotations, t)
}

func (o *Orchestrator) preskipReason(ctx context.Context, adapter CaseAdapter) string {
	if ctx.Err() != nil {
		return "run cancelled"
	}
	if o.cfg.FailFast && o.anyFailed.Load() {
		return "fail-fast: earlier case failed"
	}
	if issue := adapter.KnownIssue(); issue != "" && !o.cfg.IncludeKnownIssues {
		return "known issue: " + issue
	}
	return ""
}

// safeSetup runs the adapter's setup, converting a panic into state the
// caller can inspect. On panic the returned handles are whatever setup had
// registered on t before failing.
func (o *Orchestrator) safeSetup(adapter CaseAdapter, t *T) (handles []ResourceHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			handles = t.Handles()
			if r == t {
				// FailNow or Skip during setup; t records which.
				return
			}
			err = &AcquisitionError{
				Resource: "setup",
				Err:      fmt.Errorf("panic during setup: %+v\n%s", r, string(debug.Stack())),
			}
		}
	}()
	return adapter.Setup(t)
}

// executeBody runs the test body, enforcing the execution deadline if there
// is one. A case's own timeout takes precedence over the run-wide one. On
// timeout the body goroutine is abandoned; it cannot be killed, but its
// later assertions are discarded.
func (o *Orchestrator) executeBody(adapter CaseAdapter, t *T) error {
	timeout := adapter.Timeout()
	if timeout == 0 {
		timeout = time.Duration(o.cfg.PerTestTimeout)
	}
	if timeout <= 0 {
		return t.run(adapter.Run)
	}

	bodyCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	t.setContext(bodyCtx)

	done := make(chan error, 1)
	go func() {
		done <- t.run(adapter.Run)
	}()
	select {
	case err := <-done:
		return err
	case <-bodyCtx.Done():
		t.abandon()
		return &ExecutionError{Err: fmt.Errorf("test body did not finish within %s", timeout)}
	}
}

func (o *Orchestrator) safeTeardown(adapter CaseAdapter, t *T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == t {
				err = errors.New("teardown aborted early")
				return
			}
			err = fmt.Errorf("panic during teardown: %+v", r)
		}
	}()
	return adapter.Teardown(t)
}

// capture collects diagnostics for a settled case and attaches them to the
// outcome. A failing case always ends up with at least one artifact or a
// capture-error annotation.
func (o *Orchestrator) capture(t *T, status Status, detail string, errs []error, outcome *Outcome, annotate func(kind string, err error)) {
	cc := CaptureContext{
		CaseName:    t.Name(),
		Status:      status,
		Detail:      detail,
		Handles:     t.Handles(),
		DebugOutput: t.debugOutput(),
		Run:         o.rc,
	}
	artifacts, sinkErr := o.safeCapture(cc)
	for i := range artifacts {
		if err := o.rc.SaveArtifact(t.Name(), &artifacts[i]); err != nil {
			annotate(AnnotationCaptureError, &CaptureError{Source: artifacts[i].Name, Err: err})
			continue
		}
		outcome.Artifacts = append(outcome.Artifacts, artifacts[i])
	}
	if sinkErr != nil {
		ce := &CaptureError{Source: "capture sink", Err: sinkErr}
		annotate(AnnotationCaptureError, ce)
		o.testLogger.TestError(t.Name(), ce)
	}

	failing := status == StatusFailed || status == StatusErrored
	if failing && len(outcome.Artifacts) == 0 && sinkErr == nil {
		a := TextArtifact("failure-summary.log", failureSummary(t.Name(), status, detail, errs))
		if err := o.rc.SaveArtifact(t.Name(), &a); err != nil {
			annotate(AnnotationCaptureError, &CaptureError{Source: a.Name, Err: err})
		} else {
			outcome.Artifacts = append(outcome.Artifacts, a)
		}
	}
}

func (o *Orchestrator) safeCapture(cc CaptureContext) (artifacts []Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifacts = nil
			err = fmt.Errorf("panic during capture: %+v", r)
		}
	}()
	return o.sink.Capture(context.Background(), cc)
}

func failureSummary(name string, status Status, detail string, errs []error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "case: %s\nstatus: %s\n", name, status)
	if detail != "" {
		fmt.Fprintf(&sb, "detail: %s\n", detail)
	}
	for _, e := range errs {
		fmt.Fprintf(&sb, "error: %s\n", e)
	}
	return sb.String()
}

func firstError(errs []error, fallback string) error {
	if len(errs) > 0 {
		return errs[0]
	}
	return errors.New(fallback)
}

func (o *Orchestrator) setFatal(err error) {
	o.fatalMu.Lock()
	if o.fatalErr == nil {
		o.fatalErr = err
	}
	o.fatalMu.Unlock()
}

func (o *Orchestrator) fatal() error {
	o.fatalMu.Lock()
	defer o.fatalMu.Unlock()
	return o.fatalErr
}

func (o *Orchestrator) logPhase(name string, p phase) {
	o.logger.Printf("case %s: %s", name, p)
}
