package framework

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rickwporter/gointegration/logging"
)

// CaseAdapter is the contract between the orchestrator and one test case.
// Setup returns every handle it acquired, including the ones it acquired
// before failing partway, so the orchestrator can release them.
type CaseAdapter interface {
	Name() string
	KnownIssue() string
	Timeout() time.Duration
	Setup(t *T) ([]ResourceHandle, error)
	Run(t *T) error
	Teardown(t *T) error
}

// Case is the declarative way to define a test case. Resources are acquired
// in order before Setup runs; Body and Teardown see them through t.Handle.
type Case struct {
	Name       string
	Resources  []ResourceSpec
	Timeout    time.Duration
	KnownIssue string
	Setup      func(t *T) error
	Body       func(t *T) error
	Teardown   func(t *T) error
}

// Adapter wraps the declarative definition in the orchestrator's contract.
func (c *Case) Adapter() CaseAdapter {
	return &caseAdapter{c: c}
}

type caseAdapter struct {
	c *Case
}

func (a *caseAdapter) Name() string { return a.c.Name }

func (a *caseAdapter) KnownIssue() string { return a.c.KnownIssue }

func (a *caseAdapter) Timeout() time.Duration { return a.c.Timeout }

func (a *caseAdapter) Setup(t *T) ([]ResourceHandle, error) {
	var handles []ResourceHandle
	for _, spec := range a.c.Resources {
		h, err := spec.Acquire(t.Context(), t.RunContext())
		if err != nil {
			return handles, &AcquisitionError{Resource: spec.Describe(), Err: err}
		}
		handles = append(handles, h)
		t.setHandles(handles)
	}
	if a.c.Setup != nil {
		if err := a.c.Setup(t); err != nil {
			return handles, &AcquisitionError{Resource: "setup", Err: err}
		}
	}
	return handles, nil
}

func (a *caseAdapter) Run(t *T) error {
	if a.c.Body == nil {
		return nil
	}
	return a.c.Body(t)
}

func (a *caseAdapter) Teardown(t *T) error {
	if a.c.Teardown == nil {
		return nil
	}
	return a.c.Teardown(t)
}

type cleanup struct {
	fn func() error
}

// T carries per-case state through setup, the test body, and teardown. Its
// Errorf and FailNow methods satisfy the TestingT interfaces of assertion
// libraries, so helpers like require.Equal(t, ...) work directly.
type T struct {
	name        string
	rc          *RunContext
	mu          sync.Mutex
	ctx         context.Context
	handles     []ResourceHandle
	debugLogger logging.CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	abandoned   bool
	cleanups    []cleanup
	onError     func(err error)
}

func newT(name string, rc *RunContext, onError func(err error)) *T {
	return &T{name: name, rc: rc, ctx: context.Background(), onError: onError}
}

func (t *T) Name() string {
	return t.name
}

// Context is the case-scoped context. It is cancelled when the case's
// execution deadline passes, not when the overall run is cancelled; a case
// that has started is allowed to finish.
func (t *T) Context() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctx
}

func (t *T) RunContext() *RunContext {
	return t.rc
}

// Handles returns the resource handles acquired so far, in acquisition order.
func (t *T) Handles() []ResourceHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ResourceHandle, len(t.handles))
	copy(out, t.handles)
	return out
}

// Handle returns the i'th acquired handle, counting from zero in the order
// the case declared its resources.
func (t *T) Handle(i int) ResourceHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.handles) {
		panic(fmt.Sprintf("test %q has no resource handle %d", t.name, i))
	}
	return t.handles[i]
}

// Errorf records an assertion failure without stopping the test.
func (t *T) Errorf(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	t.mu.Lock()
	if t.abandoned {
		t.mu.Unlock()
		return
	}
	t.failed = true
	t.errors = append(t.errors, err)
	onError := t.onError
	t.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

// FailNow stops the test immediately. The test ends up failed even if no
// error was recorded first.
func (t *T) FailNow() {
	panic(t)
}

// Skip stops the test immediately and marks it skipped.
func (t *T) Skip() {
	t.mu.Lock()
	t.skipped = true
	t.mu.Unlock()
	panic(t)
}

func (t *T) SkipWithReason(reason string) {
	t.mu.Lock()
	t.skipReason = reason
	t.mu.Unlock()
	t.Skip()
}

// Debug writes to the case's captured transcript. The transcript surfaces in
// console output and diagnostic artifacts depending on configuration.
func (t *T) Debug(message string, args ...interface{}) {
	t.debugLogger.Printf(message, args...)
}

func (t *T) DebugLogger() logging.Logger {
	return &t.debugLogger
}

// Defer registers a cleanup to run during the release phase, before resource
// handles are released. Cleanups run last-registered-first.
func (t *T) Defer(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanups = append(t.cleanups, cleanup{fn: fn})
}

func (t *T) setContext(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctx = ctx
}

func (t *T) setHandles(handles []ResourceHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handles = handles
}

// abandon tells a timed-out test body that its t is no longer live; late
// Errorf calls are dropped rather than racing the recorded outcome.
func (t *T) abandon() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.abandoned = true
	t.onError = nil
}

func (t *T) snapshot() (failed, skipped bool, skipReason string, errs []error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	errs = make([]error, len(t.errors))
	copy(errs, t.errors)
	return t.failed, t.skipped, t.skipReason, errs
}

func (t *T) debugOutput() logging.CapturedOutput {
	return t.debugLogger.Output()
}

// run invokes one phase function, converting panics into recorded state.
// A panic(t) is the FailNow/Skip control path; any other panic and any
// returned error become an ExecutionError.
func (t *T) run(fn func(*T) error) (execErr error) {
	defer func() {
		if r := recover(); r != nil {
			if r == t {
				t.mu.Lock()
				var added error
				if !t.skipped {
					t.failed = true
					if len(t.errors) == 0 {
						added = errors.New("test failed with no failure message")
						t.errors = append(t.errors, added)
					}
				}
				onError := t.onError
				t.mu.Unlock()
				if added != nil && onError != nil {
					onError(added)
				}
				return
			}
			execErr = &ExecutionError{Err: fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))}
		}
	}()

	if err := fn(t); err != nil {
		return &ExecutionError{Err: err}
	}
	return nil
}

// runCleanups runs deferred cleanups last-registered-first. Failures are
// reported through annotate and never stop the remaining cleanups.
func (t *T) runCleanups(annotate func(stage string, err error)) {
	t.mu.Lock()
	cleanups := t.cleanups
	t.cleanups = nil
	t.mu.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		func(i int) {
			defer func() {
				if r := recover(); r != nil {
					annotate(fmt.Sprintf("deferred cleanup %d", i), fmt.Errorf("panic during cleanup: %+v", r))
				}
			}()
			if err := cleanups[i].fn(); err != nil {
				annotate(fmt.Sprintf("deferred cleanup %d", i), err)
			}
		}(i)
	}
}
