package framework

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Status is the terminal classification of one test case.
type Status string

const (
	// StatusPassed means the case ran to completion with no recorded failures.
	StatusPassed Status = "passed"
	// StatusFailed means an assertion inside the test body did not hold.
	StatusFailed Status = "failed"
	// StatusErrored means the case could not run to a verdict: acquisition
	// failed, the body faulted, or the execution deadline passed.
	StatusErrored Status = "errored"
	// StatusSkipped means the case never executed.
	StatusSkipped Status = "skipped"
)

// Annotation is a secondary problem attached to an outcome, such as a
// diagnostic capture failure or a cleanup failure. Annotations never change
// the outcome's status.
type Annotation struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	AnnotationCaptureError  = "capture-error"
	AnnotationTeardownError = "teardown-error"
)

// Outcome is the recorded result of one scheduled test case.
type Outcome struct {
	Name          string       `json:"name"`
	Status        Status       `json:"status"`
	Detail        string       `json:"detail,omitempty"`
	Annotations   []Annotation `json:"annotations,omitempty"`
	Artifacts     []Artifact   `json:"artifacts,omitempty"`
	ScheduleIndex int          `json:"scheduleIndex"`
	StartedAt     time.Time    `json:"startedAt"`
	CompletedAt   time.Time    `json:"completedAt"`
	Duration      Duration     `json:"duration"`
}

// IsFailure reports whether this outcome should make the run unsuccessful.
func (o Outcome) IsFailure() bool {
	return o.Status == StatusFailed || o.Status == StatusErrored
}

// EnvironmentInfo identifies where a run took place.
type EnvironmentInfo struct {
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Hostname string `json:"hostname,omitempty"`
	CPUs     int    `json:"cpus"`
}

func currentEnvironment() EnvironmentInfo {
	hostname, _ := os.Hostname()
	return EnvironmentInfo{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Hostname: hostname,
		CPUs:     runtime.NumCPU(),
	}
}

type Totals struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// RunReport is the finalized result of one run. Outcomes appear in schedule
// order regardless of the order the cases finished in.
type RunReport struct {
	RunID       string          `json:"runId"`
	JobID       string          `json:"jobId"`
	Environment EnvironmentInfo `json:"environment"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt time.Time       `json:"completedAt"`
	ScratchDir  string          `json:"scratchDir,omitempty"`
	Outcomes    []Outcome       `json:"outcomes"`
	Totals      Totals          `json:"totals"`
}

// OK reports whether every case passed or was skipped.
func (r *RunReport) OK() bool {
	return r.Totals.Failed == 0 && r.Totals.Errored == 0
}

// Failures returns the outcomes that make the run unsuccessful.
func (r *RunReport) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.IsFailure() {
			out = append(out, o)
		}
	}
	return out
}

func (r *RunReport) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// ReportBuilder accumulates outcomes as cases complete, in any order, and
// produces the finalized report exactly once.
type ReportBuilder struct {
	mu        sync.Mutex
	scheduled int
	outcomes  []Outcome
	seen      []bool
	finalized bool
	report    RunReport
}

// NewReportBuilder creates a builder expecting one outcome per scheduled case.
func NewReportBuilder(rc *RunContext, scheduled int) *ReportBuilder {
	return &ReportBuilder{
		scheduled: scheduled,
		outcomes:  make([]Outcome, 0, scheduled),
		seen:      make([]bool, scheduled),
		report: RunReport{
			RunID:       rc.RunID,
			JobID:       rc.JobID,
			Environment: currentEnvironment(),
			StartedAt:   time.Now(),
			ScratchDir:  rc.ScratchDir,
		},
	}
}

// Record adds one case's outcome. Each schedule index may be recorded only
// once, and nothing may be recorded after Finalize.
func (b *ReportBuilder) Record(o Outcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return ErrAlreadyFinalized
	}
	if o.ScheduleIndex < 0 || o.ScheduleIndex >= b.scheduled {
		return fmt.Errorf("outcome for %q has schedule index %d, want 0 through %d",
			o.Name, o.ScheduleIndex, b.scheduled-1)
	}
	if b.seen[o.ScheduleIndex] {
		return fmt.Errorf("outcome for schedule index %d recorded twice", o.ScheduleIndex)
	}
	b.seen[o.ScheduleIndex] = true
	b.outcomes = append(b.outcomes, o)
	return nil
}

// Finalize sorts the outcomes into schedule order, computes totals, and seals
// the report. It fails with IncompleteRunError if any scheduled case has not
// been recorded, and with ErrAlreadyFinalized on any later call.
func (b *ReportBuilder) Finalize() (*RunReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return nil, ErrAlreadyFinalized
	}
	if len(b.outcomes) != b.scheduled {
		return nil, &IncompleteRunError{Recorded: len(b.outcomes), Scheduled: b.scheduled}
	}
	b.finalized = true
	sort.Slice(b.outcomes, func(i, j int) bool {
		if b.outcomes[i].ScheduleIndex != b.outcomes[j].ScheduleIndex {
			return b.outcomes[i].ScheduleIndex < b.outcomes[j].ScheduleIndex
		}
		return b.outcomes[i].CompletedAt.Before(b.outcomes[j].CompletedAt)
	})
	b.report.Outcomes = b.outcomes
	b.report.CompletedAt = time.Now()
	for _, o := range b.outcomes {
		switch o.Status {
		case StatusPassed:
			b.report.Totals.Passed++
		case StatusFailed:
			b.report.Totals.Failed++
		case StatusErrored:
			b.report.Totals.Errored++
		case StatusSkipped:
			b.report.Totals.Skipped++
		}
	}
	report := b.report
	return &report, nil
}
