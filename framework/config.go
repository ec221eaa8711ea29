package framework

import (
	"fmt"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects how scheduled cases are dispatched.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
)

// CaptureStrategy controls when diagnostic capture runs for a completed case.
type CaptureStrategy string

const (
	// CaptureOnFailure captures only for failed or errored cases. Default.
	CaptureOnFailure CaptureStrategy = "on-failure"
	// CaptureAlways captures unconditionally.
	CaptureAlways CaptureStrategy = "always"
	// CaptureNone disables capture entirely.
	CaptureNone CaptureStrategy = "none"
)

// Duration wraps time.Duration so config files can say "30s" or "2m".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// yaml.v3 does not consult encoding.TextUnmarshaler, so the YAML hooks are
// spelled out as well.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) String() string { return time.Duration(d).String() }

// RunConfig is the configuration surface of one orchestrator run.
type RunConfig struct {
	// Mode is sequential or parallel. Default sequential.
	Mode Mode `yaml:"mode"`
	// MaxWorkers bounds the worker pool in parallel mode. Default NumCPU.
	MaxWorkers int `yaml:"max-workers"`
	// CaptureStrategy is on-failure, always, or none. Default on-failure.
	CaptureStrategy CaptureStrategy `yaml:"capture-strategy"`
	// PerTestTimeout bounds each case's body. Zero means no timeout; the
	// orchestrator never imposes one on its own.
	PerTestTimeout Duration `yaml:"per-test-timeout"`
	// FailFast skips every case that has not started once one fails.
	FailFast bool `yaml:"fail-fast"`
	// IncludeKnownIssues runs cases marked as known issues instead of
	// skipping them.
	IncludeKnownIssues bool `yaml:"include-known-issues"`
	// JobID suffixes externally visible resource names so concurrent runs do
	// not collide. Default is a fragment of the run ID.
	JobID string `yaml:"job-id"`
	// OutputDir is where the run scratch directory is created. Default is
	// the system temp directory.
	OutputDir string `yaml:"output-dir"`
}

func (c RunConfig) withDefaults() RunConfig {
	if c.Mode == "" {
		c.Mode = ModeSequential
	}
	if c.CaptureStrategy == "" {
		c.CaptureStrategy = CaptureOnFailure
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = runtime.NumCPU()
	}
	return c
}

// Validate rejects unknown modes and strategies and nonsensical pool sizes.
func (c RunConfig) Validate() error {
	switch c.Mode {
	case ModeSequential, ModeParallel:
	default:
		return fmt.Errorf("unknown run mode %q", c.Mode)
	}
	switch c.CaptureStrategy {
	case CaptureOnFailure, CaptureAlways, CaptureNone:
	default:
		return fmt.Errorf("unknown capture strategy %q", c.CaptureStrategy)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max-workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.PerTestTimeout < 0 {
		return fmt.Errorf("per-test-timeout cannot be negative")
	}
	return nil
}
