package framework

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/rickwporter/gointegration/logging"
)

// Artifact is one named blob of diagnostic data attached to an outcome.
type Artifact struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"-"`
	// Path is set once the artifact has been persisted to the run scratch
	// directory.
	Path string `json:"path,omitempty"`
}

// TextArtifact packages a text blob.
func TextArtifact(name, text string) Artifact {
	return Artifact{Name: name, ContentType: "text/plain", Data: []byte(text)}
}

// BytesArtifact packages an arbitrary binary blob.
func BytesArtifact(name, contentType string, data []byte) Artifact {
	return Artifact{Name: name, ContentType: contentType, Data: data}
}

// JSONArtifact packages a structured value.
func JSONArtifact(name string, value ldvalue.Value) Artifact {
	return Artifact{Name: name, ContentType: "application/json", Data: []byte(value.JSONString())}
}

// CaptureContext is what a sink gets to work with when a case completes: the
// case identity, how it ended, and the live handles it held.
type CaptureContext struct {
	CaseName    string
	Status      Status
	Detail      string
	Handles     []ResourceHandle
	DebugOutput logging.CapturedOutput
	Run         *RunContext
}

// CaptureSink collects diagnostic artifacts for one completed case. A sink
// error becomes a capture-error annotation on the outcome; it never masks
// the case's own result.
type CaptureSink interface {
	Capture(ctx context.Context, cc CaptureContext) ([]Artifact, error)
}

// SinkFunc adapts a function to a CaptureSink.
type SinkFunc func(ctx context.Context, cc CaptureContext) ([]Artifact, error)

func (f SinkFunc) Capture(ctx context.Context, cc CaptureContext) ([]Artifact, error) {
	return f(ctx, cc)
}

// SnapshotSink gathers artifacts from every handle that can describe itself.
// One handle's snapshot failure does not stop the others.
type SnapshotSink struct{}

func (SnapshotSink) Capture(_ context.Context, cc CaptureContext) ([]Artifact, error) {
	var all []Artifact
	var errs []error
	for _, h := range cc.Handles {
		s, ok := h.(Snapshotter)
		if !ok {
			continue
		}
		arts, err := s.Snapshot()
		if err != nil {
			errs = append(errs, fmt.Errorf("snapshot of %s: %w", h.Kind(), err))
			continue
		}
		all = append(all, arts...)
	}
	return all, errors.Join(errs...)
}

// DebugLogSink captures the case's debug transcript as an artifact.
type DebugLogSink struct{}

func (DebugLogSink) Capture(_ context.Context, cc CaptureContext) ([]Artifact, error) {
	if len(cc.DebugOutput) == 0 {
		return nil, nil
	}
	return []Artifact{TextArtifact("debug.log", cc.DebugOutput.String())}, nil
}

// MultiSink runs each sink in order and combines their artifacts. Each
// member's failure is reported; none stops the others.
type MultiSink []CaptureSink

func (m MultiSink) Capture(ctx context.Context, cc CaptureContext) ([]Artifact, error) {
	var all []Artifact
	var errs []error
	for _, s := range m {
		arts, err := s.Capture(ctx, cc)
		all = append(all, arts...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return all, errors.Join(errs...)
}

// DefaultCaptureSink is what an Orchestrator uses when none is injected:
// resource snapshots plus the debug transcript.
func DefaultCaptureSink() CaptureSink {
	return MultiSink{SnapshotSink{}, DebugLogSink{}}
}

func shouldCapture(strategy CaptureStrategy, status Status) bool {
	switch strategy {
	case CaptureAlways:
		return true
	case CaptureNone:
		return false
	default:
		return status == StatusFailed || status == StatusErrored
	}
}
