package framework

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/rickwporter/gointegration/logging"
)

type snapshotHandle struct {
	kind      string
	artifacts []Artifact
	err       error
}

func (h *snapshotHandle) Kind() string { return h.kind }

func (h *snapshotHandle) Release() error { return nil }

func (h *snapshotHandle) Snapshot() ([]Artifact, error) { return h.artifacts, h.err }

func TestSnapshotSinkCollectsFromEveryCapableHandle(t *testing.T) {
	var log []string
	cc := CaptureContext{
		Handles: []ResourceHandle{
			&recordingHandle{name: "plain", log: &log},
			&snapshotHandle{kind: "svc", artifacts: []Artifact{TextArtifact("svc.log", "hello")}},
			&snapshotHandle{kind: "db", err: errors.New("gone")},
			&snapshotHandle{kind: "proc", artifacts: []Artifact{TextArtifact("proc.log", "bye")}},
		},
	}
	artifacts, err := SnapshotSink{}.Capture(context.Background(), cc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
	require.Len(t, artifacts, 2)
	assert.Equal(t, "svc.log", artifacts[0].Name)
	assert.Equal(t, "proc.log", artifacts[1].Name)
}

func TestDebugLogSinkPackagesTranscript(t *testing.T) {
	var logger logging.CapturingLogger
	logger.Printf("starting %s", "up")

	artifacts, err := DebugLogSink{}.Capture(context.Background(), CaptureContext{DebugOutput: logger.Output()})
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "debug.log", artifacts[0].Name)
	assert.Contains(t, string(artifacts[0].Data), "starting up")

	artifacts, err = DebugLogSink{}.Capture(context.Background(), CaptureContext{})
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestMultiSinkCombinesResultsAndErrors(t *testing.T) {
	ok := SinkFunc(func(context.Context, CaptureContext) ([]Artifact, error) {
		return []Artifact{TextArtifact("a.log", "a")}, nil
	})
	broken := SinkFunc(func(context.Context, CaptureContext) ([]Artifact, error) {
		return nil, errors.New("sink broke")
	})
	more := SinkFunc(func(context.Context, CaptureContext) ([]Artifact, error) {
		return []Artifact{TextArtifact("b.log", "b")}, nil
	})

	artifacts, err := MultiSink{ok, broken, more}.Capture(context.Background(), CaptureContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink broke")
	require.Len(t, artifacts, 2)
	assert.Equal(t, "a.log", artifacts[0].Name)
	assert.Equal(t, "b.log", artifacts[1].Name)
}

func TestCaptureStrategySelection(t *testing.T) {
	assert.True(t, shouldCapture(CaptureAlways, StatusPassed))
	assert.True(t, shouldCapture(CaptureAlways, StatusSkipped))
	assert.False(t, shouldCapture(CaptureNone, StatusFailed))
	assert.False(t, shouldCapture(CaptureNone, StatusErrored))
	assert.True(t, shouldCapture(CaptureOnFailure, StatusFailed))
	assert.True(t, shouldCapture(CaptureOnFailure, StatusErrored))
	assert.False(t, shouldCapture(CaptureOnFailure, StatusPassed))
	assert.False(t, shouldCapture(CaptureOnFailure, StatusSkipped))
}

func TestArtifactConstructors(t *testing.T) {
	a := TextArtifact("notes.txt", "text")
	assert.Equal(t, "text/plain", a.ContentType)
	assert.Equal(t, "text", string(a.Data))

	b := BytesArtifact("blob.bin", "application/octet-stream", []byte{1, 2})
	assert.Equal(t, []byte{1, 2}, b.Data)

	j := JSONArtifact("state.json", ldvalue.ObjectBuild().Set("ready", ldvalue.Bool(true)).Build())
	assert.Equal(t, "application/json", j.ContentType)
	assert.JSONEq(t, `{"ready": true}`, string(j.Data))
}
