package resource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickwporter/gointegration/framework"
)

func waitForExit(t *testing.T, p *Process) {
	deadline := time.Now().Add(5 * time.Second)
	for p.Running() {
		if time.Now().After(deadline) {
			require.Fail(t, "process did not exit in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestProcessCollectsOutput(t *testing.T) {
	spec := ProcessSpec{Name: "greeter", Path: "sh", Args: []string{"-c", "echo one; echo two >&2"}}
	handle, err := spec.Acquire(context.Background(), newTestRunContext(t))
	require.NoError(t, err)
	p := handle.(*Process)
	defer func() { _ = p.Release() }()

	waitForExit(t, p)
	output := p.Output().String()
	assert.Contains(t, output, "one")
	assert.Contains(t, output, "two")

	artifacts, err := p.Snapshot()
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "greeter.log", artifacts[0].Name)
	assert.Contains(t, string(artifacts[0].Data), "one")
}

func TestProcessReleaseStopsLongRunningProcess(t *testing.T) {
	spec := ProcessSpec{Name: "sleeper", Path: "sleep", Args: []string{"60"}}
	handle, err := spec.Acquire(context.Background(), newTestRunContext(t))
	require.NoError(t, err)
	p := handle.(*Process)

	assert.True(t, p.Running())
	require.NoError(t, p.Release())
	assert.False(t, p.Running())
	require.NoError(t, p.Release())
}

func TestProcessReleaseAfterExitIsNoop(t *testing.T) {
	spec := ProcessSpec{Name: "quick", Path: "true"}
	handle, err := spec.Acquire(context.Background(), newTestRunContext(t))
	require.NoError(t, err)
	p := handle.(*Process)

	waitForExit(t, p)
	assert.NoError(t, p.Release())
}

func TestProcessSnapshotEmptyWhenQuiet(t *testing.T) {
	spec := ProcessSpec{Name: "quiet", Path: "true"}
	handle, err := spec.Acquire(context.Background(), newTestRunContext(t))
	require.NoError(t, err)
	p := handle.(*Process)
	defer func() { _ = p.Release() }()

	waitForExit(t, p)
	artifacts, err := p.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestProcessWaitsForReadyURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	spec := ProcessSpec{Name: "server", Path: "sleep", Args: []string{"60"},
		ReadyURL: server.URL, Probe: fastProbe}
	handle, err := spec.Acquire(context.Background(), newTestRunContext(t))
	require.NoError(t, err)
	require.NoError(t, handle.(*Process).Release())
}

func TestProcessAcquireFailsWhenProcessDiesBeforeReady(t *testing.T) {
	spec := ProcessSpec{Name: "flash", Path: "true",
		ReadyURL: "http://127.0.0.1:1", Probe: fastProbe}
	_, err := spec.Acquire(context.Background(), newTestRunContext(t))
	assert.Error(t, err)
}

func TestProcessAcquireFailsWhenProgramMissing(t *testing.T) {
	spec := ProcessSpec{Name: "ghost", Path: "/no/such/program"}
	_, err := spec.Acquire(context.Background(), newTestRunContext(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not start ghost")
}

var _ framework.Snapshotter = &Process{}
