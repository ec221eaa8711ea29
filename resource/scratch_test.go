package resource

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratchDirLifecycle(t *testing.T) {
	rc := newTestRunContext(t)
	handle, err := ScratchDirSpec{Prefix: "mycase-"}.Acquire(context.Background(), rc)
	require.NoError(t, err)
	dir := handle.(*ScratchDir)

	assert.True(t, strings.HasPrefix(dir.Path(), rc.ScratchDir))
	assert.Contains(t, dir.Path(), "mycase-")

	path, err := dir.WriteFile("nested/config.json", `{"debug": true}`)
	require.NoError(t, err)
	assert.Equal(t, dir.PathTo("nested", "config.json"), path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"debug": true}`, string(content))

	require.NoError(t, dir.Release())
	_, err = os.Stat(dir.Path())
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, dir.Release())
}
