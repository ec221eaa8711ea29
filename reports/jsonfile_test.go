package reports

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickwporter/gointegration/framework"
)

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	require.NoError(t, WriteJSONFile(sampleReport(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded framework.RunReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Outcomes, 3)
	assert.Equal(t, framework.StatusFailed, decoded.Outcomes[1].Status)
	assert.Equal(t, "assertion failed: wrong name", decoded.Outcomes[1].Detail)
	assert.Equal(t, 1, decoded.Totals.Passed)
}

func TestWriteJSONFileRefusesUnwritablePath(t *testing.T) {
	err := WriteJSONFile(sampleReport(), string([]byte{0}))
	assert.Error(t, err)
}

func TestDefaultJSONPath(t *testing.T) {
	path := DefaultJSONPath("/var/reports", "nightly")
	assert.Equal(t, "/var/reports", filepath.Dir(path))
	base := filepath.Base(path)
	assert.Regexp(t, `^report-nightly-\d{8}-\d{6}\.json$`, base)
}
