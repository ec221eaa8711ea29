// Package reports turns a finished run into things people and CI systems
// read: console output, a JSON report file, and JUnit XML.
package reports

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/rickwporter/gointegration/framework"
)

// DefaultJSONPath names a report file under dir that will not collide with
// reports from other runs of the same job.
func DefaultJSONPath(dir string, jobID string) string {
	stamp := time.Now().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("report-%s-%s.json", jobID, stamp))
}

// WriteJSONFile writes the whole run report as indented JSON, creating
// parent directories as needed.
func WriteJSONFile(report *framework.RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode report")
	}
	data = append(data, '\n')
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "could not create report directory")
		}
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "could not write %s", path)
}
