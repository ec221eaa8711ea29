package framework

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rickwporter/gointegration/logging"
)

// RunContext carries the state scoped to one orchestrator invocation: the run
// identity, the scratch directory for captured artifacts, and the run-level
// logger. Components receive it explicitly; nothing here is process-global,
// so repeated or concurrent runs cannot interfere with each other.
type RunContext struct {
	RunID      string
	JobID      string
	ScratchDir string
	Config     RunConfig
	Logger     logging.Logger
}

func newRunContext(cfg RunConfig, logger logging.Logger) (*RunContext, error) {
	if logger == nil {
		logger = logging.NullLogger()
	}
	runID := uuid.New().String()
	jobID := cfg.JobID
	if jobID == "" {
		jobID = runID[:8]
	}

	var scratch string
	var err error
	if cfg.OutputDir == "" {
		scratch, err = os.MkdirTemp("", "integration-run-")
	} else {
		scratch = filepath.Join(cfg.OutputDir, "run-"+jobID)
		err = os.MkdirAll(scratch, 0o755)
	}
	if err != nil {
		return nil, fmt.Errorf("could not create run scratch directory: %w", err)
	}

	return &RunContext{
		RunID:      runID,
		JobID:      jobID,
		ScratchDir: scratch,
		Config:     cfg,
		Logger:     logger,
	}, nil
}

// QualifyName appends the job ID to an externally visible name (container
// name, process label) so simultaneous runs do not collide.
func (rc *RunContext) QualifyName(name string) string {
	if rc.JobID == "" {
		return name
	}
	return name + "-" + rc.JobID
}

// ScratchPath joins path elements under the run scratch directory.
func (rc *RunContext) ScratchPath(elem ...string) string {
	return filepath.Join(append([]string{rc.ScratchDir}, elem...)...)
}

// SaveArtifact persists an artifact's data under the scratch directory and
// records the resulting path on the artifact.
func (rc *RunContext) SaveArtifact(caseName string, a *Artifact) error {
	path := rc.ScratchPath(artifactFileName(caseName, a.Name))
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return err
	}
	a.Path = path
	return nil
}

func artifactFileName(caseName, artifactName string) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			case r == '.', r == '-', r == '_':
				return r
			default:
				return '-'
			}
		}, s)
	}
	return clean(caseName) + "_" + clean(artifactName)
}
