package resource

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/rickwporter/gointegration/framework"
)

// ScratchDirSpec allocates a private directory under the run's scratch
// space. The directory is removed on release; since diagnostic capture runs
// before release, failing cases can still collect files from it.
type ScratchDirSpec struct {
	// Prefix names the directory; it defaults to "case-".
	Prefix string
}

func (s ScratchDirSpec) Kind() string { return "scratch-dir" }

func (s ScratchDirSpec) Describe() string { return "scratch directory" }

func (s ScratchDirSpec) Acquire(_ context.Context, rc *framework.RunContext) (framework.ResourceHandle, error) {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "case-"
	}
	dir, err := os.MkdirTemp(rc.ScratchDir, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "could not create scratch directory")
	}
	return &ScratchDir{path: dir}, nil
}

// ScratchDir is a private temporary directory owned by one case.
type ScratchDir struct {
	path       string
	removeOnce sync.Once
	removeErr  error
}

func (d *ScratchDir) Kind() string { return "scratch-dir" }

// Path is the directory root.
func (d *ScratchDir) Path() string { return d.path }

// PathTo joins elements under the directory.
func (d *ScratchDir) PathTo(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}

// WriteFile creates a file under the directory, making any intermediate
// directories, and returns its full path.
func (d *ScratchDir) WriteFile(name, content string) (string, error) {
	path := d.PathTo(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "could not create scratch subdirectory")
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrapf(err, "could not write %s", name)
	}
	return path, nil
}

func (d *ScratchDir) Release() error {
	d.removeOnce.Do(func() {
		d.removeErr = os.RemoveAll(d.path)
	})
	return d.removeErr
}
