package runner

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rickwporter/gointegration/framework"
)

// ReportsConfig names the report files to write after the run. Empty paths
// mean the report is not written.
type ReportsConfig struct {
	JSON  string `yaml:"json"`
	JUnit string `yaml:"junit"`
}

// FileConfig is the YAML configuration file shape: the run configuration
// plus report destinations.
//
//	mode: parallel
//	max-workers: 4
//	per-test-timeout: 2m
//	reports:
//	  json: out/report.json
//	  junit: out/junit.xml
type FileConfig struct {
	framework.RunConfig `yaml:",inline"`
	Reports             ReportsConfig `yaml:"reports"`
}

// LoadFileConfig reads and parses a YAML configuration file. Unknown keys
// are rejected so typos do not silently take defaults.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read config file")
	}
	var fc FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "could not parse %s", path)
	}
	return &fc, nil
}
