package reports

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/rickwporter/gointegration/framework"
)

// JUnit XML shapes, per the de facto schema CI systems consume.

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFault   `xml:"failure,omitempty"`
	Error     *junitFault   `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
	SystemErr string        `xml:"system-err,omitempty"`
}

type junitFault struct {
	Message string `xml:"message,attr"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// suiteName groups cases by the leading path segment of their name, so
// "petstore/add pet" lands in suite "petstore". Names without a slash go to
// "default".
func suiteName(name string) string {
	if i := strings.Index(name, "/"); i > 0 {
		return name[:i]
	}
	return "default"
}

func caseName(name string) string {
	if i := strings.Index(name, "/"); i > 0 && i+1 < len(name) {
		return name[i+1:]
	}
	return name
}

// WriteJUnitFile writes the run report as JUnit XML for CI ingestion,
// creating parent directories as needed.
func WriteJUnitFile(report *framework.RunReport, path string) error {
	data, err := xml.MarshalIndent(buildJUnit(report), "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode report")
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "could not create report directory")
		}
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "could not write %s", path)
}

func buildJUnit(report *framework.RunReport) junitTestSuites {
	suites := junitTestSuites{
		Time: formatSeconds(report.Duration()),
	}
	index := make(map[string]int)
	for _, outcome := range report.Outcomes {
		name := suiteName(outcome.Name)
		i, ok := index[name]
		if !ok {
			i = len(suites.Suites)
			index[name] = i
			suites.Suites = append(suites.Suites, junitTestSuite{Name: name})
		}
		suite := &suites.Suites[i]

		tc := junitTestCase{
			Name:      caseName(outcome.Name),
			Classname: name,
			Time:      formatSeconds(time.Duration(outcome.Duration)),
		}
		switch outcome.Status {
		case framework.StatusFailed:
			tc.Failure = &junitFault{Message: outcome.Detail}
			suite.Failures++
			suites.Failures++
		case framework.StatusErrored:
			tc.Error = &junitFault{Message: outcome.Detail}
			suite.Errors++
			suites.Errors++
		case framework.StatusSkipped:
			tc.Skipped = &junitSkipped{Message: outcome.Detail}
			suite.Skipped++
			suites.Skipped++
		}
		var outLines, errLines []string
		for _, a := range outcome.Artifacts {
			if a.Path != "" {
				outLines = append(outLines, a.Path)
			}
		}
		for _, a := range outcome.Annotations {
			errLines = append(errLines, fmt.Sprintf("%s: %s", a.Kind, a.Message))
		}
		tc.SystemOut = strings.Join(outLines, "\n")
		tc.SystemErr = strings.Join(errLines, "\n")

		suite.Tests++
		suites.Tests++
		suite.Cases = append(suite.Cases, tc)
	}
	return suites
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
