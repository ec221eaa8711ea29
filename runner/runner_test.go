package runner

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickwporter/gointegration/framework"
)

func passingCase(name string) *framework.Case {
	return &framework.Case{Name: name, Body: func(t *framework.T) error { return nil }}
}

func failingCase(name string) *framework.Case {
	return &framework.Case{Name: name, Body: func(t *framework.T) error {
		t.Errorf("deliberate failure")
		return nil
	}}
}

func runWith(t *testing.T, source framework.CaseSource, extraArgs ...string) (int, string, string) {
	args := append([]string{"integrationtest", "-no-color", "-output-dir", t.TempDir()}, extraArgs...)
	var out, errOut bytes.Buffer
	code := run(args, source, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunAllPassing(t *testing.T) {
	code, out, _ := runWith(t, framework.NewCaseList(passingCase("one"), passingCase("two")))
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "[one]")
	assert.Contains(t, out, "[two]")
	assert.Contains(t, out, "Ran 2 test(s)")
	assert.Contains(t, out, "passed: 2")
}

func TestRunWithFailure(t *testing.T) {
	code, out, _ := runWith(t, framework.NewCaseList(passingCase("good"), failingCase("bad")))
	assert.Equal(t, ExitTestsFailed, code)
	assert.Contains(t, out, "FAILED: bad")
	assert.Contains(t, out, "deliberate failure")
}

func TestRunQuietOnlyReportsProblems(t *testing.T) {
	code, out, _ := runWith(t, framework.NewCaseList(passingCase("good"), failingCase("bad")),
		"-quiet")
	assert.Equal(t, ExitTestsFailed, code)
	assert.NotContains(t, out, "[good]")
	assert.NotContains(t, out, "Running test suite")
	assert.Contains(t, out, "FAILED: bad")
	assert.Contains(t, out, "Ran 2 test(s)")
}

func TestRunRejectsUnknownFlags(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"integrationtest", "-bogus"}, framework.NewCaseList(), &out, &errOut)
	assert.Equal(t, ExitUsage, code)
}

func TestRunRejectsInvalidMode(t *testing.T) {
	code, _, errOut := runWith(t, framework.NewCaseList(passingCase("one")), "-mode", "sideways")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, errOut, "invalid configuration")
}

func TestRunReportsWhenNothingMatched(t *testing.T) {
	code, _, errOut := runWith(t, framework.NewCaseList(passingCase("one")), "-run", "^nomatch$")
	assert.Equal(t, ExitNoTests, code)
	assert.Contains(t, errOut, "no tests were run")
}

func TestRunFatalOnDuplicateNames(t *testing.T) {
	code, _, errOut := runWith(t, framework.NewCaseList(passingCase("same"), passingCase("same")))
	assert.Equal(t, ExitFatal, code)
	assert.Contains(t, errOut, "duplicate")
}

func TestListMode(t *testing.T) {
	ran := false
	c := &framework.Case{Name: "petstore/add pet", Body: func(t *framework.T) error {
		ran = true
		return nil
	}}
	code, out, _ := runWith(t, framework.NewCaseList(c, passingCase("billing/charge")),
		"-list", "-run", "^petstore/")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "petstore/add pet")
	assert.NotContains(t, out, "billing/charge")
	assert.False(t, ran)
}

func TestListModeNoMatches(t *testing.T) {
	code, _, errOut := runWith(t, framework.NewCaseList(passingCase("one")), "-list", "-run", "^zzz")
	assert.Equal(t, ExitNoTests, code)
	assert.Contains(t, errOut, "no tests matched")
}

func TestRunWritesReportFiles(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "report.json")
	junitPath := filepath.Join(dir, "junit.xml")
	code, _, _ := runWith(t, framework.NewCaseList(passingCase("one")),
		"-json-report", jsonPath, "-junit-report", junitPath)
	assert.Equal(t, ExitOK, code)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcomes"`)
	data, err = os.ReadFile(junitPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<testsuites")
}

func TestRunUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "from-file.json")
	configPath := writeConfigFile(t, "mode: sequential\nreports:\n  json: "+jsonPath+"\n")

	code, _, _ := runWith(t, framework.NewCaseList(passingCase("one")), "-config", configPath)
	assert.Equal(t, ExitOK, code)
	_, err := os.Stat(jsonPath)
	assert.NoError(t, err)
}

func TestRunFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "file.json")
	flagPath := filepath.Join(dir, "flag.json")
	configPath := writeConfigFile(t, "reports:\n  json: "+filePath+"\n")

	code, _, _ := runWith(t, framework.NewCaseList(passingCase("one")),
		"-config", configPath, "-json-report", flagPath)
	assert.Equal(t, ExitOK, code)

	_, err := os.Stat(flagPath)
	assert.NoError(t, err)
	_, err = os.Stat(filePath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunConfigFileUnreadable(t *testing.T) {
	code, _, errOut := runWith(t, framework.NewCaseList(passingCase("one")),
		"-config", filepath.Join(t.TempDir(), "missing.yml"))
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, errOut, "could not read config file")
}

func TestRunDebugFlagDumpsOutputForFailures(t *testing.T) {
	c := &framework.Case{Name: "chatty", Body: func(t *framework.T) error {
		t.Debug("inspecting %s", "widget")
		t.Errorf("nope")
		return nil
	}}
	code, out, _ := runWith(t, framework.NewCaseList(c), "-debug")
	assert.Equal(t, ExitTestsFailed, code)
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "inspecting widget")
}
