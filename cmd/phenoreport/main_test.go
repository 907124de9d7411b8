package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenocli/internal/config"
	"phenocli/internal/shared/testutil"
	"phenocli/pkg/contracts"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	cmd.SetOut(&stderr)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_PrintsOutputName(t *testing.T) {
	base := t.TempDir()
	testutil.WriteSensorCSV(t, filepath.Join(base, config.RawDataDirName), "scans.csv", testutil.StandardHeader, []testutil.Scan{
		testutil.VisScan("E1", "A01", "2024-05-01 09:00:00", "11"),
	})

	stdout, stderr, err := execute(t, "-p", base, "--log-level", "warn")
	require.NoError(t, err)

	assert.Regexp(t, `^output_\d{14}\.xlsx\n$`, stdout)
	assert.NotContains(t, stderr, "Report run starting", "info logs are filtered at warn")

	matches, err := filepath.Glob(filepath.Join(base, config.ProcessedDataDirName, "output_*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRootCmd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "path is required", args: nil, wantErr: `required flag(s) "path" not set`},
		{name: "bad log level", args: []string{"-p", ".", "--log-level", "loud"}, wantErr: "invalid log level"},
		{name: "positional arguments", args: []string{"-p", ".", "extra"}, wantErr: "unknown command"},
		{name: "missing input directory", args: []string{"--path", "does-not-exist"}, wantErr: "input directory not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, stdout)
		})
	}
}

func TestRootCmd_Version(t *testing.T) {
	_, stderr, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, stderr, contracts.Version)
}
