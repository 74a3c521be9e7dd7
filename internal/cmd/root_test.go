package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2026-08-01",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
		{
			name:      "set empty values",
			version:   "",
			commit:    "",
			buildDate: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestExitErrorWrapsCause(t *testing.T) {
	err := exitError("Launch failed", assert.AnError)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "Launch failed")
}

func TestFormatParams(t *testing.T) {
	assert.Equal(t, "-", formatParams(nil))
	assert.Equal(t, "A=1 B=2", formatParams(map[string]string{"B": "2", "A": "1"}))
}

func TestFormatExeArgs(t *testing.T) {
	assert.Equal(t, "-", formatExeArgs(nil))
	assert.Equal(t, "--steps 10 --tol 0.1", formatExeArgs(map[string][]string{
		"--tol":   {"0.1"},
		"--steps": {"10"},
	}))
}
