package exitcode

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/gantry/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"ConfigError", ConfigError, 3},
		{"GitError", GitError, 4},
		{"StoreError", StoreError, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "manifest parse error",
			err:      errors.New(errors.ErrCodeConfigParse, "bad yaml"),
			expected: ConfigError,
		},
		{
			name:     "undeclared stage error",
			err:      errors.NewUndeclaredStageError("build", "missing"),
			expected: ConfigError,
		},
		{
			name:     "git read error",
			err:      errors.New(errors.ErrCodeGitRead, "git show failed"),
			expected: GitError,
		},
		{
			name:     "store write error",
			err:      errors.New(errors.ErrCodeStoreWrite, "disk full"),
			expected: StoreError,
		},
		{
			name:     "pipeline not found",
			err:      errors.NewPipelineNotFoundError("demo", 7),
			expected: StoreError,
		},
		{
			name:     "wrapped coded error",
			err:      fmt.Errorf("context: %w", errors.New(errors.ErrCodeConfigGitDepth, "negative depth")),
			expected: ConfigError,
		},
		{
			name:     "scheduler error maps to general",
			err:      errors.New(errors.ErrCodeSchedRunner, "runner vanished"),
			expected: GeneralError,
		},
		{
			name:     "unknown command",
			err:      stderrors.New("unknown command \"dispatchh\" for \"gantry\""),
			expected: UsageError,
		},
		{
			name:     "unknown flag",
			err:      stderrors.New("unknown flag: --depthh"),
			expected: UsageError,
		},
		{
			name:     "wrong arg count",
			err:      stderrors.New("accepts 2 arg(s), received 1"),
			expected: UsageError,
		},
		{
			name:     "generic error",
			err:      stderrors.New("something went wrong"),
			expected: GeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := DetermineExitCode(tt.err)
			if code != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, code, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{UsageError, "Usage error (invalid flags or arguments)"},
		{ConfigError, "Invalid configuration"},
		{GitError, "Git operation failed"},
		{StoreError, "Pipeline store error"},
		{99, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := GetExitCodeDescription(tt.code)
			if result != tt.expected {
				t.Errorf("GetExitCodeDescription(%d) = %s, want %s", tt.code, result, tt.expected)
			}
		})
	}
}
