package exitcode

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/gantry/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution. A pipeline or job that ran to
	// a terminal status exits with Success even when that status is failed.
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ConfigError indicates an invalid pipeline manifest or deployment configuration
	ConfigError = 3

	// GitError indicates a git operation failure outside of job execution
	GitError = 4

	// StoreError indicates a pipeline record could not be read or written
	StoreError = 5

	// Interrupted indicates the process was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var gerr *errors.GantryError
	if stderrors.As(err, &gerr) {
		switch family(gerr.Code) {
		case "CONFIG":
			return ConfigError
		case "GIT":
			return GitError
		case "STORE":
			return StoreError
		default:
			return GeneralError
		}
	}

	errMsg := strings.ToLower(err.Error())

	// Usage errors from cobra carry no error code
	if strings.Contains(errMsg, "unknown command") || strings.Contains(errMsg, "unknown flag") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts") {
		return UsageError
	}

	// Default to general error
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ConfigError:
		return "Invalid configuration"
	case GitError:
		return "Git operation failed"
	case StoreError:
		return "Pipeline store error"
	case Interrupted:
		return "Interrupted by signal"
	default:
		return "Unknown error"
	}
}

func family(code errors.ErrorCode) string {
	s := string(code)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}
