package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Manifest and deployment configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigParse           ErrorCode = "CONFIG-001"
	ErrCodeConfigUnknownKey      ErrorCode = "CONFIG-002"
	ErrCodeConfigReservedKey     ErrorCode = "CONFIG-003"
	ErrCodeConfigUndeclaredStage ErrorCode = "CONFIG-004"
	ErrCodeConfigStepValue       ErrorCode = "CONFIG-005"
	ErrCodeConfigGitDepth        ErrorCode = "CONFIG-006"
	ErrCodeConfigEnvValue        ErrorCode = "CONFIG-007"
	ErrCodeConfigNoJobs          ErrorCode = "CONFIG-008"
	ErrCodeConfigUnknownJob      ErrorCode = "CONFIG-009"
	ErrCodeConfigManifestMissing ErrorCode = "CONFIG-010"
	ErrCodeConfigDeployment      ErrorCode = "CONFIG-011"

	// Git operation errors (GIT-001 to GIT-099)
	ErrCodeGitClone     ErrorCode = "GIT-001"
	ErrCodeGitCheckout  ErrorCode = "GIT-002"
	ErrCodeGitSubmodule ErrorCode = "GIT-003"
	ErrCodeGitRead      ErrorCode = "GIT-004"

	// Step execution errors (STEP-001 to STEP-099)
	ErrCodeStepFailed ErrorCode = "STEP-001"
	ErrCodeStepStart  ErrorCode = "STEP-002"

	// Pipeline store errors (STORE-001 to STORE-099)
	ErrCodeStoreCreate       ErrorCode = "STORE-001"
	ErrCodeStoreRead         ErrorCode = "STORE-002"
	ErrCodeStoreWrite        ErrorCode = "STORE-003"
	ErrCodeStoreNotFound     ErrorCode = "STORE-004"
	ErrCodeStoreJobNotFound  ErrorCode = "STORE-005"
	ErrCodeStoreClaimRefused ErrorCode = "STORE-006"

	// Scheduler errors (SCHED-001 to SCHED-099)
	ErrCodeSchedRunner ErrorCode = "SCHED-001"

	// Hook errors (HOOK-001 to HOOK-099)
	ErrCodeHookFailed ErrorCode = "HOOK-001"
)

// GantryError represents an enhanced error with code, suggestions, and documentation
type GantryError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *GantryError) Error() string {
	var b strings.Builder

	// Error code and message
	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	// Add cause if present
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	// Add suggestions
	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	// Add documentation link
	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *GantryError) Unwrap() error {
	return e.Cause
}

// New creates a new GantryError
func New(code ErrorCode, message string) *GantryError {
	return &GantryError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new GantryError with a formatted message
func Newf(code ErrorCode, format string, args ...any) *GantryError {
	return &GantryError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new GantryError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *GantryError {
	return &GantryError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *GantryError) WithSuggestion(suggestion string) *GantryError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *GantryError) WithSuggestions(suggestions ...string) *GantryError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *GantryError) WithDocs(url string) *GantryError {
	e.DocsURL = url
	return e
}

// Common error constructors for frequently used errors

// NewConfigParseError creates a manifest parse error
func NewConfigParseError(cause error) *GantryError {
	return Wrap(ErrCodeConfigParse, "failed to parse pipeline manifest", cause).
		WithSuggestion("Check the YAML syntax of .gantry.yml").
		WithDocs("https://github.com/felixgeelhaar/gantry#pipeline-manifest")
}

// NewUnknownKeyError creates an error for an unrecognized top-level manifest key
func NewUnknownKeyError(key string) *GantryError {
	return Newf(ErrCodeConfigUnknownKey, "unknown configuration key: %s", key).
		WithSuggestion("Valid top-level keys are stages, jobs, git, env, and the step names").
		WithSuggestion("Check for typos in the step name").
		WithDocs("https://github.com/felixgeelhaar/gantry#pipeline-manifest")
}

// NewReservedKeyError creates an error for a key reserved for the executor
func NewReservedKeyError(key string) *GantryError {
	return Newf(ErrCodeConfigReservedKey, "configuration key is reserved: %s", key).
		WithSuggestion("Remove the key from .gantry.yml; it is written by gantry itself")
}

// NewUndeclaredStageError creates an error for a job referencing a stage
// that does not appear in the stages list
func NewUndeclaredStageError(job, stage string) *GantryError {
	return Newf(ErrCodeConfigUndeclaredStage, "job %q references undeclared stage %q", job, stage).
		WithSuggestion("Add the stage to the top-level stages list").
		WithSuggestion("Remove the stage key to place the job in the default stage")
}

// NewStepValueError creates an error for a step that is neither a command
// string nor a sequence of command strings
func NewStepValueError(step string, cause error) *GantryError {
	return Wrap(ErrCodeConfigStepValue, fmt.Sprintf("invalid value for step %q", step), cause).
		WithSuggestion("A step must be a single command string or a list of command strings")
}

// NewGitDepthError creates an error for a negative clone depth
func NewGitDepthError(depth int) *GantryError {
	return Newf(ErrCodeConfigGitDepth, "invalid git depth %d", depth).
		WithSuggestion("Use a positive depth, or 0 to disable cloning entirely")
}

// NewManifestMissingError creates an error for a revision without a manifest
// file when dispatching with --force
func NewManifestMissingError(revision string) *GantryError {
	return Newf(ErrCodeConfigManifestMissing, "no pipeline manifest at revision %s", revision).
		WithSuggestion("Commit a .gantry.yml to the repository").
		WithSuggestion("Drop --force to silently ignore revisions without a manifest")
}

// NewStepFailedError creates an error for a step command exiting non-zero
func NewStepFailedError(step, command string, exitCode int) *GantryError {
	return Newf(ErrCodeStepFailed, "step %q: command %q exited with %d", step, command, exitCode)
}

// NewPipelineNotFoundError creates an error for a missing pipeline record
func NewPipelineNotFoundError(project string, id int) *GantryError {
	return Newf(ErrCodeStoreNotFound, "pipeline %d not found for project %s", id, project).
		WithSuggestion("Check the pipeline ID and project name").
		WithSuggestion("Verify data_dir in the gantry configuration points at the right place")
}

// NewJobNotFoundError creates an error for a job name missing from a pipeline
func NewJobNotFoundError(job string) *GantryError {
	return Newf(ErrCodeStoreJobNotFound, "job %q is not part of the pipeline", job).
		WithSuggestion("Check the job name against the pipeline record")
}

// NewClaimRefusedError creates an error for claiming a job that is not pending
func NewClaimRefusedError(job, status string) *GantryError {
	return Newf(ErrCodeStoreClaimRefused, "job %q cannot start: status is %s", job, status).
		WithSuggestion("A job can only be run once; dispatch a new pipeline to re-run it")
}
