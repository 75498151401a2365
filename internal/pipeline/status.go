package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Status is the execution state of a job or pipeline. The values are
// ordered so that the aggregate of a set of jobs is their minimum: a
// pipeline with one pending job is pending, one with an errored job is
// errored, and only an all-passed set aggregates to passed.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusErrored
	StatusFailed
	StatusPassed
)

var statusNames = map[Status]string{
	StatusPending: "pending",
	StatusRunning: "running",
	StatusErrored: "errored",
	StatusFailed:  "failed",
	StatusPassed:  "passed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether s is a final state. Exactly three states are
// terminal: passed, failed, errored.
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored:
		return true
	}
	return false
}

// ParseStatus converts a stored status string back to a Status.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return StatusPending, fmt.Errorf("unknown status %q", name)
}

// Worst aggregates statuses by taking the minimum of the ordering.
// Worst of an empty set is passed.
func Worst(statuses ...Status) Status {
	worst := StatusPassed
	for _, s := range statuses {
		if s < worst {
			worst = s
		}
	}
	return worst
}

// MarshalYAML stores the status under its string name.
func (s Status) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML reads a status from its string name.
func (s *Status) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseStatus(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = parsed
	return nil
}

// StageResult is the recorded outcome of one stage. It is bookkeeping for
// the pipeline record, not part of the job status ordering: a stage whose
// gate never opened is not_run rather than pending forever.
type StageResult int

const (
	StagePending StageResult = iota
	StageRunning
	StagePassed
	StageFailed
	StageNotRun
)

var stageResultNames = map[StageResult]string{
	StagePending: "pending",
	StageRunning: "running",
	StagePassed:  "passed",
	StageFailed:  "failed",
	StageNotRun:  "not_run",
}

func (r StageResult) String() string {
	if name, ok := stageResultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("stage_result(%d)", int(r))
}

// ParseStageResult converts a stored stage result string back to a
// StageResult.
func ParseStageResult(name string) (StageResult, error) {
	for r, n := range stageResultNames {
		if n == name {
			return r, nil
		}
	}
	return StagePending, fmt.Errorf("unknown stage result %q", name)
}

// MarshalYAML stores the result under its string name.
func (r StageResult) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// UnmarshalYAML reads a stage result from its string name.
func (r *StageResult) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseStageResult(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*r = parsed
	return nil
}
