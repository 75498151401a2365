package pipeline

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusPending, "pending"},
		{StatusRunning, "running"},
		{StatusErrored, "errored"},
		{StatusFailed, "failed"},
		{StatusPassed, "passed"},
		{Status(42), "status(42)"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending: false,
		StatusRunning: false,
		StatusErrored: true,
		StatusFailed:  true,
		StatusPassed:  true,
	}

	count := 0
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
		if want {
			count++
		}
	}
	if count != 3 {
		t.Errorf("terminal status count = %d, want 3", count)
	}
}

func TestParseStatus(t *testing.T) {
	for _, name := range []string{"pending", "running", "errored", "failed", "passed"} {
		status, err := ParseStatus(name)
		if err != nil {
			t.Fatalf("ParseStatus(%q) unexpected error = %v", name, err)
		}
		if status.String() != name {
			t.Errorf("ParseStatus(%q).String() = %q", name, status.String())
		}
	}

	if _, err := ParseStatus("exploded"); err == nil {
		t.Error("ParseStatus(exploded) expected error, got nil")
	}
}

func TestWorst(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty set", nil, StatusPassed},
		{"all passed", []Status{StatusPassed, StatusPassed}, StatusPassed},
		{"failed beats passed", []Status{StatusPassed, StatusFailed}, StatusFailed},
		{"errored beats failed", []Status{StatusFailed, StatusErrored, StatusPassed}, StatusErrored},
		{"running beats errored", []Status{StatusErrored, StatusRunning}, StatusRunning},
		{"pending beats everything", []Status{StatusPassed, StatusPending, StatusFailed}, StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Worst(tt.statuses...); got != tt.want {
				t.Errorf("Worst(%v) = %s, want %s", tt.statuses, got, tt.want)
			}
		})
	}
}

func TestStatusYAML(t *testing.T) {
	type record struct {
		Status Status `yaml:"status"`
	}

	data, err := yaml.Marshal(record{Status: StatusFailed})
	if err != nil {
		t.Fatalf("Marshal() unexpected error = %v", err)
	}
	if string(data) != "status: failed\n" {
		t.Errorf("Marshal() = %q, want %q", data, "status: failed\n")
	}

	var got record
	if err := yaml.Unmarshal([]byte("status: errored\n"), &got); err != nil {
		t.Fatalf("Unmarshal() unexpected error = %v", err)
	}
	if got.Status != StatusErrored {
		t.Errorf("Unmarshal() status = %s, want errored", got.Status)
	}

	if err := yaml.Unmarshal([]byte("status: broken\n"), &got); err == nil {
		t.Error("Unmarshal() expected error for unknown status, got nil")
	}
}

func TestStageResultNames(t *testing.T) {
	tests := []struct {
		result StageResult
		want   string
	}{
		{StagePending, "pending"},
		{StageRunning, "running"},
		{StagePassed, "passed"},
		{StageFailed, "failed"},
		{StageNotRun, "not_run"},
	}

	for _, tt := range tests {
		if got := tt.result.String(); got != tt.want {
			t.Errorf("StageResult.String() = %q, want %q", got, tt.want)
		}
		parsed, err := ParseStageResult(tt.want)
		if err != nil {
			t.Fatalf("ParseStageResult(%q) unexpected error = %v", tt.want, err)
		}
		if parsed != tt.result {
			t.Errorf("ParseStageResult(%q) = %v, want %v", tt.want, parsed, tt.result)
		}
	}

	if _, err := ParseStageResult("skipped"); err == nil {
		t.Error("ParseStageResult(skipped) expected error, got nil")
	}
}

func TestStageResultYAML(t *testing.T) {
	type record struct {
		Result StageResult `yaml:"result"`
	}

	data, err := yaml.Marshal(record{Result: StageNotRun})
	if err != nil {
		t.Fatalf("Marshal() unexpected error = %v", err)
	}
	if string(data) != "result: not_run\n" {
		t.Errorf("Marshal() = %q, want %q", data, "result: not_run\n")
	}

	var got record
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() unexpected error = %v", err)
	}
	if got.Result != StageNotRun {
		t.Errorf("Unmarshal() result = %s, want not_run", got.Result)
	}
}
