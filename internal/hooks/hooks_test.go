package hooks

import "testing"

func TestValidEvent(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"pipeline_complete", true},
		{"pipeline_failed", true},
		{"job_failed", true},
		{"pipeline_started", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidEvent(tt.name); got != tt.want {
			t.Errorf("ValidEvent(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEventsCoversAllConstants(t *testing.T) {
	events := Events()
	if len(events) != 3 {
		t.Fatalf("Events() length = %d, want 3", len(events))
	}
	for _, e := range events {
		if !ValidEvent(string(e)) {
			t.Errorf("ValidEvent(%q) = false for a declared event", e)
		}
	}
}
