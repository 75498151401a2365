// Package hooks delivers pipeline notifications to deployment-configured
// scripts and webhooks. Hook failures are logged and counted, never fatal:
// a broken notifier must not change a pipeline outcome.
package hooks

import (
	"context"
	"time"
)

// Event is a notification trigger.
type Event string

const (
	// EventPipelineComplete fires on every terminal pipeline outcome.
	EventPipelineComplete Event = "pipeline_complete"
	// EventPipelineFailed fires when the pipeline outcome is failed.
	EventPipelineFailed Event = "pipeline_failed"
	// EventJobFailed fires when a job ends failed or errored.
	EventJobFailed Event = "job_failed"
)

// Events returns all known events.
func Events() []Event {
	return []Event{EventPipelineComplete, EventPipelineFailed, EventJobFailed}
}

// ValidEvent reports whether name is a known event.
func ValidEvent(name string) bool {
	for _, e := range Events() {
		if string(e) == name {
			return true
		}
	}
	return false
}

// Context is the payload delivered with an event.
type Context struct {
	Event     Event     `json:"event"`
	Project   string    `json:"project"`
	Pipeline  int       `json:"pipeline"`
	Status    string    `json:"status"`
	Revision  string    `json:"revision"`
	Job       string    `json:"job,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hook delivers one kind of notification.
type Hook interface {
	// Name identifies the hook in logs.
	Name() string

	// Events returns the events this hook subscribes to.
	Events() []Event

	// Execute delivers the notification.
	Execute(ctx context.Context, hc *Context) error
}

// DefaultTimeout bounds a single hook delivery.
const DefaultTimeout = 30 * time.Second

func subscribed(h Hook, event Event) bool {
	for _, e := range h.Events() {
		if e == event {
			return true
		}
	}
	return false
}
