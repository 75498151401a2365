package hooks

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/gantry/internal/log"
)

type fakeHook struct {
	name   string
	events []Event
	fail   bool
	block  bool

	mu    sync.Mutex
	calls int
}

func (f *fakeHook) Name() string    { return f.name }
func (f *fakeHook) Events() []Event { return f.events }

func (f *fakeHook) Execute(ctx context.Context, _ *Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.fail {
		return stderrors.New("delivery refused")
	}
	return nil
}

func (f *fakeHook) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.Development()
}

func TestFireFiltersByEvent(t *testing.T) {
	complete := &fakeHook{name: "complete", events: []Event{EventPipelineComplete}}
	failedOnly := &fakeHook{name: "failed", events: []Event{EventPipelineFailed}}

	e := NewExecutor([]Hook{complete, failedOnly}, testLogger(t))
	failures := e.Fire(context.Background(), &Context{Event: EventPipelineComplete})

	if failures != 0 {
		t.Errorf("Fire() failures = %d, want 0", failures)
	}
	if complete.callCount() != 1 {
		t.Errorf("subscribed hook calls = %d, want 1", complete.callCount())
	}
	if failedOnly.callCount() != 0 {
		t.Errorf("unsubscribed hook calls = %d, want 0", failedOnly.callCount())
	}
}

func TestFireCountsFailuresWithoutAborting(t *testing.T) {
	bad := &fakeHook{name: "bad", events: []Event{EventPipelineFailed}, fail: true}
	good := &fakeHook{name: "good", events: []Event{EventPipelineFailed}}

	e := NewExecutor([]Hook{bad, good}, testLogger(t))
	failures := e.Fire(context.Background(), &Context{Event: EventPipelineFailed})

	if failures != 1 {
		t.Errorf("Fire() failures = %d, want 1", failures)
	}
	if good.callCount() != 1 {
		t.Error("healthy hook did not run alongside the failing one")
	}
}

func TestFireWithNoSubscribers(t *testing.T) {
	e := NewExecutor(nil, testLogger(t))
	if failures := e.Fire(context.Background(), &Context{Event: EventJobFailed}); failures != 0 {
		t.Errorf("Fire() failures = %d, want 0", failures)
	}
}

func TestFireTimesOutSlowHooks(t *testing.T) {
	slow := &fakeHook{name: "slow", events: []Event{EventPipelineComplete}, block: true}

	e := NewExecutor([]Hook{slow}, testLogger(t))
	e.SetTimeout(50 * time.Millisecond)

	started := time.Now()
	failures := e.Fire(context.Background(), &Context{Event: EventPipelineComplete})

	if failures != 1 {
		t.Errorf("Fire() failures = %d, want 1 for a timed-out hook", failures)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("Fire() took %v, want prompt timeout", elapsed)
	}
}

func TestFireRunsEveryDeliveryUnderConcurrencyBound(t *testing.T) {
	var hooks []Hook
	var fakes []*fakeHook
	for i := 0; i < 8; i++ {
		f := &fakeHook{name: "h", events: []Event{EventPipelineComplete}}
		hooks = append(hooks, f)
		fakes = append(fakes, f)
	}

	e := NewExecutor(hooks, testLogger(t))
	e.SetMaxConcurrency(2)
	failures := e.Fire(context.Background(), &Context{Event: EventPipelineComplete})

	if failures != 0 {
		t.Errorf("Fire() failures = %d, want 0", failures)
	}
	for i, f := range fakes {
		if f.callCount() != 1 {
			t.Errorf("hook %d calls = %d, want 1", i, f.callCount())
		}
	}
}
