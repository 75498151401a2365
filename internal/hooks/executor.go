package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/gantry/internal/log"
)

// Executor fans an event out to every subscribed hook.
type Executor struct {
	hooks          []Hook
	maxConcurrency int
	timeout        time.Duration
	logger         *log.Logger
}

// NewExecutor creates an executor over a fixed hook set.
func NewExecutor(hooks []Hook, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Executor{
		hooks:          hooks,
		maxConcurrency: 4,
		timeout:        DefaultTimeout,
		logger:         logger,
	}
}

// SetMaxConcurrency bounds parallel deliveries.
func (e *Executor) SetMaxConcurrency(max int) {
	if max < 1 {
		max = 1
	}
	e.maxConcurrency = max
}

// SetTimeout bounds a single delivery.
func (e *Executor) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e.timeout = timeout
}

// Fire delivers the event to every subscribed hook and returns the number
// of failed deliveries. Failures are logged, never returned: notification
// problems must not alter pipeline outcomes.
func (e *Executor) Fire(ctx context.Context, hc *Context) int {
	var selected []Hook
	for _, h := range e.hooks {
		if subscribed(h, hc.Event) {
			selected = append(selected, h)
		}
	}
	if len(selected) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxConcurrency)
	var mu sync.Mutex
	failed := 0

	for _, h := range selected {
		wg.Add(1)
		go func(h Hook) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			hookCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			started := time.Now()
			if err := h.Execute(hookCtx, hc); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				e.logger.Warn("hook delivery failed",
					"hook", h.Name(),
					"event", string(hc.Event),
					"duration", time.Since(started).String(),
					"error", err.Error(),
				)
				return
			}
			e.logger.Debug("hook delivered",
				"hook", h.Name(),
				"event", string(hc.Event),
				"duration", time.Since(started).String(),
			)
		}(h)
	}

	wg.Wait()
	return failed
}
