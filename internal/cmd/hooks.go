package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/gantry/internal/config"
	"github.com/felixgeelhaar/gantry/internal/hooks"
	"github.com/felixgeelhaar/gantry/internal/log"
	"github.com/felixgeelhaar/gantry/internal/pipeline"
	"github.com/felixgeelhaar/gantry/internal/store"
)

// buildHooks turns the deployment's hook entries into hook instances. An
// entry carrying both a script and a webhook yields two hooks.
func buildHooks(cfg *config.Config) ([]hooks.Hook, error) {
	var out []hooks.Hook
	for i, hc := range cfg.Hooks {
		events := []hooks.Event{hooks.Event(hc.Event)}
		if hc.Script != "" {
			h, err := hooks.NewScriptHook(fmt.Sprintf("script-%d", i+1), events, hc.Script)
			if err != nil {
				return nil, fmt.Errorf("hook %d: %w", i+1, err)
			}
			out = append(out, h)
		}
		if hc.Webhook != "" {
			h, err := hooks.NewWebhookHook(fmt.Sprintf("webhook-%d", i+1), events, hc.Webhook)
			if err != nil {
				return nil, fmt.Errorf("hook %d: %w", i+1, err)
			}
			out = append(out, h)
		}
	}
	return out, nil
}

// fireNotifications delivers the completion events of a finished
// pipeline: pipeline_complete always, pipeline_failed for a red outcome,
// and job_failed for every failed or errored job.
func fireNotifications(ctx context.Context, runLogger *log.Logger, st *store.Store, p *pipeline.Pipeline, outcome pipeline.Status) {
	hookList, err := buildHooks(deployment)
	if err != nil {
		runLogger.WithError(err).Warn("hook setup failed")
		return
	}
	if len(hookList) == 0 {
		return
	}
	executor := hooks.NewExecutor(hookList, runLogger)

	base := hooks.Context{
		Project:   p.Meta.Project,
		Pipeline:  p.Meta.ID,
		Revision:  p.Meta.Revision,
		Timestamp: time.Now().UTC(),
	}

	complete := base
	complete.Event = hooks.EventPipelineComplete
	complete.Status = outcome.String()
	executor.Fire(ctx, &complete)

	if outcome != pipeline.StatusPassed {
		failed := base
		failed.Event = hooks.EventPipelineFailed
		failed.Status = outcome.String()
		executor.Fire(ctx, &failed)
	}

	for _, name := range p.JobNames() {
		rec, err := st.ReadJob(p.Meta.Project, p.Meta.ID, name)
		if err != nil {
			runLogger.WithError(err).Warn("cannot read job record for notification", "job", name)
			continue
		}
		if rec.Status != pipeline.StatusFailed && rec.Status != pipeline.StatusErrored {
			continue
		}
		jobFailed := base
		jobFailed.Event = hooks.EventJobFailed
		jobFailed.Job = name
		jobFailed.Status = rec.Status.String()
		executor.Fire(ctx, &jobFailed)
	}
}
