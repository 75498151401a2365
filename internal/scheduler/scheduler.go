// Package scheduler walks a pipeline's stages in order and dispatches
// each stage's jobs. Stages are strict barriers: no job of a later stage
// starts before every job of the current stage reached a terminal status,
// and a non-passed stage stops the walk with the remaining stages marked
// not run.
package scheduler

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/gantry/internal/log"
	"github.com/felixgeelhaar/gantry/internal/pipeline"
	"github.com/felixgeelhaar/gantry/internal/store"
)

// JobRunner runs one job of a pipeline to a terminal status.
type JobRunner interface {
	RunJob(ctx context.Context, p *pipeline.Pipeline, job string) (pipeline.Status, error)
}

// Scheduler dispatches a pipeline's jobs stage by stage.
type Scheduler struct {
	store   *store.Store
	runner  JobRunner
	workers int
	logger  *log.Logger
}

// New creates a scheduler running up to workers jobs of a stage
// concurrently. A worker count below two dispatches sequentially.
func New(st *store.Store, runner JobRunner, workers int, logger *log.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Scheduler{store: st, runner: runner, workers: workers, logger: logger}
}

// Run executes the pipeline and records stage results and the final
// outcome. A failed pipeline is a normal outcome reported through the
// status; the error covers infrastructure faults only. Even then the
// walk finishes so every stage carries a result.
func (s *Scheduler) Run(ctx context.Context, p *pipeline.Pipeline) (pipeline.Status, error) {
	project, id := p.Meta.Project, p.Meta.ID
	logger := s.logger.With("project", project, "pipeline", id)

	outcome := pipeline.StatusPassed
	var firstErr error
	for _, stage := range p.Stages {
		if outcome != pipeline.StatusPassed {
			// Jobs of skipped stages keep their pending records.
			if err := s.store.UpdateStage(project, id, stage.Name, pipeline.StageNotRun); err != nil {
				return outcome, err
			}
			continue
		}

		if err := s.store.UpdateStage(project, id, stage.Name, pipeline.StageRunning); err != nil {
			return pipeline.StatusFailed, err
		}
		logger.Info("stage started", "stage", stage.Name, "jobs", len(stage.Jobs))

		status, err := s.runStage(ctx, p, stage.Jobs)
		if err != nil && firstErr == nil {
			firstErr = err
		}

		result := pipeline.StagePassed
		if status != pipeline.StatusPassed {
			result = pipeline.StageFailed
			outcome = pipeline.StatusFailed
		}
		if err := s.store.UpdateStage(project, id, stage.Name, result); err != nil {
			return outcome, err
		}
		logger.Info("stage finished", "stage", stage.Name, "result", result.String())
	}

	if err := s.store.SetOutcome(project, id, outcome); err != nil {
		return outcome, err
	}
	logger.Info("pipeline finished", "outcome", outcome.String())
	return outcome, firstErr
}

// runStage dispatches one stage's jobs and aggregates their statuses. A
// job whose runner faulted counts as errored so the stage still settles.
func (s *Scheduler) runStage(ctx context.Context, p *pipeline.Pipeline, jobs []string) (pipeline.Status, error) {
	if s.workers > 1 && len(jobs) > 1 {
		return s.runParallel(ctx, p, jobs)
	}

	statuses := make([]pipeline.Status, len(jobs))
	var firstErr error
	for i, name := range jobs {
		status, err := s.runner.RunJob(ctx, p, name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			status = pipeline.StatusErrored
		}
		statuses[i] = status
	}
	return pipeline.Worst(statuses...), firstErr
}

func (s *Scheduler) runParallel(ctx context.Context, p *pipeline.Pipeline, jobs []string) (pipeline.Status, error) {
	statuses := make([]pipeline.Status, len(jobs))
	errs := make([]error, len(jobs))
	sem := make(chan struct{}, s.workers)

	var wg sync.WaitGroup
	for i, name := range jobs {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			status, err := s.runner.RunJob(ctx, p, name)
			if err != nil {
				errs[i] = err
				status = pipeline.StatusErrored
			}
			statuses[i] = status
		}(i, name)
	}
	wg.Wait()

	var firstErr error
	for _, err := range errs {
		if err != nil {
			firstErr = err
			break
		}
	}
	return pipeline.Worst(statuses...), firstErr
}
