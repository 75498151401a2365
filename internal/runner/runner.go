// Package runner executes a single job from claim to terminal status.
//
// The lifecycle: claim the pending job record, create an isolated
// workspace, run the deployment prolog, prepare git material, then walk
// the step sequence. A failure in before_install, install, before_script,
// or any git operation errors the job and stops the lifecycle entirely; a
// script or deploy failure fails the job but still runs the closing
// steps. The exit codes of after_* steps never change the job status. The
// workspace is removed on every exit path.
package runner

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/felixgeelhaar/gantry/internal/errors"
	"github.com/felixgeelhaar/gantry/internal/gitcmd"
	"github.com/felixgeelhaar/gantry/internal/log"
	"github.com/felixgeelhaar/gantry/internal/manifest"
	"github.com/felixgeelhaar/gantry/internal/pipeline"
	"github.com/felixgeelhaar/gantry/internal/shell"
	"github.com/felixgeelhaar/gantry/internal/store"
)

// commandShell is the slice of internal/shell the runner uses. Tests
// substitute a scripted implementation.
type commandShell interface {
	RunAll(ctx context.Context, dir string, env []string, commands []string, output io.Writer) (*shell.Result, error)
	RunArgv(ctx context.Context, dir string, env []string, argv []string, output io.Writer) (*shell.Result, error)
}

// Options carries the deployment settings the runner needs.
type Options struct {
	// URLTemplate is the clone URL with {project} substituted.
	URLTemplate string
	// PrologScript, when set, runs in the workspace before git material
	// is prepared.
	PrologScript string
}

// Runner executes jobs against a store.
type Runner struct {
	store  *store.Store
	sh     commandShell
	opts   Options
	logger *log.Logger
}

// New creates a runner.
func New(st *store.Store, sh *shell.Runner, opts Options, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Runner{store: st, sh: sh, opts: opts, logger: logger}
}

// RunJob executes one job to a terminal status and records it. The
// returned error reports infrastructure faults around the records (claim
// conflicts, store I/O); execution failures inside the job are expressed
// through the status alone. When RunJob returns nil, the terminal status
// has been persisted and no job is left pending or running.
func (r *Runner) RunJob(ctx context.Context, p *pipeline.Pipeline, jobName string) (pipeline.Status, error) {
	job, ok := p.Job(jobName)
	if !ok {
		return pipeline.StatusPending, errors.NewJobNotFoundError(jobName)
	}
	project, id := p.Meta.Project, p.Meta.ID

	rec, err := r.store.ReadJob(project, id, jobName)
	if err != nil {
		return pipeline.StatusPending, err
	}
	if rec.Status != pipeline.StatusPending {
		return pipeline.StatusPending, errors.NewClaimRefusedError(jobName, rec.Status.String())
	}
	rec.Status = pipeline.StatusRunning
	rec.Start = time.Now().Unix()
	if err := r.store.WriteJob(project, id, jobName, rec); err != nil {
		return pipeline.StatusPending, err
	}

	logger := r.logger.With("project", project, "pipeline", id, "job", jobName)
	logger.Info("job claimed")

	var status pipeline.Status
	sink, err := r.store.JobLog(project, id, jobName)
	if err != nil {
		logger.Error("cannot open job log", "error", err.Error())
		status = pipeline.StatusErrored
	} else {
		status = r.execute(ctx, p, job, sink, logger)
		if err := sink.Close(); err != nil {
			logger.Warn("closing job log failed", "error", err.Error())
		}
	}

	rec.Status = status
	rec.End = time.Now().Unix()
	if err := r.store.WriteJob(project, id, jobName, rec); err != nil {
		return status, err
	}
	logger.Info("job finished",
		"status", status.String(),
		"duration", time.Duration(rec.End-rec.Start)*time.Second,
	)
	return status, nil
}

// execute runs the job lifecycle inside a fresh workspace and returns the
// terminal status.
func (r *Runner) execute(ctx context.Context, p *pipeline.Pipeline, job *pipeline.Job, sink *store.StepLog, logger *log.Logger) pipeline.Status {
	workdir, err := os.MkdirTemp("", "gantry-job-")
	if err != nil {
		logger.Error("cannot create workspace", "error", err.Error())
		return pipeline.StatusErrored
	}
	defer func() {
		if err := os.RemoveAll(workdir); err != nil {
			logger.Warn("workspace removal failed", "dir", workdir, "error", err.Error())
		}
	}()

	env := shell.Environ(job.Spec.Env)

	if r.opts.PrologScript != "" {
		if !r.runArgvStep(ctx, sink, "prolog", [][]string{{r.opts.PrologScript}}, workdir, env, logger) {
			return pipeline.StatusErrored
		}
	}

	if job.Spec.Git.Depth != 0 {
		url := gitcmd.CloneURL(r.opts.URLTemplate, p.Meta.Project)
		plan := gitcmd.ClonePlan(job.Spec.Git.Depth, url, p.Meta.Revision, job.Spec.Git.Submodules)
		if !r.runArgvStep(ctx, sink, "git", plan, workdir, env, logger) {
			return pipeline.StatusErrored
		}
	}

	return r.runSteps(ctx, job, sink, workdir, env, logger)
}

// runSteps walks the fixed step sequence and applies the failure rules.
func (r *Runner) runSteps(ctx context.Context, job *pipeline.Job, sink *store.StepLog, workdir string, env []string, logger *log.Logger) pipeline.Status {
	w := &stepWalk{
		runner:  r,
		ctx:     ctx,
		steps:   &job.Spec.Steps,
		sink:    sink,
		workdir: workdir,
		env:     env,
		logger:  logger,
	}

	// An install-phase failure stops the lifecycle entirely: no
	// after_failure, no after_script.
	for _, name := range []string{manifest.StepBeforeInstall, manifest.StepInstall, manifest.StepBeforeScript} {
		if !w.run(name) {
			return pipeline.StatusErrored
		}
	}

	status := pipeline.StatusPassed
	if w.run(manifest.StepScript) {
		w.run(manifest.StepAfterSuccess)

		// Deploy phases run only when the script phase succeeded.
		switch {
		case !w.run(manifest.StepBeforeDeploy):
			status = pipeline.StatusErrored
		case !w.run(manifest.StepDeploy):
			status = pipeline.StatusFailed
		default:
			w.run(manifest.StepAfterDeploy)
		}
	} else {
		status = pipeline.StatusFailed
		w.run(manifest.StepAfterFailure)
	}

	w.run(manifest.StepAfterScript)

	// Only exit codes feed the status rules above. An infrastructure
	// fault errors the job no matter which step it hit.
	if w.err != nil {
		return pipeline.StatusErrored
	}
	return status
}

// stepWalk runs steps until the first infrastructure error; after one,
// every further run is a no-op.
type stepWalk struct {
	runner  *Runner
	ctx     context.Context
	steps   *manifest.Steps
	sink    *store.StepLog
	workdir string
	env     []string
	logger  *log.Logger
	err     error
}

// run reports whether the named step finished with exit code zero. Steps
// with no commands count as successful.
func (w *stepWalk) run(name string) bool {
	if w.err != nil {
		return false
	}
	ok, err := w.runner.runStep(w.ctx, w.sink, name, w.steps.Get(name), w.workdir, w.env, w.logger)
	if err != nil {
		w.err = err
		return false
	}
	return ok
}

// runStep executes one step's command list, stopping at the first failing
// command. Empty steps are skipped without opening a log file. The error
// reports faults around the commands, not their exit codes.
func (r *Runner) runStep(ctx context.Context, sink *store.StepLog, name string, commands manifest.Commands, workdir string, env []string, logger *log.Logger) (bool, error) {
	if len(commands) == 0 {
		return true, nil
	}
	w, err := sink.StartStep(name)
	if err != nil {
		logger.Error("cannot open step log", "step", name, "error", err.Error())
		return false, err
	}
	res, err := r.sh.RunAll(ctx, workdir, env, commands, w)
	if err != nil {
		logger.Error("step could not run", "step", name, "error", err.Error())
		return false, err
	}
	return res == nil || res.ExitCode == 0, nil
}

// runArgvStep executes a sequence of direct commands under one step log,
// stopping at the first failure.
func (r *Runner) runArgvStep(ctx context.Context, sink *store.StepLog, name string, plan [][]string, workdir string, env []string, logger *log.Logger) bool {
	if len(plan) == 0 {
		return true
	}
	w, err := sink.StartStep(name)
	if err != nil {
		logger.Error("cannot open step log", "step", name, "error", err.Error())
		return false
	}
	for _, argv := range plan {
		res, err := r.sh.RunArgv(ctx, workdir, env, argv, w)
		if err != nil {
			logger.Error("step could not run", "step", name, "error", err.Error())
			return false
		}
		if res.ExitCode != 0 {
			return false
		}
	}
	return true
}
