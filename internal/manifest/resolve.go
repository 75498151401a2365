package manifest

import (
	"github.com/felixgeelhaar/gantry/internal/errors"
)

// Validate checks stage references and git settings across the whole
// manifest. It is called once after Parse so that every job is rejected
// or accepted before any pipeline record is written.
func (m *Manifest) Validate() error {
	if len(m.jobNames) == 0 {
		return errors.New(errors.ErrCodeConfigNoJobs, "manifest defines no jobs")
	}

	declared := make(map[string]bool, len(m.Stages))
	for _, s := range m.Stages {
		declared[s] = true
	}

	if m.global.git != nil {
		if _, err := m.global.git.resolve(); err != nil {
			return err
		}
	}

	for _, name := range m.jobNames {
		job := m.jobs[name]
		if job.stage != "" && !declared[job.stage] {
			return errors.NewUndeclaredStageError(name, job.stage)
		}
		if job.git != nil {
			if _, err := job.git.resolve(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resolve produces the effective spec for a job by layering it over the
// manifest globals. Step lists and the git block override wholesale; env
// merges key by key with the job side winning.
func (m *Manifest) Resolve(name string) (*JobSpec, error) {
	job, ok := m.jobs[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeConfigUnknownJob,
			"manifest does not declare job "+name)
	}

	spec := &JobSpec{Stage: job.stage}

	for _, step := range stepOrder {
		switch {
		case job.stepSet[step]:
			spec.Steps.set(step, job.steps.Get(step).clone())
		case m.global.stepSet[step]:
			spec.Steps.set(step, m.global.steps.Get(step).clone())
		}
	}

	raw := job.git
	if raw == nil {
		raw = m.global.git
	}
	if raw == nil {
		raw = &rawGit{}
	}
	git, err := raw.resolve()
	if err != nil {
		return nil, err
	}
	spec.Git = git

	if len(m.global.env) > 0 || len(job.env) > 0 {
		spec.Env = make(EnvMap, len(m.global.env)+len(job.env))
		for k, v := range m.global.env {
			spec.Env[k] = v
		}
		for k, v := range job.env {
			spec.Env[k] = v
		}
	}

	return spec, nil
}

// ResolveAll resolves every job in declaration order.
func (m *Manifest) ResolveAll() (map[string]*JobSpec, error) {
	specs := make(map[string]*JobSpec, len(m.jobNames))
	for _, name := range m.jobNames {
		spec, err := m.Resolve(name)
		if err != nil {
			return nil, err
		}
		specs[name] = spec
	}
	return specs, nil
}

func (c Commands) clone() Commands {
	if c == nil {
		return nil
	}
	out := make(Commands, len(c))
	copy(out, c)
	return out
}
