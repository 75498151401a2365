// Package pipeline builds executable pipelines from parsed manifests.
//
// A pipeline groups jobs into the declared stages, in declaration order.
// Jobs that do not name a stage land in one synthetic default stage with an
// empty name that runs before every declared stage; when no stages are
// declared, that default stage is the whole pipeline. Pipelines are
// immutable after Build: execution state lives in the store's job records,
// not here.
package pipeline

import (
	"time"

	"github.com/felixgeelhaar/gantry/internal/manifest"
)

// Commit identifies the revision a pipeline was created for.
type Commit struct {
	Project  string
	Revision string
	// RefType is "branch" or "tag".
	RefType string
	// Contact is the committer e-mail, used for notifications.
	Contact string
	Message string
}

// Meta is the pipeline-level record data.
type Meta struct {
	Project  string    `yaml:"project"`
	ID       int       `yaml:"id,omitempty"`
	Revision string    `yaml:"revision"`
	RefType  string    `yaml:"ref_type,omitempty"`
	Contact  string    `yaml:"contact,omitempty"`
	Created  time.Time `yaml:"created"`
	Outcome  Status    `yaml:"outcome"`
}

// Stage is an ordered group of jobs gated together.
type Stage struct {
	Name   string      `yaml:"name,omitempty"`
	Jobs   []string    `yaml:"jobs"`
	Result StageResult `yaml:"result"`
}

// Job is a named unit of work with its fully resolved settings.
type Job struct {
	Name string           `yaml:"-"`
	Spec manifest.JobSpec `yaml:",inline"`
}

// Pipeline is the executable form of a manifest at one revision.
type Pipeline struct {
	Meta   Meta            `yaml:"meta"`
	Stages []*Stage        `yaml:"stages"`
	Jobs   map[string]*Job `yaml:"jobs"`
}

// Job returns the named job.
func (p *Pipeline) Job(name string) (*Job, bool) {
	j, ok := p.Jobs[name]
	return j, ok
}

// JobNames returns every job name in execution order: stage by stage, and
// within a stage in manifest declaration order.
func (p *Pipeline) JobNames() []string {
	var names []string
	for _, stage := range p.Stages {
		names = append(names, stage.Jobs...)
	}
	return names
}

// Stage returns the named stage. The synthetic default stage has the empty
// name.
func (p *Pipeline) Stage(name string) (*Stage, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}
