package pipeline

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/felixgeelhaar/gantry/internal/manifest"
)

// ErrSkipped signals that the commit message opted out of CI. It is a
// signal, not a failure: dispatchers treat it as a successful no-op.
var ErrSkipped = stderrors.New("pipeline skipped by commit message")

// Skip directives are matched case-sensitively anywhere in the message.
const (
	skipDirectiveCI   = "[ci skip]"
	skipDirectiveSkip = "[skip ci]"
)

// Skipped reports whether a commit message carries a skip directive.
// Callers check this before paying any manifest parsing cost.
func Skipped(message string) bool {
	return strings.Contains(message, skipDirectiveCI) ||
		strings.Contains(message, skipDirectiveSkip)
}

// Build validates and fully resolves the manifest for one commit. After it
// returns, no component consults the manifest's global scope again. Returns
// ErrSkipped when the commit message opted out.
func Build(commit Commit, m *manifest.Manifest) (*Pipeline, error) {
	if Skipped(commit.Message) {
		return nil, ErrSkipped
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	specs, err := m.ResolveAll()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Meta: Meta{
			Project:  commit.Project,
			Revision: commit.Revision,
			RefType:  commit.RefType,
			Contact:  commit.Contact,
			Created:  time.Now().UTC(),
			Outcome:  StatusPending,
		},
		Jobs: make(map[string]*Job, len(specs)),
	}

	byStage := make(map[string]*Stage, len(m.Stages))
	declared := make([]*Stage, 0, len(m.Stages))
	for _, name := range m.Stages {
		s := &Stage{Name: name, Result: StagePending}
		byStage[name] = s
		declared = append(declared, s)
	}
	var defaultStage *Stage

	for _, name := range m.JobNames() {
		spec := specs[name]
		p.Jobs[name] = &Job{Name: name, Spec: *spec}

		if spec.Stage == "" {
			if defaultStage == nil {
				defaultStage = &Stage{Result: StagePending}
			}
			defaultStage.Jobs = append(defaultStage.Jobs, name)
			continue
		}
		// Validate has already checked the reference.
		byStage[spec.Stage].Jobs = append(byStage[spec.Stage].Jobs, name)
	}

	if defaultStage != nil {
		p.Stages = append(p.Stages, defaultStage)
	}
	for _, s := range declared {
		// Declared stages no job ended up in are not part of the run.
		if len(s.Jobs) > 0 {
			p.Stages = append(p.Stages, s)
		}
	}

	return p, nil
}
