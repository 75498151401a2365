package manifest

import (
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/gantry/internal/errors"
)

// Filename is the manifest location inside a project repository.
const Filename = ".gantry.yml"

// reservedKeys are written by gantry itself and must not appear in a
// user manifest.
var reservedKeys = map[string]bool{
	"meta": true,
}

// Manifest is a parsed pipeline manifest. Jobs keep their declaration order.
type Manifest struct {
	// Stages lists the stage names in execution order. An empty list places
	// every job in the implicit default stage.
	Stages []string

	global   rawJob
	jobs     map[string]*rawJob
	jobNames []string
}

// ParseOptions controls manifest parsing.
type ParseOptions struct {
	// Strict rejects unknown top-level keys instead of ignoring them.
	Strict bool
}

// Parse reads a manifest document. The reserved meta key is rejected
// regardless of options; unknown top-level keys are rejected in strict mode.
func Parse(data []byte, opts ParseOptions) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewConfigParseError(err)
	}
	if len(doc.Content) == 0 {
		// Empty document: no jobs to run.
		return nil, errors.New(errors.ErrCodeConfigNoJobs, "manifest defines no jobs")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New(errors.ErrCodeConfigParse, "manifest must be a YAML mapping")
	}

	m := &Manifest{
		jobs: make(map[string]*rawJob),
	}
	m.global.stepSet = make(map[string]bool)

	for i := 0; i < len(root.Content)-1; i += 2 {
		keyNode := root.Content[i]
		valNode := root.Content[i+1]
		key := keyNode.Value

		switch {
		case reservedKeys[key]:
			return nil, errors.NewReservedKeyError(key)

		case key == "stages":
			if err := valNode.Decode(&m.Stages); err != nil {
				return nil, errors.Wrap(errors.ErrCodeConfigParse, "invalid stages list", err)
			}

		case key == "jobs":
			if err := m.parseJobs(valNode); err != nil {
				return nil, err
			}

		case key == "git":
			g := &rawGit{}
			if err := g.decode(valNode); err != nil {
				return nil, errors.Wrap(errors.ErrCodeConfigParse, "invalid git settings", err)
			}
			m.global.git = g

		case key == "env":
			if err := valNode.Decode(&m.global.env); err != nil {
				return nil, errors.Wrap(errors.ErrCodeConfigEnvValue, "invalid env mapping", err)
			}

		case IsStepName(key):
			var c Commands
			if err := valNode.Decode(&c); err != nil {
				return nil, errors.NewStepValueError(key, err)
			}
			m.global.steps.set(key, c)
			m.global.stepSet[key] = true

		default:
			if opts.Strict {
				return nil, errors.NewUnknownKeyError(key)
			}
		}
	}

	return m, nil
}

func (m *Manifest) parseJobs(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return errors.New(errors.ErrCodeConfigParse, "jobs must be a mapping of job names")
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		nameNode := node.Content[i]
		jobNode := node.Content[i+1]
		name := nameNode.Value

		if _, exists := m.jobs[name]; exists {
			return errors.Newf(errors.ErrCodeConfigParse, "job %q is declared twice", name)
		}

		job, err := parseJob(name, jobNode)
		if err != nil {
			return err
		}
		m.jobs[name] = job
		m.jobNames = append(m.jobNames, name)
	}
	return nil
}

func parseJob(name string, node *yaml.Node) (*rawJob, error) {
	job := &rawJob{stepSet: make(map[string]bool)}

	// A job with no body is valid and runs nothing of its own.
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return job, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.Newf(errors.ErrCodeConfigParse, "job %q must be a mapping", name)
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		key := keyNode.Value

		switch {
		case key == "stage":
			if err := valNode.Decode(&job.stage); err != nil {
				return nil, errors.Wrap(errors.ErrCodeConfigParse,
					"invalid stage for job "+name, err)
			}

		case key == "git":
			g := &rawGit{}
			if err := g.decode(valNode); err != nil {
				return nil, errors.Wrap(errors.ErrCodeConfigParse,
					"invalid git settings for job "+name, err)
			}
			job.git = g

		case key == "env":
			if err := valNode.Decode(&job.env); err != nil {
				return nil, errors.Wrap(errors.ErrCodeConfigEnvValue,
					"invalid env mapping for job "+name, err)
			}

		case IsStepName(key):
			var c Commands
			if err := valNode.Decode(&c); err != nil {
				return nil, errors.NewStepValueError(key, err)
			}
			job.steps.set(key, c)
			job.stepSet[key] = true
		}
		// Unknown job-level keys are ignored; only top-level keys are
		// subject to strict checking.
	}

	return job, nil
}

// JobNames returns the job names in manifest declaration order.
func (m *Manifest) JobNames() []string {
	names := make([]string, len(m.jobNames))
	copy(names, m.jobNames)
	return names
}

// HasJob reports whether the manifest declares the named job.
func (m *Manifest) HasJob(name string) bool {
	_, ok := m.jobs[name]
	return ok
}
