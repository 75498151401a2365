// Package manifest parses and resolves the pipeline manifest committed to a
// project repository (.gantry.yml). A manifest has two configuration layers:
// a global scope and per-job overrides. Step lists and git settings override
// wholesale, environment variables merge per key. Resolution happens once,
// before execution; the runner only ever sees resolved values.
package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/gantry/internal/errors"
)

// Step names in execution order.
const (
	StepBeforeInstall = "before_install"
	StepInstall       = "install"
	StepBeforeScript  = "before_script"
	StepScript        = "script"
	StepAfterSuccess  = "after_success"
	StepAfterFailure  = "after_failure"
	StepBeforeDeploy  = "before_deploy"
	StepDeploy        = "deploy"
	StepAfterDeploy   = "after_deploy"
	StepAfterScript   = "after_script"
)

// stepOrder is the fixed execution order of all job steps.
var stepOrder = [...]string{
	StepBeforeInstall,
	StepInstall,
	StepBeforeScript,
	StepScript,
	StepAfterSuccess,
	StepAfterFailure,
	StepBeforeDeploy,
	StepDeploy,
	StepAfterDeploy,
	StepAfterScript,
}

// StepNames returns all step names in execution order.
func StepNames() []string {
	names := make([]string, len(stepOrder))
	copy(names, stepOrder[:])
	return names
}

// IsStepName reports whether name is one of the fixed step names.
func IsStepName(name string) bool {
	for _, s := range stepOrder {
		if s == name {
			return true
		}
	}
	return false
}

// DefaultGitDepth is the clone depth applied when a manifest does not set one.
const DefaultGitDepth = 50

// Commands is the command list of a single step. In YAML it may be written
// as one command string or as a sequence of command strings; it marshals
// back to the scalar form when it holds exactly one command.
type Commands []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (c *Commands) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*c = nil
			return nil
		}
		*c = Commands{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make(Commands, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag == "!!null" {
				return fmt.Errorf("line %d: command must be a string", item.Line)
			}
			out = append(out, item.Value)
		}
		*c = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a command string or a list of commands", value.Line)
	}
}

// MarshalYAML emits a single command as a scalar and multiple commands as a
// sequence. Empty command lists marshal to null so omitempty drops them.
func (c Commands) MarshalYAML() (interface{}, error) {
	switch len(c) {
	case 0:
		return nil, nil
	case 1:
		return c[0], nil
	default:
		return []string(c), nil
	}
}

// Steps holds the command lists for every step of a job.
type Steps struct {
	BeforeInstall Commands `yaml:"before_install,omitempty"`
	Install       Commands `yaml:"install,omitempty"`
	BeforeScript  Commands `yaml:"before_script,omitempty"`
	Script        Commands `yaml:"script,omitempty"`
	AfterSuccess  Commands `yaml:"after_success,omitempty"`
	AfterFailure  Commands `yaml:"after_failure,omitempty"`
	BeforeDeploy  Commands `yaml:"before_deploy,omitempty"`
	Deploy        Commands `yaml:"deploy,omitempty"`
	AfterDeploy   Commands `yaml:"after_deploy,omitempty"`
	AfterScript   Commands `yaml:"after_script,omitempty"`
}

// Get returns the command list for the named step.
func (s *Steps) Get(name string) Commands {
	switch name {
	case StepBeforeInstall:
		return s.BeforeInstall
	case StepInstall:
		return s.Install
	case StepBeforeScript:
		return s.BeforeScript
	case StepScript:
		return s.Script
	case StepAfterSuccess:
		return s.AfterSuccess
	case StepAfterFailure:
		return s.AfterFailure
	case StepBeforeDeploy:
		return s.BeforeDeploy
	case StepDeploy:
		return s.Deploy
	case StepAfterDeploy:
		return s.AfterDeploy
	case StepAfterScript:
		return s.AfterScript
	default:
		return nil
	}
}

func (s *Steps) set(name string, c Commands) {
	switch name {
	case StepBeforeInstall:
		s.BeforeInstall = c
	case StepInstall:
		s.Install = c
	case StepBeforeScript:
		s.BeforeScript = c
	case StepScript:
		s.Script = c
	case StepAfterSuccess:
		s.AfterSuccess = c
	case StepAfterFailure:
		s.AfterFailure = c
	case StepBeforeDeploy:
		s.BeforeDeploy = c
	case StepDeploy:
		s.Deploy = c
	case StepAfterDeploy:
		s.AfterDeploy = c
	case StepAfterScript:
		s.AfterScript = c
	}
}

// GitSpec holds the resolved git settings of a job. A depth of zero disables
// repository preparation entirely.
type GitSpec struct {
	Depth      int  `yaml:"depth"`
	Submodules bool `yaml:"submodules"`
}

// EnvMap is a set of environment variables. YAML scalar values of any type
// are accepted and stored as their literal string form.
type EnvMap map[string]string

// UnmarshalYAML accepts a mapping of scalar values.
func (m *EnvMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: env must be a mapping", value.Line)
	}
	out := make(EnvMap, len(value.Content)/2)
	for i := 0; i < len(value.Content)-1; i += 2 {
		key := value.Content[i]
		val := value.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: env value for %q must be a scalar", val.Line, key.Value)
		}
		out[key.Value] = val.Value
	}
	*m = out
	return nil
}

// JobSpec is a fully resolved job: every field is concrete and independent
// of the manifest it was resolved from.
type JobSpec struct {
	Stage string  `yaml:"stage,omitempty"`
	Steps Steps   `yaml:",inline"`
	Git   GitSpec `yaml:"git"`
	Env   EnvMap  `yaml:"env,omitempty"`
}

// rawGit carries unresolved git settings; nil fields inherit defaults.
type rawGit struct {
	depth      *int
	submodules *bool
}

func (g *rawGit) decode(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: git must be a mapping", value.Line)
	}
	var fields struct {
		Depth      *int  `yaml:"depth"`
		Submodules *bool `yaml:"submodules"`
	}
	if err := value.Decode(&fields); err != nil {
		return err
	}
	g.depth = fields.Depth
	g.submodules = fields.Submodules
	return nil
}

// resolve applies defaults to unset fields.
func (g *rawGit) resolve() (GitSpec, error) {
	spec := GitSpec{Depth: DefaultGitDepth, Submodules: true}
	if g != nil {
		if g.depth != nil {
			spec.Depth = *g.depth
		}
		if g.submodules != nil {
			spec.Submodules = *g.submodules
		}
	}
	if spec.Depth < 0 {
		return GitSpec{}, errors.NewGitDepthError(spec.Depth)
	}
	return spec, nil
}

// rawJob is a job as declared in the manifest, before resolution. stepSet
// distinguishes a step that was declared empty (replacing the global value)
// from a step that was never declared (inheriting it).
type rawJob struct {
	stage   string
	steps   Steps
	stepSet map[string]bool
	git     *rawGit
	env     EnvMap
}
