// Package config loads the deployment configuration: where records live,
// how repositories are cloned, and how pipelines are scheduled. All
// fields have working defaults so gantry runs without a config file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/gantry/internal/errors"
	"github.com/felixgeelhaar/gantry/internal/hooks"
)

// EnvConfigPath overrides the configuration file location when the
// --config flag is not given.
const EnvConfigPath = "GANTRY_CONFIG"

const systemPath = "/etc/gantry/gantry.yml"

// Config is the deployment configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Git       GitConfig       `yaml:"git"`
	Runner    RunnerConfig    `yaml:"runner"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
	Hooks     []HookConfig    `yaml:"hooks"`
}

// GitConfig controls how the runner obtains repository material.
type GitConfig struct {
	// URLTemplate is the clone URL with {project} substituted per job.
	URLTemplate string `yaml:"url_template"`
}

// RunnerConfig controls job execution.
type RunnerConfig struct {
	Shell string `yaml:"shell"`
	// PrologScript, when set, runs in the workspace before any git
	// material is prepared.
	PrologScript string `yaml:"prolog_script"`
}

// SchedulerConfig controls job dispatch.
type SchedulerConfig struct {
	// Workers > 1 enables within-stage parallelism.
	Workers int `yaml:"workers"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// HookConfig is one notification hook registration.
type HookConfig struct {
	Event   string `yaml:"event"`
	Script  string `yaml:"script"`
	Webhook string `yaml:"webhook"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		DataDir: "/var/lib/gantry",
		Git: GitConfig{
			URLTemplate: "file:///srv/git/{project}.git",
		},
		Runner: RunnerConfig{
			Shell: "/bin/sh",
		},
		Scheduler: SchedulerConfig{
			Workers: 1,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Load resolves the configuration. Resolution order: the explicit path,
// $GANTRY_CONFIG, then the well-known locations (/etc/gantry/gantry.yml,
// $XDG_CONFIG_HOME/gantry/gantry.yml). An explicit path must exist;
// absent well-known files fall back to the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		return loadFile(path)
	}
	for _, candidate := range searchPaths() {
		if _, err := os.Stat(candidate); err == nil {
			return loadFile(candidate)
		}
	}
	return Default(), nil
}

func searchPaths() []string {
	paths := []string{systemPath}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "gantry", "gantry.yml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gantry", "gantry.yml"))
	}
	return paths
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigDeployment, "read deployment config", err)
	}

	cfg := Default()
	// Environment references like $HOME in data_dir are expanded before
	// parsing.
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigDeployment, "parse deployment config "+path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields whose misconfiguration would only surface
// deep inside a pipeline run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New(errors.ErrCodeConfigDeployment, "data_dir must not be empty")
	}
	if c.Scheduler.Workers < 0 {
		return errors.Newf(errors.ErrCodeConfigDeployment,
			"scheduler.workers must not be negative, got %d", c.Scheduler.Workers)
	}
	for i, h := range c.Hooks {
		if !hooks.ValidEvent(h.Event) {
			return errors.Newf(errors.ErrCodeConfigDeployment,
				"hooks[%d]: unknown event %q", i, h.Event)
		}
		if h.Script == "" && h.Webhook == "" {
			return errors.Newf(errors.ErrCodeConfigDeployment,
				"hooks[%d] (%s): needs a script or a webhook", i, h.Event)
		}
	}
	return nil
}
