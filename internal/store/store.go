// Package store persists pipeline and job records as flat files.
//
// Layout under the data directory:
//
//	<data_dir>/<project>/<id>/pipeline.yml
//	<data_dir>/<project>/<id>/jobs/<job>.yml
//	<data_dir>/<project>/<id>/logs/<job>/NN_<step>.log
//
// Every record write goes to a temporary file in the target directory
// followed by a rename, so readers never observe a partial record. There
// are no file locks: after creation the scheduler is the only writer of
// pipeline.yml, and each runner writes only its own job record and logs.
package store

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/gantry/internal/errors"
	"github.com/felixgeelhaar/gantry/internal/pipeline"
)

// createRetries bounds how often Create re-scans for a free pipeline ID
// when racing another dispatcher.
const createRetries = 5

// JobRecord is the mutable execution state of one job. Start and End are
// unix seconds; zero means not yet reached.
type JobRecord struct {
	Status pipeline.Status `yaml:"status"`
	Start  int64           `yaml:"start,omitempty"`
	End    int64           `yaml:"end,omitempty"`
}

// Store reads and writes records under one data directory.
type Store struct {
	root string
}

// New returns a store rooted at dir. The directory is created lazily on
// the first Create.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the data directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) projectDir(project string) string {
	return filepath.Join(s.root, project)
}

func (s *Store) pipelineDir(project string, id int) string {
	return filepath.Join(s.root, project, strconv.Itoa(id))
}

func (s *Store) pipelinePath(project string, id int) string {
	return filepath.Join(s.pipelineDir(project, id), "pipeline.yml")
}

func (s *Store) jobPath(project string, id int, job string) string {
	return filepath.Join(s.pipelineDir(project, id), "jobs", job+".yml")
}

func (s *Store) logDir(project string, id int, job string) string {
	return filepath.Join(s.pipelineDir(project, id), "logs", job)
}

// Create allocates the next pipeline ID for the project and writes the
// pipeline record plus a pending job record for every job. IDs are
// strictly increasing per project; a creation race with another
// dispatcher is resolved by re-scanning, bounded by createRetries.
func (s *Store) Create(p *pipeline.Pipeline) (int, error) {
	project := p.Meta.Project
	if err := os.MkdirAll(s.projectDir(project), 0755); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreCreate, "create project directory", err)
	}

	for attempt := 0; attempt < createRetries; attempt++ {
		id, err := s.nextID(project)
		if err != nil {
			return 0, err
		}

		dir := s.pipelineDir(project, id)
		if err := os.Mkdir(dir, 0755); err != nil {
			if stderrors.Is(err, fs.ErrExist) {
				// Another dispatcher claimed this ID first.
				continue
			}
			return 0, errors.Wrap(errors.ErrCodeStoreCreate, "create pipeline directory", err)
		}

		p.Meta.ID = id
		if err := s.writePipeline(p); err != nil {
			return 0, err
		}

		if err := os.Mkdir(filepath.Join(dir, "jobs"), 0755); err != nil {
			return 0, errors.Wrap(errors.ErrCodeStoreCreate, "create jobs directory", err)
		}
		if err := os.Mkdir(filepath.Join(dir, "logs"), 0755); err != nil {
			return 0, errors.Wrap(errors.ErrCodeStoreCreate, "create logs directory", err)
		}
		for _, name := range p.JobNames() {
			if err := s.WriteJob(project, id, name, &JobRecord{Status: pipeline.StatusPending}); err != nil {
				return 0, err
			}
		}
		return id, nil
	}

	return 0, errors.Newf(errors.ErrCodeStoreCreate,
		"could not allocate a pipeline id for %s after %d attempts", project, createRetries)
}

func (s *Store) nextID(project string) (int, error) {
	entries, err := os.ReadDir(s.projectDir(project))
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreCreate, "scan project directory", err)
	}
	max := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, err := strconv.Atoi(e.Name()); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

// Load reads a pipeline record back. Stage and job ordering round-trip
// exactly as written.
func (s *Store) Load(project string, id int) (*pipeline.Pipeline, error) {
	data, err := os.ReadFile(s.pipelinePath(project, id))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewPipelineNotFoundError(project, id)
		}
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "read pipeline record", err)
	}

	var p pipeline.Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "decode pipeline record", err)
	}
	for name, job := range p.Jobs {
		job.Name = name
	}
	return &p, nil
}

// ReadJob reads one job record.
func (s *Store) ReadJob(project string, id int, job string) (*JobRecord, error) {
	data, err := os.ReadFile(s.jobPath(project, id, job))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewJobNotFoundError(job)
		}
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "read job record", err)
	}

	var rec JobRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "decode job record", err)
	}
	return &rec, nil
}

// WriteJob replaces one job record atomically.
func (s *Store) WriteJob(project string, id int, job string, rec *JobRecord) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "encode job record", err)
	}
	if err := writeFileAtomic(s.jobPath(project, id, job), data); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "write job record", err)
	}
	return nil
}

// UpdateStage records a stage result in the pipeline record.
func (s *Store) UpdateStage(project string, id int, stage string, result pipeline.StageResult) error {
	p, err := s.Load(project, id)
	if err != nil {
		return err
	}
	st, ok := p.Stage(stage)
	if !ok {
		return errors.Newf(errors.ErrCodeStoreWrite,
			"pipeline %s/%d has no stage %q", project, id, stage)
	}
	st.Result = result
	return s.writePipeline(p)
}

// SetOutcome records the final pipeline status.
func (s *Store) SetOutcome(project string, id int, status pipeline.Status) error {
	p, err := s.Load(project, id)
	if err != nil {
		return err
	}
	p.Meta.Outcome = status
	return s.writePipeline(p)
}

func (s *Store) writePipeline(p *pipeline.Pipeline) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "encode pipeline record", err)
	}
	if err := writeFileAtomic(s.pipelinePath(p.Meta.Project, p.Meta.ID), data); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "write pipeline record", err)
	}
	return nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
