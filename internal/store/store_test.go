package store

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/gantry/internal/errors"
	"github.com/felixgeelhaar/gantry/internal/manifest"
	"github.com/felixgeelhaar/gantry/internal/pipeline"
)

const testManifest = `
stages: [build, test]

env:
  CI: "true"

jobs:
  compile:
    stage: build
    script: make
  unit:
    stage: test
    script:
      - make test
      - make coverage
    git:
      depth: 0
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir())
}

func buildPipeline(t *testing.T, project string) *pipeline.Pipeline {
	t.Helper()
	m, err := manifest.Parse([]byte(testManifest), manifest.ParseOptions{})
	require.NoError(t, err)
	p, err := pipeline.Build(pipeline.Commit{
		Project:  project,
		Revision: "abc123",
		RefType:  "branch",
		Contact:  "dev@example.com",
	}, m)
	require.NoError(t, err)
	return p
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Create(buildPipeline(t, "demo"))
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := s.Create(buildPipeline(t, "demo"))
	require.NoError(t, err)
	assert.Equal(t, 2, second)

	// IDs are per project.
	other, err := s.Create(buildPipeline(t, "widgets"))
	require.NoError(t, err)
	assert.Equal(t, 1, other)
}

func TestCreateRecordsID(t *testing.T) {
	s := newTestStore(t)
	p := buildPipeline(t, "demo")

	id, err := s.Create(p)
	require.NoError(t, err)
	assert.Equal(t, id, p.Meta.ID)

	loaded, err := s.Load("demo", id)
	require.NoError(t, err)
	assert.Equal(t, id, loaded.Meta.ID)
}

func TestCreateWritesPendingJobRecords(t *testing.T) {
	s := newTestStore(t)
	p := buildPipeline(t, "demo")

	id, err := s.Create(p)
	require.NoError(t, err)

	for _, name := range p.JobNames() {
		rec, err := s.ReadJob("demo", id, name)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusPending, rec.Status)
		assert.Zero(t, rec.Start)
		assert.Zero(t, rec.End)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	p := buildPipeline(t, "demo")

	id, err := s.Create(p)
	require.NoError(t, err)

	loaded, err := s.Load("demo", id)
	require.NoError(t, err)

	assert.Equal(t, "demo", loaded.Meta.Project)
	assert.Equal(t, "abc123", loaded.Meta.Revision)
	assert.Equal(t, "branch", loaded.Meta.RefType)
	assert.Equal(t, "dev@example.com", loaded.Meta.Contact)
	assert.Equal(t, pipeline.StatusPending, loaded.Meta.Outcome)
	assert.WithinDuration(t, p.Meta.Created, loaded.Meta.Created, time.Second)

	require.Len(t, loaded.Stages, 2)
	assert.Equal(t, "build", loaded.Stages[0].Name)
	assert.Equal(t, "test", loaded.Stages[1].Name)
	assert.Equal(t, []string{"compile"}, loaded.Stages[0].Jobs)
	assert.Equal(t, []string{"unit"}, loaded.Stages[1].Jobs)

	unit, ok := loaded.Job("unit")
	require.True(t, ok)
	assert.Equal(t, "unit", unit.Name)
	assert.Equal(t, manifest.Commands{"make test", "make coverage"}, unit.Spec.Steps.Script)
	assert.Equal(t, 0, unit.Spec.Git.Depth)
	assert.Equal(t, "true", unit.Spec.Env["CI"])

	compile, ok := loaded.Job("compile")
	require.True(t, ok)
	assert.Equal(t, manifest.DefaultGitDepth, compile.Spec.Git.Depth)
}

func TestPipelineRecordUsesCompactStepForm(t *testing.T) {
	s := newTestStore(t)
	p := buildPipeline(t, "demo")

	id, err := s.Create(p)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Root(), "demo", strconv.Itoa(id), "pipeline.yml"))
	require.NoError(t, err)

	// A single command is written as a scalar, not a one-element list.
	assert.Contains(t, string(data), "script: make\n")
	assert.NotContains(t, string(data), "- make\n")
}

func TestLoadNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load("demo", 7)
	require.Error(t, err)

	var gerr *errors.GantryError
	require.True(t, stderrors.As(err, &gerr))
	assert.Equal(t, errors.ErrCodeStoreNotFound, gerr.Code)
}

func TestReadJobNotFound(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Create(buildPipeline(t, "demo"))
	require.NoError(t, err)

	_, err = s.ReadJob("demo", id, "missing")
	require.Error(t, err)

	var gerr *errors.GantryError
	require.True(t, stderrors.As(err, &gerr))
	assert.Equal(t, errors.ErrCodeStoreJobNotFound, gerr.Code)
}

func TestWriteJobRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Create(buildPipeline(t, "demo"))
	require.NoError(t, err)

	now := time.Now().Unix()
	err = s.WriteJob("demo", id, "compile", &JobRecord{
		Status: pipeline.StatusRunning,
		Start:  now,
	})
	require.NoError(t, err)

	rec, err := s.ReadJob("demo", id, "compile")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusRunning, rec.Status)
	assert.Equal(t, now, rec.Start)
	assert.Zero(t, rec.End)
}

func TestUpdateStage(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Create(buildPipeline(t, "demo"))
	require.NoError(t, err)

	require.NoError(t, s.UpdateStage("demo", id, "build", pipeline.StageRunning))
	require.NoError(t, s.UpdateStage("demo", id, "test", pipeline.StageNotRun))

	loaded, err := s.Load("demo", id)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageRunning, loaded.Stages[0].Result)
	assert.Equal(t, pipeline.StageNotRun, loaded.Stages[1].Result)
}

func TestUpdateStageUnknown(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Create(buildPipeline(t, "demo"))
	require.NoError(t, err)

	err = s.UpdateStage("demo", id, "ship", pipeline.StageRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ship")
}

func TestSetOutcome(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Create(buildPipeline(t, "demo"))
	require.NoError(t, err)

	require.NoError(t, s.SetOutcome("demo", id, pipeline.StatusFailed))

	loaded, err := s.Load("demo", id)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, loaded.Meta.Outcome)
}

func TestWritesLeaveNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Create(buildPipeline(t, "demo"))
	require.NoError(t, err)

	require.NoError(t, s.SetOutcome("demo", id, pipeline.StatusPassed))
	require.NoError(t, s.WriteJob("demo", id, "compile", &JobRecord{Status: pipeline.StatusPassed}))

	err = filepath.WalkDir(s.Root(), func(path string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.Contains(filepath.Base(path), ".tmp-") {
			t.Errorf("leftover temp file %s", path)
		}
		return nil
	})
	require.NoError(t, err)
}
