package cmd

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/gantry/internal/config"
	"github.com/felixgeelhaar/gantry/internal/errors"
	"github.com/felixgeelhaar/gantry/internal/log"
	"github.com/felixgeelhaar/gantry/internal/pipeline"
	"github.com/felixgeelhaar/gantry/internal/store"
)

const dispatchManifest = `stages: [build]
jobs:
  compile:
    stage: build
    script: make
`

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// initGitRepo creates a repository with one commit and returns its
// directory and revision.
func initGitRepo(t *testing.T, files map[string]string, message string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	git := func(args ...string) string {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Dev",
			"GIT_AUTHOR_EMAIL=dev@example.com",
			"GIT_COMMITTER_NAME=Dev",
			"GIT_COMMITTER_EMAIL=dev@example.com",
			"GIT_CONFIG_GLOBAL=/dev/null",
			"GIT_CONFIG_SYSTEM=/dev/null",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
		return strings.TrimSpace(string(out))
	}

	git("init", "--quiet")
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	git("add", ".")
	git("commit", "--quiet", "-m", message)
	return dir, git("rev-parse", "HEAD")
}

// setupDispatch points the package state at a fresh deployment.
func setupDispatch(t *testing.T, repo string) string {
	t.Helper()
	dataDir := t.TempDir()
	deployment = config.Default()
	deployment.DataDir = dataDir
	logger = log.Development()
	dispatchRepo = repo
	dispatchType = "branch"
	dispatchForce = false
	return dataDir
}

func TestDispatchCreatesPipeline(t *testing.T) {
	requireGit(t)
	repo, rev := initGitRepo(t, map[string]string{".gantry.yml": dispatchManifest}, "add pipeline")
	dataDir := setupDispatch(t, repo)

	id, created, err := dispatch(context.Background(), logger, "widgets", rev)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !created {
		t.Fatal("expected a pipeline to be created")
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}

	p, err := store.New(dataDir).Load("widgets", id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Meta.Revision != rev {
		t.Errorf("revision = %s, want %s", p.Meta.Revision, rev)
	}
	if p.Meta.RefType != "branch" {
		t.Errorf("ref type = %s, want branch", p.Meta.RefType)
	}
	if p.Meta.Contact != "dev@example.com" {
		t.Errorf("contact = %s, want dev@example.com", p.Meta.Contact)
	}
	if p.Meta.Outcome != pipeline.StatusPending {
		t.Errorf("outcome = %s, want pending", p.Meta.Outcome)
	}
	if _, ok := p.Job("compile"); !ok {
		t.Error("pipeline is missing the compile job")
	}
}

func TestDispatchSkipDirective(t *testing.T) {
	requireGit(t)
	for _, message := range []string{"wip [ci skip]", "[skip ci] docs only"} {
		t.Run(message, func(t *testing.T) {
			repo, rev := initGitRepo(t, map[string]string{".gantry.yml": dispatchManifest}, message)
			dataDir := setupDispatch(t, repo)

			_, created, err := dispatch(context.Background(), logger, "widgets", rev)
			if err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if created {
				t.Fatal("skip directive must not create a pipeline")
			}
			if _, err := store.New(dataDir).Load("widgets", 1); err == nil {
				t.Error("no pipeline record should exist")
			}
		})
	}
}

func TestDispatchWithoutManifestIsANoOp(t *testing.T) {
	requireGit(t)
	repo, rev := initGitRepo(t, map[string]string{"README": "no ci here"}, "initial")
	setupDispatch(t, repo)

	_, created, err := dispatch(context.Background(), logger, "widgets", rev)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if created {
		t.Fatal("a revision without a manifest must not create a pipeline")
	}
}

func TestDispatchForceRequiresManifest(t *testing.T) {
	requireGit(t)
	repo, rev := initGitRepo(t, map[string]string{"README": "no ci here"}, "initial")
	setupDispatch(t, repo)
	dispatchForce = true

	_, _, err := dispatch(context.Background(), logger, "widgets", rev)
	if err == nil {
		t.Fatal("expected an error for the missing manifest")
	}
	var gerr *errors.GantryError
	if !stderrors.As(err, &gerr) {
		t.Fatalf("error type = %T, want *errors.GantryError", err)
	}
	if gerr.Code != errors.ErrCodeConfigManifestMissing {
		t.Errorf("code = %s, want %s", gerr.Code, errors.ErrCodeConfigManifestMissing)
	}
}

func TestDispatchParsesStrict(t *testing.T) {
	requireGit(t)
	manifest := dispatchManifest + "notify_slack: true\n"
	repo, rev := initGitRepo(t, map[string]string{".gantry.yml": manifest}, "bad manifest")
	setupDispatch(t, repo)

	_, _, err := dispatch(context.Background(), logger, "widgets", rev)
	if err == nil {
		t.Fatal("expected a strict parse error")
	}
	var gerr *errors.GantryError
	if !stderrors.As(err, &gerr) {
		t.Fatalf("error type = %T, want *errors.GantryError", err)
	}
	if gerr.Code != errors.ErrCodeConfigUnknownKey {
		t.Errorf("code = %s, want %s", gerr.Code, errors.ErrCodeConfigUnknownKey)
	}
}
