// Package gitcmd wraps the git invocations gantry needs: reading commit
// metadata and manifest content at a revision for the dispatcher, and
// building the clone/checkout/submodule command plans the runner executes
// in its workspace.
package gitcmd

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/gantry/internal/errors"
)

// ErrNotExists reports that a path is absent from the tree at the
// requested revision. Callers treat it as "no manifest", not a failure.
var ErrNotExists = stderrors.New("path does not exist at revision")

// ReadFileAtRevision returns the content of path in the tree at revision,
// read via git show from the repository at dir.
func ReadFileAtRevision(ctx context.Context, dir, revision, path string) ([]byte, error) {
	out, errText, err := gitOutput(ctx, dir, "show", revision+":"+path)
	if err != nil {
		if isMissingPath(errText) {
			return nil, fmt.Errorf("%w: %s at %s", ErrNotExists, path, revision)
		}
		return nil, errors.Wrap(errors.ErrCodeGitRead,
			fmt.Sprintf("git show %s:%s: %s", revision, path, strings.TrimSpace(errText)), err)
	}
	return out, nil
}

// CommitMessage returns the full commit message of revision.
func CommitMessage(ctx context.Context, dir, revision string) (string, error) {
	out, errText, err := gitOutput(ctx, dir, "log", "-1", "--format=%B", revision)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeGitRead,
			fmt.Sprintf("read commit message of %s: %s", revision, strings.TrimSpace(errText)), err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// CommitAuthorEmail returns the committer e-mail of revision.
func CommitAuthorEmail(ctx context.Context, dir, revision string) (string, error) {
	out, errText, err := gitOutput(ctx, dir, "log", "-1", "--format=%ce", revision)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeGitRead,
			fmt.Sprintf("read committer of %s: %s", revision, strings.TrimSpace(errText)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func gitOutput(ctx context.Context, dir string, args ...string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.String(), err
}

// git prints one of these when the revision exists but the path is not in
// its tree.
func isMissingPath(errText string) bool {
	return strings.Contains(errText, "does not exist in") ||
		strings.Contains(errText, "exists on disk, but not in")
}

// CloneURL substitutes the project name into the deployment's URL
// template.
func CloneURL(template, project string) string {
	return strings.ReplaceAll(template, "{project}", project)
}

// ClonePlan returns the git commands that prepare a workspace: shallow
// clone into the current directory, checkout of the revision, and, when
// enabled, submodule initialization. A depth of zero disables git
// entirely and yields an empty plan.
func ClonePlan(depth int, url, revision string, submodules bool) [][]string {
	if depth == 0 {
		return nil
	}
	plan := [][]string{
		{"git", "clone", fmt.Sprintf("--depth=%d", depth), url, "."},
		{"git", "checkout", revision},
	}
	if submodules {
		plan = append(plan, []string{"git", "submodule", "update", "--init", "--recursive"})
	}
	return plan
}
