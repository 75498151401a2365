package scheduler

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/gantry/internal/errors"
	"github.com/felixgeelhaar/gantry/internal/pipeline"
	"github.com/felixgeelhaar/gantry/internal/store"
)

// CommandRunner executes each job as its own gantry process, so one
// crashing job cannot take the scheduler down. The terminal status is
// read back from the job record afterwards.
type CommandRunner struct {
	store      *store.Store
	bin        string
	configPath string
}

// NewCommandRunner builds a runner that spawns the given gantry binary.
// An empty bin resolves to the current executable. A non-empty configPath
// is forwarded to the child via --config.
func NewCommandRunner(st *store.Store, bin, configPath string) (*CommandRunner, error) {
	if bin == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeSchedRunner, "locate gantry executable", err)
		}
		bin = exe
	}
	return &CommandRunner{store: st, bin: bin, configPath: configPath}, nil
}

// RunJob spawns `gantry run <project> <id> <job>` and waits for it.
func (c *CommandRunner) RunJob(ctx context.Context, p *pipeline.Pipeline, job string) (pipeline.Status, error) {
	args := []string{"run"}
	if c.configPath != "" {
		args = append(args, "--config", c.configPath)
	}
	args = append(args, p.Meta.Project, strconv.Itoa(p.Meta.ID), job)

	// #nosec G204 - the binary is gantry itself
	cmd := exec.CommandContext(ctx, c.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if !stderrors.As(runErr, &exitErr) {
			return pipeline.StatusPending, errors.Wrap(errors.ErrCodeSchedRunner,
				fmt.Sprintf("start runner process for job %q", job), runErr)
		}
	}

	// A non-zero exit still may have left a terminal record, so the
	// record is authoritative, not the exit code.
	rec, err := c.store.ReadJob(p.Meta.Project, p.Meta.ID, job)
	if err != nil {
		return pipeline.StatusPending, err
	}
	if rec.Status.Terminal() {
		return rec.Status, nil
	}
	msg := fmt.Sprintf("job %q has no terminal status after the runner exited", job)
	if text := strings.TrimSpace(stderr.String()); text != "" {
		msg += ": " + text
	}
	return pipeline.StatusPending, errors.Newf(errors.ErrCodeSchedRunner, "%s", msg)
}
