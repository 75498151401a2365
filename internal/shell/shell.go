// Package shell runs job commands as child processes and captures their
// output the way a terminal would see it: the command is echoed first,
// then stdout and stderr interleaved in arrival order.
package shell

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/gantry/internal/errors"
)

// DefaultShell interprets step commands unless the deployment overrides it.
const DefaultShell = "/bin/sh"

// Result is the outcome of one executed command.
type Result struct {
	Command  string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands through a configured shell.
type Runner struct {
	shell string
}

// New returns a runner using the given shell binary, or DefaultShell when
// empty.
func New(shellPath string) *Runner {
	if shellPath == "" {
		shellPath = DefaultShell
	}
	return &Runner{shell: shellPath}
}

// Shell returns the configured shell binary.
func (r *Runner) Shell() string {
	return r.shell
}

// Run executes one command via the shell in dir. The command line is
// echoed to output as "$ <command>"; stdout and stderr both write to
// output so the capture keeps arrival order. A non-zero exit appends the
// failure trailer and is reported in the result, not as an error; the
// error return is reserved for commands that cannot be started and for
// context cancellation.
func (r *Runner) Run(ctx context.Context, dir string, env []string, command string, output io.Writer) (*Result, error) {
	// #nosec G204 - the command string is the job's configured step
	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	return r.start(ctx, dir, env, command, output, cmd)
}

// RunArgv executes argv directly, without shell interpretation, under the
// same echo and capture rules. Used for git invocations.
func (r *Runner) RunArgv(ctx context.Context, dir string, env []string, argv []string, output io.Writer) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New(errors.ErrCodeStepStart, "empty command")
	}
	// #nosec G204 - argv is assembled internally, not parsed from input
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	return r.start(ctx, dir, env, strings.Join(argv, " "), output, cmd)
}

func (r *Runner) start(ctx context.Context, dir string, env []string, display string, output io.Writer, cmd *exec.Cmd) (*Result, error) {
	fmt.Fprintf(output, "$ %s\n", display)

	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = output
	cmd.Stderr = output
	// Each command gets its own process group so cancellation reaches
	// grandchildren, not just the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	started := time.Now()
	err := cmd.Run()
	res := &Result{Command: display, Duration: time.Since(started)}

	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeStepStart, "command cancelled", ctx.Err())
		}
		var exitErr *exec.ExitError
		if !stderrors.As(err, &exitErr) {
			return nil, errors.Wrap(errors.ErrCodeStepStart, "start command", err)
		}
		res.ExitCode = exitErr.ExitCode()
		fmt.Fprintf(output, "The command %q failed and exited with %d.\n", display, res.ExitCode)
	}

	return res, nil
}

// RunAll executes commands in order and stops at the first non-zero exit.
// It returns the failing result, or the last successful one; a nil result
// means there were no commands.
func (r *Runner) RunAll(ctx context.Context, dir string, env []string, commands []string, output io.Writer) (*Result, error) {
	var last *Result
	for _, command := range commands {
		res, err := r.Run(ctx, dir, env, command, output)
		if err != nil {
			return nil, err
		}
		last = res
		if res.ExitCode != 0 {
			break
		}
	}
	return last, nil
}

// Environ builds the child environment: the process environment plus the
// job's variables, job entries winning on conflicts. Extra variables are
// appended in sorted order so the composition is deterministic.
func Environ(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	// os/exec uses the last value of a duplicated key.
	return env
}
