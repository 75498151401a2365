package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gantry/internal/runner"
	"github.com/felixgeelhaar/gantry/internal/shell"
	"github.com/felixgeelhaar/gantry/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run <project> <id> <job>",
	Short: "Execute one job of a pipeline",
	Long: `Claim and execute a single pending job, normally on behalf of the
scheduler. The job's steps run in a throwaway workspace and their output
is captured into the pipeline's log directory.

The exit status is 0 whenever a terminal job status was recorded, even
when that status is failed or errored; a non-zero exit means the job
could not be claimed or its record could not be written.`,
	Args: cobra.ExactArgs(3),
	RunE: runJob,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runJob(cmd *cobra.Command, args []string) error {
	project := args[0]
	id, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid pipeline id %q", args[1])
	}
	job := args[2]

	st := store.New(deployment.DataDir)
	p, err := st.Load(project, id)
	if err != nil {
		return err
	}

	r := runner.New(st, shell.New(deployment.Runner.Shell), runner.Options{
		URLTemplate:  deployment.Git.URLTemplate,
		PrologScript: deployment.Runner.PrologScript,
	}, logger)

	if _, err := r.RunJob(cmd.Context(), p, job); err != nil {
		logger.WithError(err).Error("job run failed", "project", project, "pipeline", id, "job", job)
		return err
	}
	return nil
}
