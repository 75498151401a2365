package cmd

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gantry/internal/scheduler"
	"github.com/felixgeelhaar/gantry/internal/store"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <project> <id>",
	Short: "Run a pipeline's stages to completion",
	Long: `Run every stage of a dispatched pipeline and record the outcome.

Each job is executed by a separate gantry run process. Stages run in the
declared order and act as barriers: a stage only starts after the
previous one passed. When the deployment configures more than one
worker, the jobs of a stage run concurrently.

A failed pipeline is a normal outcome and exits with status 0; a
non-zero exit reports infrastructure trouble, not a red build.`,
	Args: cobra.ExactArgs(2),
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	project := args[0]
	id, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid pipeline id %q", args[1])
	}

	st := store.New(deployment.DataDir)
	p, err := st.Load(project, id)
	if err != nil {
		return err
	}

	runLogger := logger.With(
		"run_id", uuid.NewString(),
		"project", project,
		"pipeline", id,
	)

	jobRunner, err := scheduler.NewCommandRunner(st, "", flagConfig)
	if err != nil {
		return err
	}
	sched := scheduler.New(st, jobRunner, deployment.Scheduler.Workers, runLogger)

	outcome, runErr := sched.Run(cmd.Context(), p)
	if runErr != nil {
		runLogger.WithError(runErr).Error("scheduling hit an infrastructure fault")
	}

	fireNotifications(cmd.Context(), runLogger, st, p, outcome)

	if runErr != nil {
		return runErr
	}
	fmt.Printf("pipeline %s/%d %s\n", project, id, outcome)
	return nil
}
