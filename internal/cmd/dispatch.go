package cmd

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gantry/internal/errors"
	"github.com/felixgeelhaar/gantry/internal/gitcmd"
	"github.com/felixgeelhaar/gantry/internal/log"
	"github.com/felixgeelhaar/gantry/internal/manifest"
	"github.com/felixgeelhaar/gantry/internal/pipeline"
	"github.com/felixgeelhaar/gantry/internal/store"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <project> <revision>",
	Short: "Create a pipeline for a pushed revision",
	Long: `Create a pipeline for a revision of a project and print its ID.

dispatch is meant to be called from a server-side git hook, inside the
project's repository. It reads the commit metadata and the ` + manifest.Filename + `
manifest at the revision, resolves the configured jobs, and records the
new pipeline in the data directory for the scheduler to pick up.

A commit whose message contains [ci skip] or [skip ci], or a revision
without a manifest file, is a silent no-op.

Examples:
  # From a post-receive hook
  gantry dispatch widgets 4f1c2d... --type branch

  # Dispatch a tagged release from another directory
  gantry dispatch widgets v1.4.0 --type tag --repo /srv/git/widgets.git`,
	Args: cobra.ExactArgs(2),
	RunE: runDispatch,
}

var (
	dispatchType  string
	dispatchForce bool
	dispatchRepo  string
)

func init() {
	dispatchCmd.Flags().StringVar(&dispatchType, "type", "branch", "ref type: branch or tag")
	dispatchCmd.Flags().BoolVar(&dispatchForce, "force", false, "fail when the revision has no pipeline manifest")
	dispatchCmd.Flags().StringVar(&dispatchRepo, "repo", ".", "git repository to read from")

	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	project, revision := args[0], args[1]
	if dispatchType != "branch" && dispatchType != "tag" {
		return fmt.Errorf("invalid ref type %q: use branch or tag", dispatchType)
	}

	runLogger := logger.With(
		"run_id", uuid.NewString(),
		"project", project,
		"revision", revision,
	)

	id, created, err := dispatch(cmd.Context(), runLogger, project, revision)
	if err != nil {
		runLogger.WithError(err).Error("dispatch failed")
		return err
	}
	if created {
		fmt.Println(id)
	}
	return nil
}

// dispatch creates the pipeline record. It reports created=false for the
// silent no-op outcomes: a skip directive or an absent manifest.
func dispatch(ctx context.Context, runLogger *log.Logger, project, revision string) (int, bool, error) {
	message, err := gitcmd.CommitMessage(ctx, dispatchRepo, revision)
	if err != nil {
		return 0, false, err
	}

	// The skip directive wins before the manifest is even read.
	if pipeline.Skipped(message) {
		runLogger.Info("pipeline skipped by commit directive")
		return 0, false, nil
	}

	contact, err := gitcmd.CommitAuthorEmail(ctx, dispatchRepo, revision)
	if err != nil {
		return 0, false, err
	}

	data, err := gitcmd.ReadFileAtRevision(ctx, dispatchRepo, revision, manifest.Filename)
	if err != nil {
		if stderrors.Is(err, gitcmd.ErrNotExists) {
			if dispatchForce {
				return 0, false, errors.NewManifestMissingError(revision)
			}
			runLogger.Info("no pipeline manifest at revision")
			return 0, false, nil
		}
		return 0, false, err
	}

	m, err := manifest.Parse(data, manifest.ParseOptions{Strict: true})
	if err != nil {
		return 0, false, err
	}

	p, err := pipeline.Build(pipeline.Commit{
		Project:  project,
		Revision: revision,
		RefType:  dispatchType,
		Contact:  contact,
		Message:  message,
	}, m)
	if err != nil {
		if stderrors.Is(err, pipeline.ErrSkipped) {
			runLogger.Info("pipeline skipped by commit directive")
			return 0, false, nil
		}
		return 0, false, err
	}

	id, err := store.New(deployment.DataDir).Create(p)
	if err != nil {
		return 0, false, err
	}
	runLogger.Info("pipeline created",
		"pipeline", id,
		"stages", len(p.Stages),
		"jobs", len(p.Jobs),
	)
	return id, true, nil
}
