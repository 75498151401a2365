package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gantry/internal/config"
	"github.com/felixgeelhaar/gantry/internal/log"
	"github.com/felixgeelhaar/gantry/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "gantry",
	Short: "Self-hosted CI pipeline executor",
	Long: `gantry runs CI pipelines for bare git repositories. A server-side git
hook dispatches a pipeline for every push, the scheduler walks the
pipeline's stages in order, and a runner process executes each job in an
isolated workspace. Pipeline state lives in plain YAML files under the
deployment's data directory.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupDeployment,
}

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagQuiet     bool
)

// deployment and logger are resolved once before any subcommand runs.
var (
	deployment *config.Config
	logger     *log.Logger
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "deployment configuration file (default $GANTRY_CONFIG)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text or json")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors")
}

func setupDeployment(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	deployment = cfg
	logger = newLogger(cfg)
	log.SetDefaultLogger(logger)
	return nil
}

// newLogger builds the process logger from the deployment configuration,
// with the command line flags taking precedence.
func newLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.ServiceVersion = version.Version
	lc.Level = log.ParseLevel(cfg.Log.Level)
	lc.Format = log.ParseFormat(cfg.Log.Format)
	if flagLogLevel != "" {
		lc.Level = log.ParseLevel(flagLogLevel)
	}
	if flagLogFormat != "" {
		lc.Format = log.ParseFormat(flagLogFormat)
	}
	if flagQuiet {
		lc.Level = log.LevelError
	}
	if cfg.Log.File != "" {
		lc.Output = log.OutputFile(log.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	}
	return log.New(lc)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command under the given context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
