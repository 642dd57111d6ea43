// Package cli implements the etl command line: run, validate and compile
// manifests, and seed the demo database.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"etlmanifest/internal/config"
	"etlmanifest/internal/logging"
)

// RootOptions holds global flags and the state PersistentPreRunE derives
// from them.
type RootOptions struct {
	ConfigPath string
	LogLevel   string

	cfg config.Config
	log zerolog.Logger
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "etl",
		Short: "Manifest-driven extract, transform and export",
		Long: `etl reads YAML manifests describing extraction jobs (tables, joins,
filters, aggregates), runs them against a SQL database and writes each job's
rows to a CSV or JSON file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "runtime config file (default: ./etl.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (trace|debug|info|warn|error)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newCompileCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	o.cfg = cfg
	o.log = logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Out:    cmd.ErrOrStderr(),
	})
	return nil
}
