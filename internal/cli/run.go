package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"etlmanifest/internal/config"
	"etlmanifest/internal/etl"
	"etlmanifest/internal/export"
	"etlmanifest/internal/logging"
	"etlmanifest/internal/storage"
)

// ErrJobsFailed is returned by run when at least one job failed.
var ErrJobsFailed = errors.New("jobs failed")

type runOptions struct {
	kind      string
	dsn       string
	outputDir string
	json      bool
}

func newRunCommand(root *RootOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Run every job of a manifest",
		Long: `Run compiles each job of the manifest, executes it against the configured
database and exports the rows. Jobs run in manifest order; a failed job is
reported and the remaining jobs still run. The exit status is non-zero when
any job failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, root, o, args[0])
		},
	}
	cmd.Flags().StringVar(&o.kind, "db-kind", "", "storage kind override (sqlite|sqlite3|postgres|mysql|mssql)")
	cmd.Flags().StringVar(&o.dsn, "dsn", "", "database DSN override")
	cmd.Flags().StringVar(&o.outputDir, "output-dir", "", "directory relative output paths are resolved against")
	cmd.Flags().BoolVar(&o.json, "json", false, "print the run result as JSON")
	return cmd
}

func runRun(cmd *cobra.Command, root *RootOptions, o *runOptions, path string) error {
	cfg := root.cfg
	if o.kind != "" {
		cfg.Database.Kind = o.kind
	}
	if o.dsn != "" {
		cfg.Database.DSN = o.dsn
	}
	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}

	issues := config.Validate(cfg, storage.ListKinds())
	printIssues(cmd.ErrOrStderr(), "config", issues)
	if config.HasErrors(issues) {
		return errors.New("invalid configuration")
	}

	log := logging.Component(root.log, "run")
	flush := setupMetrics(cfg.Metrics, root.log)
	defer flush()

	ctx := cmd.Context()
	exec, err := storage.New(ctx, storage.Config{
		Kind:   cfg.Database.Kind,
		DSN:    cfg.Database.DSN,
		Logger: root.log,
	})
	if err != nil {
		return err
	}
	defer exec.Close()

	r := etl.NewRunner(exec,
		etl.WithLogger(log),
		etl.WithExporter(export.New(
			export.WithBaseDir(cfg.OutputDir),
			export.WithLogger(logging.Component(root.log, "export")),
		)),
	)
	res, err := r.RunFile(ctx, path)
	if err != nil {
		return err
	}
	if err := printResult(cmd.OutOrStdout(), res, o.json); err != nil {
		return err
	}
	if !res.OK() {
		return errors.Wrapf(ErrJobsFailed, "%d of %d", len(res.Errors), len(res.Jobs))
	}
	return nil
}
