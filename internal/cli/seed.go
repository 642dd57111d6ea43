package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"etlmanifest/internal/demo"
	"etlmanifest/internal/logging"
	"etlmanifest/internal/storage/sqlite"
)

type seedOptions struct {
	dsn      string
	manifest string
}

func newSeedCommand(root *RootOptions) *cobra.Command {
	o := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create and fill the demo SQLite database",
		Long: `Seed applies the demo schema migrations (users, orders, payments) to a
SQLite database and inserts sample rows dated around last month. With
--manifest it also writes an example manifest that runs against them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, root, o)
		},
	}
	cmd.Flags().StringVar(&o.dsn, "dsn", "", "SQLite DSN (default: database.dsn)")
	cmd.Flags().StringVar(&o.manifest, "manifest", "", "also write the example manifest to this path")
	return cmd
}

func runSeed(cmd *cobra.Command, root *RootOptions, o *seedOptions) error {
	dsn := o.dsn
	if dsn == "" {
		dsn = root.cfg.Database.DSN
	}
	log := logging.Component(root.log, "seed")
	flush := setupMetrics(root.cfg.Metrics, root.log)
	defer flush()

	ctx := cmd.Context()
	db, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := demo.Migrate(ctx, db, log); err != nil {
		return err
	}
	sum, err := demo.Seed(ctx, db, log, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %s: users=%d orders=%d payments=%d\n",
		dsn, sum["users"], sum["orders"], sum["payments"])

	if o.manifest != "" {
		if err := os.MkdirAll(filepath.Dir(o.manifest), 0o755); err != nil {
			return errors.Wrap(err, "write manifest")
		}
		if err := os.WriteFile(o.manifest, demo.ExampleManifest(), 0o644); err != nil {
			return errors.Wrap(err, "write manifest")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", o.manifest)
	}
	return nil
}
