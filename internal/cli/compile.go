package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"etlmanifest/internal/manifest"
	"etlmanifest/internal/query"
	"etlmanifest/internal/query/sqlgen"
)

type compileOptions struct {
	dialect string
	now     string
}

func newCompileCommand(root *RootOptions) *cobra.Command {
	o := &compileOptions{}
	cmd := &cobra.Command{
		Use:   "compile <manifest>",
		Short: "Print the SQL each job would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.OutOrStdout(), root, o, args[0])
		},
	}
	cmd.Flags().StringVar(&o.dialect, "dialect", "", "SQL dialect (default: the configured database kind)")
	cmd.Flags().StringVar(&o.now, "now", "", "reference time for date keywords, RFC 3339 (default: current time)")
	return cmd
}

func runCompile(w io.Writer, root *RootOptions, o *compileOptions, path string) error {
	name := o.dialect
	if name == "" {
		name = root.cfg.Database.Kind
	}
	d, ok := sqlgen.ByName(name)
	if !ok {
		return errors.Errorf("unknown dialect %q", name)
	}

	var opts []query.Option
	if o.now != "" {
		t, err := time.Parse(time.RFC3339, o.now)
		if err != nil {
			return errors.Wrap(err, "--now")
		}
		opts = append(opts, query.WithClock(func() time.Time { return t }))
	}
	c := query.NewCompiler(opts...)

	m, err := manifest.Parse(path)
	if err != nil {
		return err
	}

	failed := 0
	for _, job := range m.Jobs {
		fmt.Fprintf(w, "-- job %s (%s)\n", job.ID, job.Name)
		plan, err := c.Compile(job.Source)
		if err == nil {
			var (
				stmt string
				args []any
			)
			stmt, args, err = sqlgen.Render(plan, d)
			if err == nil {
				fmt.Fprintf(w, "%s;\n", stmt)
				if len(args) > 0 {
					fmt.Fprintf(w, "-- args: %s\n", formatArgs(args))
				}
				continue
			}
		}
		failed++
		fmt.Fprintf(w, "-- error: %v\n", err)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d job(s) failed to compile", failed, len(m.Jobs))
	}
	return nil
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			parts[i] = fmt.Sprintf("%q", v)
		case time.Time:
			parts[i] = v.Format(time.RFC3339Nano)
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, ", ")
}
