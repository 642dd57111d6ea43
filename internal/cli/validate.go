package cli

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"etlmanifest/internal/config"
	"etlmanifest/internal/manifest"
)

func newValidateCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Check manifests without running them",
		Long: `Validate parses each manifest and reports every structural problem
(missing fields, bad shapes, unknown output formats) along with warnings such
as duplicate job ids. Nothing is compiled or executed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args)
		},
	}
}

func runValidate(cmd *cobra.Command, paths []string) error {
	results := make([][]config.Issue, len(paths))

	g, _ := errgroup.WithContext(cmd.Context())
	g.SetLimit(8)
	for i, p := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(p)
			if err != nil {
				return errors.Wrapf(manifest.ErrNotFound, "%s: %v", p, err)
			}
			results[i] = manifest.Validate(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	invalid := 0
	for i, p := range paths {
		printIssues(out, p, results[i])
		if config.HasErrors(results[i]) {
			invalid++
			continue
		}
		fmt.Fprintf(out, "%s: ok\n", p)
	}
	if invalid > 0 {
		return errors.Wrapf(manifest.ErrInvalid, "%d of %d manifest(s)", invalid, len(paths))
	}
	return nil
}
