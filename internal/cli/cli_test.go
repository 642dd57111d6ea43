package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etlmanifest/internal/etl"
	"etlmanifest/internal/manifest"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "etl", cmd.Use)

	for _, name := range []string{"run", "validate", "compile", "seed"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	run, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	for _, name := range []string{"db-kind", "dsn", "output-dir", "json"} {
		assert.NotNil(t, run.Flags().Lookup(name), name)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestValidate(t *testing.T) {
	out, _, err := execute(t, "validate", filepath.Join("testdata", "orders.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "orders.yaml: ok")

	out, _, err = execute(t, "validate",
		filepath.Join("testdata", "orders.yaml"),
		filepath.Join("testdata", "invalid.yaml"),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrInvalid))
	assert.Contains(t, out, "orders.yaml: ok")
	assert.Contains(t, out, "invalid.yaml: error: etl[0]: missing required field 'output' in ETL job")

	_, _, err = execute(t, "validate", filepath.Join("testdata", "nope.yaml"))
	assert.True(t, errors.Is(err, manifest.ErrNotFound))
}

func TestCompileGolden(t *testing.T) {
	out, _, err := execute(t, "compile", filepath.Join("testdata", "orders.yaml"),
		"--dialect", "postgres", "--now", "2024-03-15T09:00:00Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 job(s) failed to compile")

	g := goldie.New(t)
	g.Assert(t, "compile_postgres", []byte(out))
}

func TestCompileUnknownDialect(t *testing.T) {
	_, _, err := execute(t, "compile", filepath.Join("testdata", "orders.yaml"), "--dialect", "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown dialect "oracle"`)
}

func TestSeedThenRun(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "demo.db")
	manifestPath := filepath.Join(dir, "manifests", "example.yaml")

	out, _, err := execute(t, "seed", "--dsn", dsn, "--manifest", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, "users=5 orders=7 payments=5")
	assert.FileExists(t, manifestPath)

	out, _, err = execute(t, "run", manifestPath,
		"--db-kind", "sqlite", "--dsn", dsn,
		"--output-dir", filepath.Join(dir, "out"), "--json")
	require.NoError(t, err)

	var res etl.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Empty(t, res.Errors)
	require.Len(t, res.Files, 2)
	for _, f := range res.Files {
		assert.FileExists(t, f)
	}
	assert.Equal(t, filepath.Join(dir, "out", "exports", "monthly_orders.csv"), res.Files[0])
}

func TestRunReportsFailedJobs(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "demo.db")
	_, _, err := execute(t, "seed", "--dsn", dsn)
	require.NoError(t, err)

	out, _, err := execute(t, "run", filepath.Join("testdata", "orders.yaml"),
		"--db-kind", "sqlite", "--dsn", dsn, "--output-dir", dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJobsFailed))
	assert.Contains(t, out, "ok   monthly_orders -> "+filepath.Join(dir, "out", "orders.csv"))
	assert.Contains(t, out, "FAIL job bad (Bad relation): compile: ")
	assert.Contains(t, out, "1 file(s), 1 error(s)")
}

func TestRunRejectsBadConfig(t *testing.T) {
	_, errOut, err := execute(t, "run", filepath.Join("testdata", "orders.yaml"), "--db-kind", "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, errOut, `config: error: database.kind: unknown database kind "oracle"`)
}

func TestRunMissingManifest(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "run", filepath.Join(dir, "missing.yaml"),
		"--db-kind", "sqlite", "--dsn", filepath.Join(dir, "x.db"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrNotFound))
}

func TestMain(m *testing.M) {
	// Keep a stray etl.yaml or ETL_* variable from changing defaults.
	for _, k := range []string{"ETL_DATABASE_KIND", "ETL_DATABASE_DSN", "ETL_OUTPUT_DIR", "ETL_METRICS_BACKEND"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}
