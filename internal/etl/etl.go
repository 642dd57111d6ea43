// Package etl runs manifest jobs end to end: compile the source into a query
// plan, execute it, reshape the rows and export them.
//
// Jobs run one after another in manifest order. A failing job is recorded in
// the run Result and the run moves on; it never aborts the jobs after it and
// never rolls back files written by the jobs before it.
package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"etlmanifest/internal/export"
	"etlmanifest/internal/manifest"
	"etlmanifest/internal/metrics"
	"etlmanifest/internal/query"
	"etlmanifest/internal/storage"
	"etlmanifest/internal/transformer"
	"etlmanifest/pkg/records"
)

// ErrJobPanic marks a job aborted by a panic in one of its stages.
var ErrJobPanic = errors.New("job panicked")

// JobResult is the outcome of one job.
type JobResult struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Path     string         `json:"path,omitempty"`
	Rows     int            `json:"rows"`
	Export   *export.Result `json:"export,omitempty"`
	Err      error          `json:"-"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Result summarizes a run. Files and Errors follow manifest job order.
type Result struct {
	RunID  uuid.UUID   `json:"run_id"`
	Files  []string    `json:"files"`
	Errors []string    `json:"errors"`
	Jobs   []JobResult `json:"jobs"`
}

// OK reports whether every job succeeded.
func (r *Result) OK() bool { return len(r.Errors) == 0 }

// Runner executes manifests against one storage.Executor. It does not own the
// executor; the caller closes it.
type Runner struct {
	exec     storage.Executor
	compiler *query.Compiler
	values   *transformer.Values
	exporter *export.Exporter
	log      zerolog.Logger
}

type Option func(*Runner)

func WithCompiler(c *query.Compiler) Option {
	return func(r *Runner) { r.compiler = c }
}

// WithValues sets the field transformer (time zone for date formatting).
func WithValues(v *transformer.Values) Option {
	return func(r *Runner) { r.values = v }
}

func WithExporter(e *export.Exporter) Option {
	return func(r *Runner) { r.exporter = e }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

func NewRunner(exec storage.Executor, opts ...Option) *Runner {
	r := &Runner{
		exec: exec,
		log:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.compiler == nil {
		r.compiler = query.NewCompiler()
	}
	if r.values == nil {
		r.values = transformer.New()
	}
	if r.exporter == nil {
		r.exporter = export.New(export.WithLogger(r.log))
	}
	return r
}

// RunFile parses the manifest at path and runs it. Parse failures are
// returned as errors; job failures are reported in the Result.
func (r *Runner) RunFile(ctx context.Context, path string) (*Result, error) {
	m, err := manifest.Parse(path)
	if err != nil {
		return nil, err
	}
	for _, w := range m.Warnings {
		r.log.Warn().Str("manifest", path).Str("path", w.Path).Msg(w.Message)
	}
	return r.Run(ctx, m), nil
}

// Run executes every job of m. Once ctx is done, remaining jobs are recorded
// as failed with the context error and not started.
func (r *Runner) Run(ctx context.Context, m *manifest.Manifest) *Result {
	res := &Result{
		RunID:  uuid.New(),
		Files:  []string{},
		Errors: []string{},
		Jobs:   make([]JobResult, 0, len(m.Jobs)),
	}
	log := r.log.With().Str("run_id", res.RunID.String()).Logger()
	log.Info().Int("jobs", len(m.Jobs)).Str("manifest", m.Path).Msg("run started")

	for _, job := range m.Jobs {
		var jr JobResult
		if err := ctx.Err(); err != nil {
			jr = JobResult{ID: job.ID, Name: job.Name, Err: err}
		} else {
			jr = r.runJob(ctx, log, job)
		}

		if jr.Err != nil {
			jr.Error = jobError(job, jr.Err)
			res.Errors = append(res.Errors, jr.Error)
		} else {
			res.Files = append(res.Files, jr.Path)
		}
		res.Jobs = append(res.Jobs, jr)
	}

	log.Info().
		Int("files", len(res.Files)).
		Int("errors", len(res.Errors)).
		Msg("run finished")
	return res
}

func jobError(job manifest.Job, err error) string {
	return fmt.Sprintf("job %s (%s): %v", job.ID, job.Name, err)
}

func (r *Runner) runJob(ctx context.Context, log zerolog.Logger, job manifest.Job) JobResult {
	log = log.With().Str("job", job.ID).Logger()
	start := time.Now()
	jr := JobResult{ID: job.ID, Name: job.Name}

	exp, n, err := r.guarded(ctx, log, job)
	jr.Duration = time.Since(start)
	jr.Rows = n
	if err != nil {
		jr.Err = err
		log.Error().Err(err).Dur("took", jr.Duration).Msg("job failed")
		return jr
	}
	jr.Export = exp
	jr.Path = exp.Path
	log.Info().
		Str("path", exp.Path).
		Int("rows", n).
		Dur("took", jr.Duration).
		Msg("job done")
	return jr
}

// guarded runs the pipeline and turns a panic into the job's error.
func (r *Runner) guarded(ctx context.Context, log zerolog.Logger, job manifest.Job) (exp *export.Result, n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			exp, err = nil, errors.Wrapf(ErrJobPanic, "%v", p)
		}
	}()
	return r.pipeline(ctx, log, job)
}

func (r *Runner) pipeline(ctx context.Context, log zerolog.Logger, job manifest.Job) (*export.Result, int, error) {
	var (
		plan *query.Plan
		rows []records.Row
		exp  *export.Result
	)

	err := step(job.ID, metrics.StepCompile, func() (err error) {
		plan, err = r.compiler.Compile(job.Source)
		return err
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "compile")
	}
	log.Debug().Strs("tables", plan.Tables()).Int("projections", len(plan.Projections)).Msg("plan compiled")

	err = step(job.ID, metrics.StepExecute, func() (err error) {
		rows, err = r.exec.Execute(ctx, plan)
		return err
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "execute")
	}

	n := len(rows)
	metrics.RecordRows(job.ID, "fetched", int64(n))

	if chain := transforms(job, r.values); len(chain) > 0 {
		if rows, err = chain.Apply(rows); err != nil {
			return nil, n, err
		}
	}

	err = step(job.ID, metrics.StepExport, func() (err error) {
		exp, err = r.exporter.Export(rows, job.Output)
		return err
	})
	if err != nil {
		return nil, n, errors.Wrap(err, "export")
	}
	metrics.RecordRows(job.ID, "exported", int64(exp.RowCount))
	return exp, exp.RowCount, nil
}

// transforms builds the row rewrites declared by job: field transforms first,
// then post-group arithmetic.
func transforms(job manifest.Job, values *transformer.Values) transformer.Chain {
	var chain transformer.Chain
	if len(job.Transforms) > 0 {
		chain = append(chain, metered{
			job:  job.ID,
			step: metrics.StepTransform,
			t:    transformer.FieldTransforms{Values: values, Specs: job.Transforms},
		})
	}
	if len(job.PostGroup) > 0 {
		chain = append(chain, metered{
			job:  job.ID,
			step: metrics.StepPostGroup,
			t:    transformer.PostGroup(job.PostGroup),
		})
	}
	return chain
}

// metered records a step metric around a transformer and prefixes its errors
// with the step name.
type metered struct {
	job, step string
	t         transformer.Transformer
}

func (m metered) Apply(rows []records.Row) ([]records.Row, error) {
	var out []records.Row
	err := step(m.job, m.step, func() (err error) {
		out, err = m.t.Apply(rows)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, m.step)
	}
	return out, nil
}

func step(job, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(job, name, err, time.Since(start))
	return err
}
