package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"recsys/internal/contentrule"
	"recsys/internal/document"
	"recsys/internal/loader"
	"recsys/internal/logging"
	"recsys/internal/metrics"
	"recsys/internal/storage"
)

// Options controls one migration run.
type Options struct {
	// CreateTables runs CREATE TABLE IF NOT EXISTS for the model first.
	CreateTables bool
	// EnforceReferences deletes orphans and adds foreign keys after loading.
	EnforceReferences bool
	// ContentRules rebuilds content_rule once the product table is loaded.
	ContentRules bool

	OnRowError loader.OnRowError
	BatchSize  int

	// Tables limits the run to these tables; empty runs every job.
	Tables []string
}

// Runner migrates documents from Source into Repo.
type Runner struct {
	Source document.Source
	Repo   storage.Repository
	Jobs   []Job

	// Progress is added to the loader's log and metrics reporters.
	Progress loader.Progress

	// Invalidate, when set, runs once the jobs have started rewriting
	// tables, whether or not the run then succeeds. cmd/migrate points it
	// at the recommendation cache.
	Invalidate func(ctx context.Context) error
}

// Report summarizes a run.
type Report struct {
	RunID       string
	Tables      []loader.Result
	ContentRule *loader.Result
	Orphans     map[string]int64
	Duration    time.Duration
}

// Run executes the jobs in dependency order:
//
//	drop foreign keys -> [create tables] -> per job: extract, steps, replace
//	-> [content rules] -> [orphan cleanup + foreign keys]
//
// Foreign keys are dropped first so tables can be cleared in any order.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	if r.Source == nil || r.Repo == nil {
		return Report{}, fmt.Errorf("pipeline: Source and Repo are required")
	}

	runID := uuid.NewString()
	log := logging.With().Str("run_id", runID).Logger()
	rep := Report{RunID: runID}
	start := time.Now()

	jobs, err := Select(r.Jobs, opts.Tables)
	if err != nil {
		return rep, err
	}
	jobs, err = Order(jobs)
	if err != nil {
		return rep, err
	}

	l := &loader.Loader{
		Repo:       r.Repo,
		OnRowError: opts.OnRowError,
		BatchSize:  opts.BatchSize,
		Progress:   loader.Tee(loader.LogReporter(log), loader.MetricsReporter(), r.Progress),
	}

	log.Info().Str("dialect", r.Repo.Dialect().Name()).Int("jobs", len(jobs)).Msg("migration started")

	if err := stage(log, "drop_foreign_keys", func() error {
		return storage.DropForeignKeys(ctx, r.Repo, storage.ForeignKeys())
	}); err != nil {
		return rep, err
	}

	if opts.CreateTables {
		if err := stage(log, "ddl", func() error {
			return storage.EnsureTables(ctx, r.Repo, storage.Tables())
		}); err != nil {
			return rep, err
		}
	}

	err = r.load(ctx, log, l, jobs, opts, &rep)
	if r.Invalidate != nil {
		if ierr := stage(log, "invalidate_cache", func() error {
			return r.Invalidate(context.WithoutCancel(ctx))
		}); ierr != nil {
			err = errors.Join(err, fmt.Errorf("invalidate cache: %w", ierr))
		}
	}
	if err != nil {
		return rep, err
	}

	rep.Duration = time.Since(start)
	log.Info().Dur("duration", rep.Duration).Int("tables", len(rep.Tables)).Msg("migration finished")
	return rep, nil
}

func (r *Runner) load(ctx context.Context, log zerolog.Logger, l *loader.Loader, jobs []Job, opts Options, rep *Report) error {
	for _, j := range jobs {
		res, err := r.runJob(ctx, log, l, j)
		if err != nil {
			return err
		}
		rep.Tables = append(rep.Tables, res)
	}

	if opts.ContentRules && hasTable(jobs, storage.TableProduct) {
		var res loader.Result
		if err := stage(log, "content_rule", func() error {
			var err error
			res, err = contentrule.Rebuild(ctx, l)
			return err
		}); err != nil {
			return err
		}
		rep.ContentRule = &res
	}

	if opts.EnforceReferences {
		return stage(log, "references", func() error {
			var err error
			rep.Orphans, err = EnforceReferences(ctx, r.Repo)
			return err
		})
	}
	return nil
}

func (r *Runner) runJob(ctx context.Context, log zerolog.Logger, l *loader.Loader, j Job) (loader.Result, error) {
	jlog := log.With().Str("table", j.Table).Str("collection", j.Collection).Logger()

	var rows [][]any
	if err := stage(jlog, "extract:"+j.Table, func() error {
		var err error
		rows, err = document.Extract(ctx, r.Source, j.Collection, j.Fields, j.Filter)
		return err
	}); err != nil {
		return loader.Result{}, fmt.Errorf("job %s: %w", j.Table, err)
	}
	metrics.RecordRecords("extracted", int64(len(rows)))

	for _, s := range j.Steps {
		in := len(rows)
		var err error
		rows, err = s.Run(ctx, r.Repo, rows)
		if err != nil {
			return loader.Result{}, fmt.Errorf("job %s: step %s: %w", j.Table, s.Name, err)
		}
		jlog.Debug().Str("step", s.Name).Int("in", in).Int("out", len(rows)).Msg("step done")
	}

	res, err := l.Replace(ctx, j.Table, j.Columns, rows)
	if err != nil {
		return res, fmt.Errorf("job %s: %w", j.Table, err)
	}
	return res, nil
}

// stage runs fn as a named step, logging and recording its duration.
func stage(log zerolog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(name, start, err)
	if err != nil {
		log.Error().Err(err).Str("stage", name).Dur("duration", time.Since(start)).Msg("stage failed")
		return err
	}
	log.Info().Str("stage", name).Dur("duration", time.Since(start).Truncate(time.Millisecond)).Msg("stage ok")
	return nil
}

func hasTable(jobs []Job, table string) bool {
	for _, j := range jobs {
		if j.Table == table {
			return true
		}
	}
	return false
}

// EnforceReferences deletes order and history rows whose product or
// session is missing, then adds the model's foreign keys. It returns the
// rows deleted per constraint. Dialects without constraint DDL only get
// the cleanup.
func EnforceReferences(ctx context.Context, repo storage.Repository) (map[string]int64, error) {
	d := repo.Dialect()
	fks := storage.ForeignKeys()

	orphans := make(map[string]int64, len(fks))
	for _, fk := range fks {
		n, err := repo.Exec(ctx, storage.OrphanDeleteSQL(d, fk))
		if err != nil {
			return orphans, fmt.Errorf("delete orphans for %s: %w", fk.Name, err)
		}
		orphans[fk.Name] = n
		metrics.RecordRecords("orphaned", n)
	}

	for _, fk := range fks {
		q := d.AddForeignKeySQL(fk)
		if q == "" {
			continue
		}
		if _, err := repo.Exec(ctx, q); err != nil {
			return orphans, fmt.Errorf("add constraint %s: %w", fk.Name, err)
		}
	}
	return orphans, nil
}
