// Package loader writes normalized tuples into relational tables.
//
// Rows are inserted with parameterized statements whose column order is the
// caller's column list, so value/column alignment never depends on map
// iteration. A failing row either aborts the load (OnRowErrorStop) or is
// counted and skipped (OnRowErrorSkip).
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recsys/internal/storage"
)

// OnRowError selects what happens when a single row fails to insert.
type OnRowError int

const (
	// OnRowErrorStop aborts the remaining load on the first failing row.
	OnRowErrorStop OnRowError = iota
	// OnRowErrorSkip counts the row as skipped and continues.
	OnRowErrorSkip
)

func (p OnRowError) String() string {
	switch p {
	case OnRowErrorStop:
		return "stop"
	case OnRowErrorSkip:
		return "skip"
	default:
		return fmt.Sprintf("OnRowError(%d)", int(p))
	}
}

// ParseOnRowError accepts "stop" (or "") and "skip".
func ParseOnRowError(s string) (OnRowError, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stop":
		return OnRowErrorStop, nil
	case "skip":
		return OnRowErrorSkip, nil
	default:
		return OnRowErrorStop, fmt.Errorf("on_row_error: unknown policy %q (want stop|skip)", s)
	}
}

// defaultReportEvery is the row interval between PhaseRows events.
const defaultReportEvery = 10000

// Loader inserts rows through a storage.Repository.
type Loader struct {
	Repo       storage.Repository
	OnRowError OnRowError

	// BatchSize > 1 switches OnRowErrorStop loads to multi-row INSERTs. A
	// failing batch is retried row by row, so a load stops at the same row
	// with the same rows stored as an unbatched one. Skip-policy loads are
	// always row by row.
	BatchSize int

	// Progress receives start, periodic and done events. May be nil.
	Progress Progress

	// ReportEvery is the row interval for PhaseRows events; <= 0 uses 10000.
	ReportEvery int
}

// Result summarizes one Load call.
type Result struct {
	Table    string
	Inserted int64
	Skipped  int64
	Duration time.Duration
}

// RowError reports the row a Stop-policy load failed on.
type RowError struct {
	Table string
	Row   int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("load %s: insert row %d: %v", e.Table, e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Load inserts rows into table. Every row must have len(columns) values.
//
// Errors:
//   - context cancellation aborts the load under either policy.
//   - a shape error (wrong row length) is a row error like any other.
//   - under OnRowErrorStop the first row error is returned as *RowError;
//     rows inserted before it stay inserted.
func (l *Loader) Load(ctx context.Context, table string, columns []string, rows [][]any) (Result, error) {
	if l.Repo == nil {
		return Result{}, fmt.Errorf("load %s: nil repository", table)
	}
	if table == "" {
		return Result{}, fmt.Errorf("load: table is empty")
	}
	if len(columns) == 0 {
		return Result{}, fmt.Errorf("load %s: no columns", table)
	}

	start := time.Now()
	res := Result{Table: table}
	l.emit(Event{Phase: PhaseStart, Table: table, Total: int64(len(rows))})

	var err error
	if l.BatchSize > 1 && l.OnRowError == OnRowErrorStop {
		err = l.loadBatched(ctx, table, columns, rows, &res, start)
	} else {
		err = l.loadRows(ctx, table, columns, rows, &res, start)
	}

	res.Duration = time.Since(start)
	l.emit(Event{
		Phase:    PhaseDone,
		Table:    table,
		Total:    int64(len(rows)),
		Inserted: res.Inserted,
		Skipped:  res.Skipped,
		Elapsed:  res.Duration,
		Err:      err,
	})
	return res, err
}

func (l *Loader) loadRows(ctx context.Context, table string, columns []string, rows [][]any, res *Result, start time.Time) error {
	q := storage.InsertSQL(l.Repo.Dialect(), table, columns)
	every := l.reportEvery()

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}

		err := l.insertRow(ctx, q, columns, row)
		switch {
		case err == nil:
			res.Inserted++
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("load %s: %w", table, err)
		case l.OnRowError == OnRowErrorSkip:
			res.Skipped++
			l.emit(Event{Phase: PhaseRowSkipped, Table: table, Row: i, Err: err})
		default:
			return &RowError{Table: table, Row: i, Err: err}
		}

		if (i+1)%every == 0 {
			l.emit(Event{
				Phase:    PhaseRows,
				Table:    table,
				Total:    int64(len(rows)),
				Inserted: res.Inserted,
				Skipped:  res.Skipped,
				Elapsed:  time.Since(start),
			})
		}
	}
	return nil
}

func (l *Loader) insertRow(ctx context.Context, q string, columns []string, row []any) error {
	if len(row) != len(columns) {
		return fmt.Errorf("row has %d values, want %d", len(row), len(columns))
	}
	_, err := l.Repo.Exec(ctx, q, row...)
	return err
}

func (l *Loader) loadBatched(ctx context.Context, table string, columns []string, rows [][]any, res *Result, start time.Time) error {
	size := l.BatchSize
	if per := storage.RowsPerStatement(len(columns)); size > per {
		size = per
	}
	d := l.Repo.Dialect()

	for lo := 0; lo < len(rows); lo += size {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
		hi := lo + size
		if hi > len(rows) {
			hi = len(rows)
		}

		err := l.insertBatch(ctx, d, table, columns, rows[lo:hi])
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("load %s: %w", table, err)
		}
		if err != nil {
			// One statement per batch, so nothing of it was stored: replay
			// the batch row by row to keep the rows before the bad one and
			// report its real index.
			if err := l.replay(ctx, table, columns, rows, lo, hi, res); err != nil {
				return err
			}
		} else {
			res.Inserted += int64(hi - lo)
		}

		l.emit(Event{
			Phase:    PhaseRows,
			Table:    table,
			Total:    int64(len(rows)),
			Inserted: res.Inserted,
			Elapsed:  time.Since(start),
		})
	}
	return nil
}

func (l *Loader) insertBatch(ctx context.Context, d storage.Dialect, table string, columns []string, batch [][]any) error {
	q, args, err := storage.BulkInsertSQL(d, table, columns, batch)
	if err != nil {
		return err
	}
	_, err = l.Repo.Exec(ctx, q, args...)
	return err
}

func (l *Loader) replay(ctx context.Context, table string, columns []string, rows [][]any, lo, hi int, res *Result) error {
	q := storage.InsertSQL(l.Repo.Dialect(), table, columns)
	for i := lo; i < hi; i++ {
		if err := l.insertRow(ctx, q, columns, rows[i]); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("load %s: %w", table, err)
			}
			return &RowError{Table: table, Row: i, Err: err}
		}
		res.Inserted++
	}
	return nil
}

// Clear deletes every row of table and returns the number removed.
func (l *Loader) Clear(ctx context.Context, table string) (int64, error) {
	if l.Repo == nil {
		return 0, fmt.Errorf("clear %s: nil repository", table)
	}
	n, err := l.Repo.Exec(ctx, "DELETE FROM "+table)
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}
	l.emit(Event{Phase: PhaseCleared, Table: table, Total: n})
	return n, nil
}

// Replace clears table and loads rows into it.
func (l *Loader) Replace(ctx context.Context, table string, columns []string, rows [][]any) (Result, error) {
	if _, err := l.Clear(ctx, table); err != nil {
		return Result{}, err
	}
	return l.Load(ctx, table, columns, rows)
}

func (l *Loader) reportEvery() int {
	if l.ReportEvery <= 0 {
		return defaultReportEvery
	}
	return l.ReportEvery
}

func (l *Loader) emit(ev Event) {
	if l.Progress != nil {
		l.Progress(ev)
	}
}
