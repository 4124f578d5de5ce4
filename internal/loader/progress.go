package loader

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"recsys/internal/metrics"
)

// Phase identifies a progress event.
type Phase int

const (
	PhaseStart Phase = iota + 1
	PhaseRows
	PhaseRowSkipped
	PhaseDone
	PhaseCleared
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseRows:
		return "rows"
	case PhaseRowSkipped:
		return "row_skipped"
	case PhaseDone:
		return "done"
	case PhaseCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is one progress notification. Total is the row count handed to Load
// (or the rows removed, for PhaseCleared). Row is set for PhaseRowSkipped.
type Event struct {
	Phase    Phase
	Table    string
	Total    int64
	Inserted int64
	Skipped  int64
	Row      int
	Elapsed  time.Duration
	Err      error
}

// Progress receives loader events synchronously.
type Progress func(Event)

// Tee fans one event out to every non-nil reporter in order.
func Tee(reporters ...Progress) Progress {
	return func(ev Event) {
		for _, r := range reporters {
			if r != nil {
				r(ev)
			}
		}
	}
}

// LogReporter writes events to l. Counts are rendered with thousands
// separators in the message so console output stays readable on big tables.
func LogReporter(l zerolog.Logger) Progress {
	p := message.NewPrinter(language.English)
	return func(ev Event) {
		switch ev.Phase {
		case PhaseStart:
			l.Debug().Str("table", ev.Table).Int64("rows", ev.Total).
				Msg(p.Sprintf("loading %d rows into %s", ev.Total, ev.Table))
		case PhaseRows:
			l.Info().Str("table", ev.Table).Int64("inserted", ev.Inserted).Int64("skipped", ev.Skipped).
				Int64("rows", ev.Total).Dur("elapsed", ev.Elapsed).
				Msg(p.Sprintf("%s: %d/%d rows", ev.Table, ev.Inserted+ev.Skipped, ev.Total))
		case PhaseRowSkipped:
			l.Warn().Err(ev.Err).Str("table", ev.Table).Int("row", ev.Row).Msg("row skipped")
		case PhaseCleared:
			l.Debug().Str("table", ev.Table).Int64("deleted", ev.Total).
				Msg(p.Sprintf("cleared %d rows from %s", ev.Total, ev.Table))
		case PhaseDone:
			e := l.Info()
			if ev.Err != nil {
				e = l.Error().Err(ev.Err)
			}
			e.Str("table", ev.Table).Int64("inserted", ev.Inserted).Int64("skipped", ev.Skipped).
				Dur("elapsed", ev.Elapsed).
				Msg(p.Sprintf("loaded %d rows into %s (%d skipped)", ev.Inserted, ev.Table, ev.Skipped))
		}
	}
}

// MetricsReporter records done events as a "load:<table>" step plus
// inserted/skipped record counts.
func MetricsReporter() Progress {
	return func(ev Event) {
		if ev.Phase != PhaseDone {
			return
		}
		metrics.RecordStep("load:"+ev.Table, time.Now().Add(-ev.Elapsed), ev.Err)
		metrics.RecordRecords("inserted", ev.Inserted)
		metrics.RecordRecords("skipped", ev.Skipped)
	}
}
