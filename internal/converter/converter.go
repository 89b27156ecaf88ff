// Package converter drives a Mela export through the mapper into a Paprika archive.
package converter

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/starford/melaconv/internal/apperr"
	"github.com/starford/melaconv/internal/checksum"
	"github.com/starford/melaconv/internal/ledger"
	"github.com/starford/melaconv/internal/mapper"
	"github.com/starford/melaconv/internal/mela"
	"github.com/starford/melaconv/internal/paprika"
)

// Event kinds passed to EventCallback.
const (
	EventStarted  = "started"
	EventFinished = "finished"
	EventFailed   = "failed"
)

// EventCallback is called when a conversion starts and when it ends.
// count is zero for EventStarted; err is non-nil only for EventFailed.
type EventCallback func(kind, source string, count int, err error)

// Ledger records conversion runs. *ledger.DB satisfies it.
type Ledger interface {
	BeginRun(run ledger.RunRow) (int64, error)
	RecordEntry(e ledger.EntryRow) error
	FinishRun(id int64, count int, runErr error, finished time.Time) error
}

// Converter runs conversions. It holds no per-run state and may be reused.
type Converter struct {
	mapper  *mapper.Mapper
	output  paprika.Options
	logger  *slog.Logger
	ledger  Ledger
	onEvent EventCallback
}

// Option configures a Converter.
type Option func(*Converter)

// WithMapper replaces the default mapper.
func WithMapper(m *mapper.Mapper) Option {
	return func(c *Converter) { c.mapper = m }
}

// WithOutputOptions sets the overwrite and duplicate-name policy.
func WithOutputOptions(o paprika.Options) Option {
	return func(c *Converter) { c.output = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// WithLedger records every run and entry in l.
func WithLedger(l Ledger) Option {
	return func(c *Converter) { c.ledger = l }
}

// WithEvents registers a run lifecycle callback.
func WithEvents(cb EventCallback) Option {
	return func(c *Converter) { c.onEvent = cb }
}

// New creates a Converter.
func New(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	if c.mapper == nil {
		c.mapper = mapper.New()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// With returns a copy of c with opts applied on top of its settings.
func (c *Converter) With(opts ...Option) *Converter {
	cp := *c
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// OutputOptions returns the writer options used by Convert.
func (c *Converter) OutputOptions() paprika.Options {
	return c.output
}

// Convert converts the source archive at src into a new target archive at
// dst and returns the number of recipes written. It stops at the first
// failing record; in that case dst is left as it was before the call.
func (c *Converter) Convert(ctx context.Context, src, dst string) (int, error) {
	var sum string
	if c.ledger != nil {
		sum, _ = checksum.File(src)
	}
	run := c.begin(src, dst, sum)

	r, err := mela.Open(src)
	if err != nil {
		return 0, run.finish(0, &apperr.StageError{Stage: apperr.StageRead, Err: err})
	}
	defer r.Close()

	w, err := paprika.Create(dst, c.output)
	if err != nil {
		return 0, run.finish(0, &apperr.StageError{Stage: apperr.StageWrite, Err: err})
	}

	n, err := c.stream(ctx, r, w, run)
	if err != nil {
		w.Abort()
		return n, run.finish(n, err)
	}
	if err := w.Close(); err != nil {
		return n, run.finish(n, &apperr.StageError{Stage: apperr.StageWrite, Err: err})
	}
	return n, run.finish(n, nil)
}

// ConvertStream converts every recipe of r into w. It does not close w; the
// caller finalizes it after a nil error. label names the source in logs,
// events and the ledger. label is never read from disk, so the ledger row
// carries no source checksum.
func (c *Converter) ConvertStream(ctx context.Context, label string, r *mela.Reader, w *paprika.Writer) (int, error) {
	run := c.begin(label, "", "")
	n, err := c.stream(ctx, r, w, run)
	return n, run.finish(n, err)
}

func (c *Converter) stream(ctx context.Context, r *mela.Reader, w *paprika.Writer, run *runTracker) (int, error) {
	n := 0
	for e, err := range r.Recipes() {
		if err != nil {
			return n, &apperr.StageError{Stage: apperr.StageRead, Entry: e.Name, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return n, &apperr.StageError{Stage: apperr.StageRead, Entry: e.Name, Err: err}
		}

		rec, err := c.mapper.Map(e.Header, e.Recipe)
		if err != nil {
			return n, &apperr.StageError{Stage: apperr.StageMap, Entry: e.Name, Err: err}
		}

		target, err := w.Add(rec)
		if err != nil {
			return n, &apperr.StageError{Stage: apperr.StageWrite, Entry: e.Name, Err: err}
		}
		n++

		c.logger.Debug("converted recipe",
			slog.String("entry", e.Name),
			slog.Int("ordinal", e.Header.Ordinal),
			slog.String("target", target))

		run.entry(ledger.EntryRow{
			Entry:    e.Name,
			Ordinal:  e.Header.Ordinal,
			Title:    e.Header.Title,
			SourceID: e.Recipe.ID,
			Target:   target,
			Hash:     rec.Hash,
		})
	}
	return n, nil
}

// runTracker forwards one run's progress to the logger, ledger and callback.
// Ledger failures are logged and never fail the conversion.
type runTracker struct {
	c      *Converter
	source string
	output string
	id     int64
	start  time.Time
}

func (c *Converter) begin(source, output, sourceChecksum string) *runTracker {
	t := &runTracker{c: c, source: source, output: output, start: time.Now()}

	c.logger.Info("conversion started",
		slog.String("source", source),
		slog.String("output", output))

	if c.ledger != nil {
		row := ledger.RunRow{Source: source, Output: output, SourceChecksum: sourceChecksum, StartedAt: t.start}
		id, err := c.ledger.BeginRun(row)
		if err != nil {
			c.logger.Warn("ledger: begin run failed", slog.String("error", err.Error()))
		}
		t.id = id
	}
	if c.onEvent != nil {
		c.onEvent(EventStarted, source, 0, nil)
	}
	return t
}

func (t *runTracker) entry(e ledger.EntryRow) {
	if t.c.ledger == nil || t.id == 0 {
		return
	}
	e.RunID = t.id
	if err := t.c.ledger.RecordEntry(e); err != nil {
		t.c.logger.Warn("ledger: record entry failed",
			slog.String("entry", e.Entry),
			slog.String("error", err.Error()))
	}
}

func (t *runTracker) finish(count int, runErr error) error {
	c := t.c
	if c.ledger != nil && t.id != 0 {
		if err := c.ledger.FinishRun(t.id, count, runErr, time.Now()); err != nil {
			c.logger.Warn("ledger: finish run failed", slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		c.logger.Error("conversion failed",
			slog.String("source", t.source),
			slog.Int("count", count),
			slog.String("error", runErr.Error()))
		if c.onEvent != nil {
			c.onEvent(EventFailed, t.source, count, runErr)
		}
		return runErr
	}

	c.logger.Info("conversion finished",
		slog.String("source", t.source),
		slog.String("output", t.output),
		slog.Int("count", count),
		slog.Duration("elapsed", time.Since(t.start)))
	if c.onEvent != nil {
		c.onEvent(EventFinished, t.source, count, nil)
	}
	return nil
}
