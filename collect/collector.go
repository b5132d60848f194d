// Package collect drives the per-country collection pipeline: for every
// catalog entry it chooses a fetch range from the stored history, fetches
// the series upstream and merges it into the records store.
//
// Countries are processed by a bounded worker pool. A fetch failure or a
// constraint violation fails only that country; a storage I/O failure stops
// the run, letting in-flight merges finish.
//
// Usage:
//
//	c, err := collect.New(cfg, logger)
//	defer c.Close()
//	report, err := c.Collect(ctx, collect.Recent)
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/striezel/corona-sub001/catalog"
	"github.com/striezel/corona-sub001/collect/internal/apiclient"
	"github.com/striezel/corona-sub001/collect/internal/precheck"
	"github.com/striezel/corona-sub001/collect/internal/rangeselect"
	"github.com/striezel/corona-sub001/collect/internal/store"
	"github.com/striezel/corona-sub001/dbopen"
	"github.com/striezel/corona-sub001/idgen"
	"github.com/striezel/corona-sub001/kit"
	"github.com/striezel/corona-sub001/observability"
	"github.com/striezel/corona-sub001/trace"
)

// Fetcher retrieves one country's series for a range.
type Fetcher interface {
	Fetch(ctx context.Context, country catalog.Country, r rangeselect.Range) (*apiclient.Result, error)
}

// Store is the durable state the collector merges into and reads from.
type Store interface {
	SyncCountries(ctx context.Context, countries []catalog.Country) error
	LastKnownDate(ctx context.Context, countryID string) (time.Time, bool, error)
	Upsert(ctx context.Context, countryID string, records []store.DailyRecord) (*store.MergeResult, error)
	EngineVersion(ctx context.Context) (string, error)
	Records(ctx context.Context, countryID string) ([]store.DailyRecord, error)
	Anomalies(ctx context.Context, countryID string) ([]store.Anomaly, error)
	Countries(ctx context.Context) ([]catalog.Country, error)
	Stats(ctx context.Context) (*store.Stats, error)
	Close() error
}

// Collector runs collections. Collect calls on one Collector do not overlap.
type Collector struct {
	cfg       *Config
	logger    *slog.Logger
	countries []catalog.Country
	fetcher   Fetcher
	store     Store
	metrics   *observability.MetricsManager
	events    *observability.EventLogger
	now       func() time.Time
	newID     idgen.Generator

	running sync.Mutex
	closers []func() error
}

// Option configures a Collector.
type Option func(*Collector)

// WithFetcher replaces the upstream client.
func WithFetcher(f Fetcher) Option { return func(c *Collector) { c.fetcher = f } }

// WithStore replaces the records store. The Collector closes it on Close.
func WithStore(s Store) Option { return func(c *Collector) { c.store = s } }

func WithMetrics(m *observability.MetricsManager) Option { return func(c *Collector) { c.metrics = m } }

func WithEvents(e *observability.EventLogger) Option { return func(c *Collector) { c.events = e } }

// WithClock sets the clock deciding "today" for range selection.
func WithClock(now func() time.Time) Option { return func(c *Collector) { c.now = now } }

// WithIDGenerator sets the run ID generator.
func WithIDGenerator(gen idgen.Generator) Option { return func(c *Collector) { c.newID = gen } }

// New builds a Collector from cfg. Components not supplied through options
// are created from cfg: the records store at DBPath, the upstream client,
// and, when MetricsDBPath is set, the metrics and event loggers.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Collector, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	countries, err := selectCountries(cfg)
	if err != nil {
		return nil, err
	}

	c := &Collector{
		cfg:       cfg,
		logger:    logger,
		countries: countries,
		now:       time.Now,
		newID:     idgen.Prefixed("run_", idgen.Default),
	}
	for _, o := range opts {
		o(c)
	}

	if c.store == nil {
		dbOpts := []dbopen.Option{dbopen.WithBusyTimeout(int(cfg.BusyTimeout.Milliseconds()))}
		if cfg.TraceSQL {
			dbOpts = append(dbOpts, dbopen.WithDriver(trace.DriverName))
		}
		s, err := store.Open(cfg.DBPath, dbOpts...)
		if err != nil {
			return nil, fmt.Errorf("collect: open store: %w", err)
		}
		s.Now = c.now
		c.store = s
	}
	c.closers = append(c.closers, c.store.Close)

	if c.fetcher == nil {
		client, err := apiclient.New(cfg.API.client(), apiclient.WithLogger(logger), apiclient.WithClock(c.now))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.fetcher = client
	}

	if cfg.MetricsDBPath != "" && c.metrics == nil && c.events == nil {
		if err := c.openObservability(cfg.MetricsDBPath); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) openObservability(path string) error {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(),
		dbopen.WithBusyTimeout(int(c.cfg.BusyTimeout.Milliseconds())),
		dbopen.WithSchema(observability.Schema), dbopen.WithSchema(trace.Schema))
	if err != nil {
		return fmt.Errorf("collect: open metrics db: %w", err)
	}
	c.metrics = observability.NewMetricsManager(db, 100, 5*time.Second)
	c.events = observability.NewEventLogger(db)
	// Closed in reverse: flush metrics and traces before the database goes away.
	c.closers = append(c.closers, db.Close, c.metrics.Close)
	if c.cfg.TraceSQL {
		ts := trace.NewStore(db)
		trace.SetStore(ts)
		c.closers = append(c.closers, func() error {
			trace.SetStore(nil)
			return ts.Close()
		})
	}
	return nil
}

func selectCountries(cfg *Config) ([]catalog.Country, error) {
	list, err := catalog.Filter(cfg.Countries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownCountry, err)
	}
	if cfg.Continent == "" {
		return list, nil
	}
	cont, err := catalog.ParseContinent(cfg.Continent)
	if err != nil {
		return nil, err
	}
	var out []catalog.Country
	for _, co := range list {
		if co.Continent == cont {
			out = append(out, co)
		}
	}
	return out, nil
}

// Close releases everything the Collector opened.
func (c *Collector) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Countries returns the countries this Collector collects, in catalog order.
func (c *Collector) Countries() []catalog.Country {
	out := make([]catalog.Country, len(c.countries))
	copy(out, c.countries)
	return out
}

// UpstreamState reports the upstream circuit breaker state, or "" when the
// fetcher carries no breaker.
func (c *Collector) UpstreamState() string {
	if b, ok := c.fetcher.(interface{ Breaker() *apiclient.Breaker }); ok {
		return b.Breaker().State().String()
	}
	return ""
}

// Precheck reads the SQLite engine version and checks it against the
// configured thresholds. An unreadable version is fatal.
func (c *Collector) Precheck(ctx context.Context) precheck.Status {
	v, err := c.store.EngineVersion(ctx)
	if err != nil {
		return precheck.Status{Level: precheck.LevelFatal, Message: fmt.Sprintf("cannot read SQLite version: %v", err)}
	}
	return precheck.Check(v, precheck.Requirements{
		Minimum:     c.cfg.Precheck.MinVersion,
		Recommended: c.cfg.Precheck.RecommendedVersion,
	})
}

// Collect runs one collection over the configured countries.
//
// The returned report is never nil. err is nil when the run completed,
// even with per-country failures. Otherwise it wraps ErrPrecheckFatal (no
// country attempted), ErrRunFatal together with the *store.StoreError that
// stopped the run, or the context error when ctx was cancelled.
func (c *Collector) Collect(ctx context.Context, mode Mode) (*RunReport, error) {
	if mode != Recent && mode != All {
		return &RunReport{Mode: mode}, fmt.Errorf("%w: %v", ErrInvalidMode, mode)
	}
	if !c.running.TryLock() {
		return &RunReport{Mode: mode}, ErrRunInProgress
	}
	defer c.running.Unlock()

	runID := c.newID()
	ctx = kit.WithRunID(ctx, runID)
	log := c.logger.With("run_id", runID, "mode", mode.String())
	report := &RunReport{RunID: runID, Mode: mode, StartedAt: c.now().UTC()}

	st := c.Precheck(ctx)
	switch st.Level {
	case precheck.LevelFatal:
		log.Error("collect: precheck failed", "message", st.Message)
		report.FinishedAt = c.now().UTC()
		return report, fmt.Errorf("%w: %s", ErrPrecheckFatal, st.Message)
	case precheck.LevelWarn:
		log.Warn("collect: precheck warning", "message", st.Message)
		report.Warnings = append(report.Warnings, st.Message)
	}

	if err := c.store.SyncCountries(context.WithoutCancel(ctx), c.countries); err != nil {
		report.FinishedAt = c.now().UTC()
		report.Fatal = &Failure{Reason: err.Error()}
		log.Error("collect: sync countries", "error", err)
		return report, fmt.Errorf("%w: %w", ErrRunFatal, err)
	}

	c.events.LogEvent(ctx, observability.RunEvent{
		RunID: runID, EventType: observability.EventRunStarted, Mode: mode.String(), Success: true,
		Details: map[string]int{"countries": len(c.countries)},
	})
	log.Info("collect: run started", "countries", len(c.countries), "concurrency", c.cfg.Concurrency)

	pool := c.runPool(ctx, log, mode)

	c.aggregate(report, pool.outcomes)
	report.NotStarted = pool.notStarted
	report.FinishedAt = c.now().UTC()

	var err error
	switch {
	case pool.fatalErr != nil:
		err = fmt.Errorf("%w: %w", ErrRunFatal, pool.fatalErr)
	case ctx.Err() != nil:
		report.Cancelled = true
		err = ctx.Err()
	}

	c.finish(ctx, log, report, err)
	return report, err
}

// runPool fans the countries out to Concurrency workers. A worker checks
// for cancellation and for a fatal store failure before each country; once
// either happens the remaining countries are drained without being started.
func (c *Collector) runPool(ctx context.Context, log *slog.Logger, mode Mode) poolResult {
	jobs := make(chan int, len(c.countries))
	for i := range c.countries {
		jobs <- i
	}
	close(jobs)

	var (
		mu         sync.Mutex
		outcomes   = make([]*Outcome, len(c.countries))
		notStarted []string
		fatal      atomic.Bool
		fatalErr   error
		wg         sync.WaitGroup
	)

	workers := min(c.cfg.Concurrency, len(c.countries))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				country := c.countries[i]
				if ctx.Err() != nil || fatal.Load() {
					mu.Lock()
					notStarted = append(notStarted, country.ID)
					mu.Unlock()
					continue
				}

				out, err := c.collectOne(ctx, log, country, mode)
				if out == nil {
					// cancelled mid-fetch
					mu.Lock()
					notStarted = append(notStarted, country.ID)
					mu.Unlock()
					continue
				}

				mu.Lock()
				outcomes[i] = out
				if out.Status == StatusFatal && fatalErr == nil {
					fatalErr = err
					fatal.Store(true)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	list := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o != nil {
			list = append(list, *o)
		}
	}
	ordered := make([]string, 0, len(notStarted))
	for _, co := range c.countries {
		for _, id := range notStarted {
			if id == co.ID {
				ordered = append(ordered, id)
				break
			}
		}
	}
	return poolResult{outcomes: list, notStarted: ordered, fatalErr: fatalErr}
}

type poolResult struct {
	outcomes   []Outcome
	notStarted []string // catalog order
	fatalErr   error
}

// collectOne handles one country end to end. It returns a nil outcome when
// ctx was cancelled before the merge started; a non-nil error accompanies
// StatusFatal outcomes.
func (c *Collector) collectOne(ctx context.Context, log *slog.Logger, country catalog.Country, mode Mode) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{CountryID: country.ID, Name: country.Name, Status: StatusSuccess}
	log = log.With("country", country.ID)
	defer func() { out.Duration = time.Since(start) }()

	last, known, err := c.store.LastKnownDate(ctx, country.ID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return c.storeFailure(log, out, "last date", err)
	}

	rng := rangeselect.Select(mode, last, known, c.now(), c.cfg.MaxRecentDays)
	out.Mode = rng.Mode

	res, err := c.fetcher.Fetch(ctx, country, rng)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		var fe *apiclient.FetchError
		if errors.As(err, &fe) {
			out.Attempts = fe.Attempts
		}
		out.Status = StatusPartialFailure
		out.Reason = err.Error()
		log.Warn("collect: fetch failed", "error", err, "attempts", out.Attempts)
		return out, nil
	}
	out.Attempts = res.Attempts

	// The merge of a fetched batch always runs to completion.
	mr, err := c.store.Upsert(context.WithoutCancel(ctx), country.ID, res.Records)
	if err != nil {
		return c.storeFailure(log, out, "merge", err)
	}
	out.RecordsWritten = mr.Written()
	out.Anomalies = len(mr.Anomalies)
	out.anomalies = mr.Anomalies
	if mr.SkippedFuture > 0 {
		log.Warn("collect: skipped future-dated records", "count", mr.SkippedFuture)
	}
	log.Debug("collect: country done",
		"range", rng.Mode.String(), "inserted", mr.Inserted, "updated", mr.Updated,
		"unchanged", mr.Unchanged, "anomalies", len(mr.Anomalies))
	return out, nil
}

// storeFailure maps a store error onto the outcome. Constraint violations
// fail the country; anything else is a storage failure and fatal.
func (c *Collector) storeFailure(log *slog.Logger, out *Outcome, step string, err error) (*Outcome, error) {
	out.Reason = fmt.Sprintf("%s: %v", step, err)
	if store.IsConstraint(err) {
		out.Status = StatusPartialFailure
		log.Error("collect: constraint violation", "step", step, "error", err)
		return out, nil
	}
	out.Status = StatusFatal
	log.Error("collect: storage failure, aborting run", "step", step, "error", err)
	return out, err
}

func (c *Collector) aggregate(report *RunReport, outcomes []Outcome) {
	report.Outcomes = outcomes
	report.PartialFailures = []Failure{}
	report.Anomalies = []Anomaly{}
	for i := range outcomes {
		o := &report.Outcomes[i]
		switch o.Status {
		case StatusSuccess:
			report.Succeeded++
			report.TotalRecordsWritten += o.RecordsWritten
			report.Anomalies = append(report.Anomalies, o.anomalies...)
		case StatusPartialFailure:
			report.PartialFailures = append(report.PartialFailures, Failure{CountryID: o.CountryID, Name: o.Name, Reason: o.Reason})
		case StatusFatal:
			report.Fatal = &Failure{CountryID: o.CountryID, Name: o.Name, Reason: o.Reason}
		}
	}
}

// finish records per-country metrics, the run_finished event and the
// summary log line.
func (c *Collector) finish(ctx context.Context, log *slog.Logger, report *RunReport, runErr error) {
	for _, o := range report.Outcomes {
		status := o.Status.String()
		c.metrics.RecordCountry(observability.MetricCountryDurationMs, report.RunID, o.CountryID, status, float64(o.Duration.Milliseconds()), "milliseconds")
		c.metrics.RecordCountry(observability.MetricRecordsWritten, report.RunID, o.CountryID, status, float64(o.RecordsWritten), "count")
		c.metrics.RecordCountry(observability.MetricFetchAttempts, report.RunID, o.CountryID, status, float64(o.Attempts), "count")
	}
	elapsed := report.FinishedAt.Sub(report.StartedAt)
	c.metrics.Record(&observability.Metric{
		Name:   observability.MetricRunDurationMs,
		Value:  float64(elapsed.Milliseconds()),
		Unit:   "milliseconds",
		Labels: map[string]string{"run_id": report.RunID, "mode": report.Mode.String()},
	})

	summary := map[string]any{
		"succeeded":             report.Succeeded,
		"partial_failures":      len(report.PartialFailures),
		"total_records_written": report.TotalRecordsWritten,
		"anomalies":             len(report.Anomalies),
		"not_started":           len(report.NotStarted),
		"cancelled":             report.Cancelled,
	}
	if runErr != nil {
		summary["error"] = runErr.Error()
	}
	c.events.LogEvent(context.WithoutCancel(ctx), observability.RunEvent{
		RunID: report.RunID, EventType: observability.EventRunFinished, Mode: report.Mode.String(),
		Details: summary, Success: runErr == nil,
	})

	attrs := []any{
		"succeeded", report.Succeeded,
		"partial_failures", len(report.PartialFailures),
		"records_written", report.TotalRecordsWritten,
		"anomalies", len(report.Anomalies),
		"duration_ms", elapsed.Milliseconds(),
	}
	switch {
	case report.Fatal != nil:
		log.Error("collect: run aborted", append(attrs, "fatal_country", report.Fatal.CountryID, "not_started", len(report.NotStarted))...)
	case report.Cancelled:
		log.Warn("collect: run cancelled", append(attrs, "not_started", len(report.NotStarted))...)
	default:
		log.Info("collect: run finished", attrs...)
	}
}
