package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/misptools/mispextract/internal/cache"
	"github.com/misptools/mispextract/internal/config"
	"github.com/misptools/mispextract/internal/metrics"
	"github.com/misptools/mispextract/internal/normalize"
	"github.com/misptools/mispextract/internal/snapshot"
	"github.com/misptools/mispextract/internal/types"
)

// Source is the read side of the pipeline: something that can answer the
// windowed delta query.
type Source interface {
	FetchRecent(ctx context.Context, lookback time.Duration, typeFilters []string) ([]types.RawIOC, error)
}

// Report is what one run produced. Any of the error fields being set means
// the run was a degraded success; none of them changes the exit status.
type Report struct {
	Records   int
	CacheRows int

	QueryErr    error
	SnapshotErr error
	RotateErr   error
	CacheErr    error
}

// Degraded reports whether any non-fatal stage failed.
func (r Report) Degraded() bool {
	return r.QueryErr != nil || r.SnapshotErr != nil || r.RotateErr != nil || r.CacheErr != nil
}

// Pipeline runs one extraction: query, normalize, snapshot, rotate, cache.
// Strictly sequential; the source connection is owned by the caller.
type Pipeline struct {
	cfg    *config.Config
	log    *zap.SugaredLogger
	norm   *normalize.Normalizer
	tracer trace.Tracer
	now    func() time.Time
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		log:    log,
		norm:   normalize.New(),
		tracer: otel.Tracer("mispextract/pipeline"),
		now:    time.Now,
	}
}

// Run executes the pipeline against an already-connected source. Every
// failure past the connect step is absorbed here: logged, counted, recorded
// in the Report, and the run carries on. Snapshot and cache writes are
// independent; neither blocks the other.
func (p *Pipeline) Run(ctx context.Context, src Source) Report {
	var rep Report

	lookback := time.Duration(p.cfg.Extraction.HoursLookback) * time.Hour
	p.log.Infow("fetching iocs", "hours_lookback", p.cfg.Extraction.HoursLookback, "types", len(p.cfg.Extraction.IOCTypes))

	ctx, span := p.tracer.Start(ctx, "fetch_recent")
	raws, err := src.FetchRecent(ctx, lookback, p.cfg.Extraction.IOCTypes)
	span.End()
	if err != nil {
		// A failed query degrades to a zero-record run instead of
		// aborting; only the connect step may kill the process.
		p.log.Errorw("querying misp database failed", "err", err)
		metrics.StageFailures.WithLabelValues("query").Inc()
		rep.QueryErr = err
		raws = nil
	}

	records := p.norm.Records(raws)
	rep.Records = len(records)
	metrics.RecordsExtracted.Add(float64(len(records)))

	if len(records) == 0 {
		p.log.Warnw("no iocs found in the lookback window", "hours_lookback", p.cfg.Extraction.HoursLookback)
		return rep
	}

	p.writeSnapshot(ctx, records, &rep)
	p.writeCache(ctx, records, &rep)
	return rep
}

func (p *Pipeline) writeSnapshot(ctx context.Context, records []types.IOCRecord, rep *Report) {
	_, span := p.tracer.Start(ctx, "write_snapshot",
		trace.WithAttributes(attribute.Int("records", len(records))))
	defer span.End()

	if err := snapshot.Write(records, p.cfg.Output.JSONFile); err != nil {
		p.log.Errorw("snapshot write failed", "path", p.cfg.Output.JSONFile, "err", err)
		metrics.StageFailures.WithLabelValues("snapshot").Inc()
		rep.SnapshotErr = err
		return
	}
	metrics.SnapshotWrites.Inc()
	p.log.Infow("saved iocs to snapshot", "count", len(records), "path", p.cfg.Output.JSONFile)
}

func (p *Pipeline) writeCache(ctx context.Context, records []types.IOCRecord, rep *Report) {
	_, span := p.tracer.Start(ctx, "write_cache",
		trace.WithAttributes(attribute.Int("records", len(records))))
	defer span.End()

	if err := cache.Rotate(p.cfg.Output.CacheDB, p.cfg.Output.BackupDB); err != nil {
		// Best effort: without a backup the new rows land on whatever
		// is already at the cache path.
		p.log.Warnw("cache rotation failed, proceeding without backup", "err", err)
		metrics.StageFailures.WithLabelValues("rotate").Inc()
		rep.RotateErr = err
	} else {
		p.log.Infow("rotated cache", "cache", p.cfg.Output.CacheDB, "backup", p.cfg.Output.BackupDB)
	}

	st, err := cache.Open(p.cfg.Output.CacheDB)
	if err != nil {
		p.log.Errorw("opening cache failed", "path", p.cfg.Output.CacheDB, "err", err)
		metrics.StageFailures.WithLabelValues("cache").Inc()
		rep.CacheErr = err
		return
	}
	defer st.Close()

	n, err := st.InsertBatch(records, p.now())
	rep.CacheRows = n
	metrics.CacheRowsWritten.Add(float64(n))
	if err != nil {
		p.log.Errorw("cache write aborted", "path", p.cfg.Output.CacheDB, "inserted", n, "err", err)
		metrics.StageFailures.WithLabelValues("cache").Inc()
		rep.CacheErr = err
		return
	}
	p.log.Infow("saved iocs to cache", "count", n, "path", p.cfg.Output.CacheDB)
}
