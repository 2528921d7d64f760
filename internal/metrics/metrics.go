package metrics

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

var (
	RecordsExtracted = prometheus.NewCounter(prometheus.CounterOpts{Name: "mispextract_records_extracted_total", Help: "iocs returned by the delta query"})
	CacheRowsWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "mispextract_cache_rows_written_total", Help: "rows inserted into the local cache"})
	SnapshotWrites   = prometheus.NewCounter(prometheus.CounterOpts{Name: "mispextract_snapshot_writes_total", Help: "successful snapshot writes"})
	StageFailures    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mispextract_stage_failures_total", Help: "non-fatal stage failures"}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(RecordsExtracted, CacheRowsWritten, SnapshotWrites, StageFailures)
}

// Push delivers the run's counters to a Pushgateway. The process is a
// one-shot cron job, so there is nothing to scrape; pushing is the only
// delivery path. Delivery is retried briefly, the pipeline itself never is.
func Push(gateway, job string, log *zap.SugaredLogger) {
	if gateway == "" {
		return
	}
	op := func() error {
		return push.New(gateway, job).Gatherer(prometheus.DefaultGatherer).Push()
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(op, bo); err != nil {
		log.Warnw("metrics push failed", "gateway", gateway, "err", err)
	}
}
