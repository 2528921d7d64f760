package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/misptools/mispextract/internal/config"
	"github.com/misptools/mispextract/internal/logging"
	"github.com/misptools/mispextract/internal/metrics"
	"github.com/misptools/mispextract/internal/pipeline"
	"github.com/misptools/mispextract/internal/source"
	"github.com/misptools/mispextract/internal/telemetry"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	var configFile string
	var hoursLookback int
	var jsonFile string
	var cacheDB string
	var backupDB string
	var logFile string
	var pushGateway string
	var otelEndpoint string
	var otelInsecure bool
	var otelService string
	var showVersion bool

	flag.StringVar(&configFile, "config", "", "path to config file (YAML or JSON)")
	flag.IntVar(&hoursLookback, "hours_lookback", 0, "hours to look back for recent IOCs")
	flag.StringVar(&jsonFile, "json_file", "", "path for the JSON snapshot")
	flag.StringVar(&cacheDB, "cache_db", "", "path for the SQLite IOC cache")
	flag.StringVar(&backupDB, "backup_db", "", "path for the previous-run cache backup")
	flag.StringVar(&logFile, "log_file", "", "path for the persistent run log")
	flag.StringVar(&pushGateway, "push_gateway", "", "Prometheus Pushgateway URL (empty to disable)")
	flag.StringVar(&otelEndpoint, "otel_endpoint", "", "OTLP HTTP endpoint (host:port)")
	flag.BoolVar(&otelInsecure, "otel_insecure", true, "OTLP insecure (no TLS)")
	flag.StringVar(&otelService, "otel_service", "", "OTEL service.name")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mispextract - cache recently added or updated MISP IOCs\n\n")
		fmt.Fprintf(os.Stderr, "Extracts IOCs touched within the lookback window from a MISP MySQL\n")
		fmt.Fprintf(os.Stderr, "database into a JSON snapshot and a local SQLite cache. The previous\n")
		fmt.Fprintf(os.Stderr, "cache is kept as a single backup generation. Meant to run from cron,\n")
		fmt.Fprintf(os.Stderr, "one instance at a time.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -config=misp_db_config.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config=misp_db_config.yaml -hours_lookback=48\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables (also read from .env):\n")
		fmt.Fprintf(os.Stderr, "  MISP_DB_HOST, MISP_DB_PORT, MISP_DB_USER, MISP_DB_PASSWORD, MISP_DB_NAME\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Println("mispextract v" + version)
		return 0
	}

	// Credentials may live in a .env next to the cron entry.
	_ = godotenv.Load()

	var cfg *config.Config
	var cfgErr error
	if configFile != "" {
		cfg, cfgErr = config.LoadFromFile(configFile)
	} else {
		cfg, cfgErr = config.LoadFromFile("misp_db_config.yaml")
		if cfgErr != nil {
			cfg, cfgErr = config.LoadFromFile("misp_db_config.json")
		}
	}
	if cfgErr != nil {
		// The fallback carries placeholder credentials: the run goes on
		// and fails at the connect step instead of at config time.
		cfg = config.Default()
	}

	cfg.LoadFromEnv()

	flags := make(map[string]interface{})
	if hoursLookback > 0 {
		flags["hours_lookback"] = hoursLookback
	}
	if jsonFile != "" {
		flags["json_file"] = jsonFile
	}
	if cacheDB != "" {
		flags["cache_db"] = cacheDB
	}
	if backupDB != "" {
		flags["backup_db"] = backupDB
	}
	if logFile != "" {
		flags["log_file"] = logFile
	}
	if pushGateway != "" {
		flags["push_gateway"] = pushGateway
	}
	if otelEndpoint != "" {
		flags["otel_endpoint"] = otelEndpoint
	}
	if otelService != "" {
		flags["otel_service"] = otelService
	}
	flags["otel_insecure"] = otelInsecure
	cfg.MergeWithFlags(flags)

	log, err := logging.New(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		return 1
	}
	defer log.Sync()

	if cfgErr != nil {
		log.Warnw("config load failed, using default configuration", "err", cfgErr)
	} else if configFile != "" {
		log.Infow("loaded configuration", "file", configFile)
	}

	if err := cfg.Validate(); err != nil {
		log.Errorw("invalid configuration", "err", err)
		return 1
	}

	ctx := context.Background()

	shutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.OTELService, cfg.OTELInsecure)
	if err != nil {
		log.Warnw("otel init failed", "err", err)
	} else {
		defer shutdown(context.Background())
	}

	// The source connection is the only held external resource. Connect
	// failure is the single fatal outcome; everything after this point is
	// logged and absorbed.
	db, err := source.Connect(cfg.Database, log)
	if err != nil {
		log.Errorw("failed to connect to misp database", "err", err)
		metrics.StageFailures.WithLabelValues("connect").Inc()
		metrics.Push(cfg.PushGateway, "mispextract", log)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warnw("closing misp connection failed", "err", err)
		} else {
			log.Info("misp connection closed")
		}
	}()

	rep := pipeline.New(cfg, log).Run(ctx, db)

	switch {
	case rep.Degraded():
		log.Warnw("run finished with degraded stages",
			"records", rep.Records,
			"cache_rows", rep.CacheRows,
			"query_err", rep.QueryErr,
			"snapshot_err", rep.SnapshotErr,
			"rotate_err", rep.RotateErr,
			"cache_err", rep.CacheErr,
		)
	default:
		log.Infow("run completed", "records", rep.Records, "cache_rows", rep.CacheRows)
	}

	metrics.Push(cfg.PushGateway, "mispextract", log)
	return 0
}
