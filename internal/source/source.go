package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/misptools/mispextract/internal/config"
	"github.com/misptools/mispextract/internal/types"
)

// DB is an open read-only connection to the MISP MySQL database.
type DB struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// Connect opens the MISP database connection and verifies it with a ping.
// A failure here is the one condition the caller treats as fatal for the
// run; there is no retry.
func Connect(cfg config.Database, log *zap.SugaredLogger) (*DB, error) {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open misp database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to misp database at %s: %w", mc.Addr, err)
	}

	var version string
	if err := db.QueryRow("SELECT VERSION()").Scan(&version); err == nil {
		log.Infow("connected to misp database", "addr", mc.Addr, "mysql_version", version)
	} else {
		log.Infow("connected to misp database", "addr", mc.Addr)
	}
	return &DB{db: db, log: log}, nil
}

// Connected reports whether the connection is still usable.
func (d *DB) Connected() bool {
	return d.db.Ping() == nil
}

// Close releases the underlying connection pool. Safe to call once on every
// exit path.
func (d *DB) Close() error {
	return d.db.Close()
}

// FetchRecent runs the delta query and returns the raw rows, most recently
// modified attribute first. The error is returned alongside an empty slice
// so the caller can choose to treat a failed query as a zero-record run.
func (d *DB) FetchRecent(ctx context.Context, lookback time.Duration, typeFilters []string) ([]types.RawIOC, error) {
	if !d.Connected() {
		return nil, errors.New("misp connection not established")
	}

	cutoff := time.Now().Add(-lookback)
	query := BuildDeltaQuery(typeFilters)

	rows, err := d.db.QueryContext(ctx, query, queryArgs(typeFilters, cutoff)...)
	if err != nil {
		return nil, fmt.Errorf("query recent iocs: %w", err)
	}
	defer rows.Close()

	var out []types.RawIOC
	for rows.Next() {
		var (
			r       types.RawIOC
			eventTS sql.NullInt64
			attrTS  sql.NullInt64
			comment sql.NullString
			toIDS   sql.NullInt64
		)
		if err := rows.Scan(
			&r.EventID, &r.EventUUID, &r.EventInfo, &r.EventDate, &eventTS,
			&r.AttributeID, &r.AttributeType, &r.AttributeCategory,
			&r.AttributeValue, &attrTS, &comment, &toIDS,
		); err != nil {
			return nil, fmt.Errorf("scan ioc row: %w", err)
		}
		if eventTS.Valid {
			v := eventTS.Int64
			r.EventTimestamp = &v
		}
		if attrTS.Valid {
			v := attrTS.Int64
			r.AttributeTimestamp = &v
		}
		if comment.Valid {
			v := comment.String
			r.AttributeComment = &v
		}
		r.AttributeToIDS = toIDS.Valid && toIDS.Int64 != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ioc rows: %w", err)
	}

	d.log.Infow("retrieved iocs", "count", len(out), "lookback", lookback)
	return out, nil
}
