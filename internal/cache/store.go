package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/misptools/mispextract/internal/normalize"
	"github.com/misptools/mispextract/internal/types"
)

// Store is the local SQLite cache of one run's imported IOC records.
type Store struct {
	db   *sql.DB
	path string
}

// The executive_summary column is reserved by downstream consumers of the
// cache file and is never written by this tool. Keep it in the schema.
const schema = `
CREATE TABLE IF NOT EXISTS misp_iocs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  event_id INTEGER,
  event_uuid TEXT,
  event_info TEXT,
  event_date TEXT,
  event_timestamp TEXT,
  attribute_id INTEGER,
  attribute_type TEXT,
  attribute_category TEXT,
  attribute_value TEXT,
  attribute_timestamp TEXT,
  attribute_comment TEXT,
  attribute_to_ids INTEGER,
  import_time TEXT,
  executive_summary TEXT
);
CREATE INDEX IF NOT EXISTS idx_attribute_type ON misp_iocs (attribute_type);
CREATE INDEX IF NOT EXISTS idx_attribute_value ON misp_iocs (attribute_value);
CREATE INDEX IF NOT EXISTS idx_event_id ON misp_iocs (event_id);
`

// Open opens (or creates) the cache database at path and ensures the
// schema and indices exist. Creation is idempotent.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("cache path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	st := &Store{db: db, path: path}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate cache %s: %w", path, err)
	}
	return st, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertBatch inserts one row per record, each stamped with importTime.
// The batch has no transaction on purpose: the first failing insert aborts
// the rest, and rows already written stay. Returns the number of rows
// actually inserted.
func (s *Store) InsertBatch(records []types.IOCRecord, importTime time.Time) (int, error) {
	stmt, err := s.db.Prepare(`INSERT INTO misp_iocs (
  event_id, event_uuid, event_info, event_date, event_timestamp,
  attribute_id, attribute_type, attribute_category, attribute_value,
  attribute_timestamp, attribute_comment, attribute_to_ids, import_time
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare cache insert: %w", err)
	}
	defer stmt.Close()

	stamp := importTime.Format(normalize.TimeLayout)
	inserted := 0
	for _, rec := range records {
		toIDS := 0
		if rec.AttributeToIDS {
			toIDS = 1
		}
		_, err := stmt.Exec(
			rec.EventID, rec.EventUUID, rec.EventInfo, rec.EventDate,
			rec.EventTimestamp, rec.AttributeID, rec.AttributeType,
			rec.AttributeCategory, rec.AttributeValue, rec.AttributeTimestamp,
			rec.AttributeComment, toIDS, stamp,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert ioc (attribute_id=%d) into %s: %w", rec.AttributeID, s.path, err)
		}
		inserted++
	}
	return inserted, nil
}

// Count returns the number of cached rows, for post-run verification.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM misp_iocs`).Scan(&n)
	return n, err
}
