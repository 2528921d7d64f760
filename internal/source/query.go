package source

import (
	"strings"
	"time"
)

// BuildDeltaQuery returns the parameterized delta query for the given
// number of attribute type filters. A row qualifies when either the
// attribute or its parent event was modified after the cutoff, so a
// freshly-edited event deliberately drags all of its attributes into the
// window regardless of their own age.
func BuildDeltaQuery(typeFilters []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(typeFilters)), ",")
	return `SELECT
    e.id AS event_id,
    e.uuid AS event_uuid,
    e.info AS event_info,
    e.date AS event_date,
    e.timestamp AS event_timestamp,
    a.id AS attribute_id,
    a.type AS attribute_type,
    a.category AS attribute_category,
    a.value1 AS attribute_value,
    a.timestamp AS attribute_timestamp,
    a.comment AS attribute_comment,
    a.to_ids AS attribute_to_ids
FROM events e
JOIN attributes a ON e.id = a.event_id
WHERE a.type IN (` + placeholders + `)
  AND (a.timestamp >= ? OR e.timestamp >= ?)
ORDER BY a.timestamp DESC`
}

// queryArgs binds one argument per type filter plus the cutoff twice, in
// the order the placeholders appear. MISP stores both timestamp columns as
// epoch integers, so the cutoff is bound as epoch seconds.
func queryArgs(typeFilters []string, cutoff time.Time) []interface{} {
	args := make([]interface{}, 0, len(typeFilters)+2)
	for _, t := range typeFilters {
		args = append(args, t)
	}
	epoch := cutoff.Unix()
	args = append(args, epoch, epoch)
	return args
}
