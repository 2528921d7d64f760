package source

import (
	"strings"
	"testing"
	"time"
)

func TestBuildDeltaQuery_Placeholders(t *testing.T) {
	types := []string{"ip-src", "domain", "md5"}
	q := BuildDeltaQuery(types)

	// One placeholder per type filter plus the cutoff twice.
	if got, want := strings.Count(q, "?"), len(types)+2; got != want {
		t.Errorf("expected %d placeholders, got %d", want, got)
	}
	if !strings.Contains(q, "a.type IN (?,?,?)") {
		t.Errorf("unexpected type filter clause in query:\n%s", q)
	}
}

func TestBuildDeltaQuery_WindowOnEitherTimestamp(t *testing.T) {
	q := BuildDeltaQuery([]string{"url"})
	if !strings.Contains(q, "(a.timestamp >= ? OR e.timestamp >= ?)") {
		t.Errorf("query must include rows when either the attribute or its parent event was touched:\n%s", q)
	}
}

func TestBuildDeltaQuery_Ordering(t *testing.T) {
	q := BuildDeltaQuery([]string{"url"})
	if !strings.Contains(q, "ORDER BY a.timestamp DESC") {
		t.Errorf("query must order by descending attribute time:\n%s", q)
	}
}

func TestQueryArgs(t *testing.T) {
	cutoff := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	types := []string{"ip-src", "sha256"}

	args := queryArgs(types, cutoff)

	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	if args[0] != "ip-src" || args[1] != "sha256" {
		t.Errorf("type filters must come first, got %v", args[:2])
	}
	epoch := cutoff.Unix()
	if args[2] != epoch || args[3] != epoch {
		t.Errorf("cutoff must be bound twice as epoch seconds, got %v", args[2:])
	}
}
