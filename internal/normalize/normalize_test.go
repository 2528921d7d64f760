package normalize

import (
	"testing"
	"time"

	"github.com/misptools/mispextract/internal/types"
)

func TestEpoch(t *testing.T) {
	n := New()
	ts := time.Date(2024, 6, 1, 9, 30, 5, 0, time.Local)

	got := n.Epoch(ts.Unix())
	if got != "2024-06-01 09:30:05" {
		t.Errorf("unexpected rendering: %s", got)
	}
	// Memoized path returns the same rendering.
	if again := n.Epoch(ts.Unix()); again != got {
		t.Errorf("memoized rendering differs: %s vs %s", again, got)
	}
}

func TestRecord(t *testing.T) {
	n := New()
	eventTS := time.Date(2024, 6, 1, 8, 0, 0, 0, time.Local).Unix()
	attrTS := time.Date(2024, 6, 1, 10, 15, 30, 0, time.Local).Unix()
	comment := "seen in campaign"

	raw := types.RawIOC{
		EventID:            42,
		EventUUID:          "5e8-uuid",
		EventInfo:          "phishing wave",
		EventDate:          "2024-06-01",
		EventTimestamp:     &eventTS,
		AttributeID:        4242,
		AttributeType:      "domain",
		AttributeCategory:  "Network activity",
		AttributeValue:     "evil.example",
		AttributeTimestamp: &attrTS,
		AttributeComment:   &comment,
		AttributeToIDS:     true,
	}

	rec := n.Record(raw)

	if rec.EventTimestamp == nil || *rec.EventTimestamp != "2024-06-01 08:00:00" {
		t.Errorf("unexpected event_timestamp: %v", rec.EventTimestamp)
	}
	if rec.AttributeTimestamp == nil || *rec.AttributeTimestamp != "2024-06-01 10:15:30" {
		t.Errorf("unexpected attribute_timestamp: %v", rec.AttributeTimestamp)
	}
	if rec.EventID != 42 || rec.AttributeID != 4242 {
		t.Errorf("ids must pass through unchanged: %d %d", rec.EventID, rec.AttributeID)
	}
	if rec.AttributeComment == nil || *rec.AttributeComment != comment {
		t.Errorf("comment must pass through unchanged: %v", rec.AttributeComment)
	}
	if !rec.AttributeToIDS {
		t.Error("to_ids flag must pass through unchanged")
	}
}

func TestRecord_NilTimestamps(t *testing.T) {
	n := New()
	raw := types.RawIOC{
		EventID:       1,
		AttributeID:   2,
		AttributeType: "md5",
	}

	rec := n.Record(raw)
	if rec.EventTimestamp != nil {
		t.Errorf("nil event timestamp must stay nil, got %v", *rec.EventTimestamp)
	}
	if rec.AttributeTimestamp != nil {
		t.Errorf("nil attribute timestamp must stay nil, got %v", *rec.AttributeTimestamp)
	}
	if rec.AttributeComment != nil {
		t.Errorf("nil comment must stay nil, got %v", *rec.AttributeComment)
	}

	// Re-running on the same raw row must be stable.
	again := n.Record(raw)
	if again.EventTimestamp != nil || again.AttributeTimestamp != nil {
		t.Error("re-normalizing must not invent timestamps")
	}
}

func TestRecords_PreservesOrder(t *testing.T) {
	n := New()
	raws := []types.RawIOC{
		{AttributeID: 3}, {AttributeID: 1}, {AttributeID: 2},
	}
	recs := n.Records(raws)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, want := range []int64{3, 1, 2} {
		if recs[i].AttributeID != want {
			t.Errorf("order not preserved at %d: got %d, want %d", i, recs[i].AttributeID, want)
		}
	}
}
