package normalize

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/misptools/mispextract/internal/types"
)

// TimeLayout is the canonical timestamp rendering used in the snapshot and
// the cache database. Local time on purpose: downstream consumers compare
// these strings against the host clock.
const TimeLayout = "2006-01-02 15:04:05"

// Normalizer renders epoch timestamps as TimeLayout strings. Every
// attribute row repeats its parent event's epoch, so renderings are
// memoized in a small LRU.
type Normalizer struct {
	cache *lru.Cache[int64, string]
}

func New() *Normalizer {
	c, _ := lru.New[int64, string](4096)
	return &Normalizer{cache: c}
}

// Epoch renders a single epoch second in local time.
func (n *Normalizer) Epoch(ts int64) string {
	if s, ok := n.cache.Get(ts); ok {
		return s
	}
	s := time.Unix(ts, 0).Format(TimeLayout)
	n.cache.Add(ts, s)
	return s
}

// Record converts a raw source row into its normalized form. Only the two
// epoch fields are touched; nil timestamps stay nil and every other field
// passes through unchanged.
func (n *Normalizer) Record(raw types.RawIOC) types.IOCRecord {
	rec := types.IOCRecord{
		EventID:           raw.EventID,
		EventUUID:         raw.EventUUID,
		EventInfo:         raw.EventInfo,
		EventDate:         raw.EventDate,
		AttributeID:       raw.AttributeID,
		AttributeType:     raw.AttributeType,
		AttributeCategory: raw.AttributeCategory,
		AttributeValue:    raw.AttributeValue,
		AttributeComment:  raw.AttributeComment,
		AttributeToIDS:    raw.AttributeToIDS,
	}
	if raw.EventTimestamp != nil {
		s := n.Epoch(*raw.EventTimestamp)
		rec.EventTimestamp = &s
	}
	if raw.AttributeTimestamp != nil {
		s := n.Epoch(*raw.AttributeTimestamp)
		rec.AttributeTimestamp = &s
	}
	return rec
}

// Records normalizes a whole result set, preserving order.
func (n *Normalizer) Records(raws []types.RawIOC) []types.IOCRecord {
	out := make([]types.IOCRecord, 0, len(raws))
	for _, r := range raws {
		out = append(out, n.Record(r))
	}
	return out
}
