package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/misptools/mispextract/internal/types"
)

// Write serializes the full record set as a pretty-printed JSON array at
// path, truncating any prior snapshot. The snapshot is a point-in-time
// document; a failure here must not block the cache write, so the caller
// decides what to do with the error.
func Write(records []types.IOCRecord, path string) error {
	if records == nil {
		records = []types.IOCRecord{}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode snapshot %s: %w", path, err)
	}
	return nil
}
