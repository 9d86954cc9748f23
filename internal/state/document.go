package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauern/marksync/internal/model"
)

// document is the JSON layout of a snapshot:
//
//	{"version": 1, "updated_at": "...", "links": {"<bookmark_id>": {...}}}
type document struct {
	Version   int                         `json:"version"`
	UpdatedAt time.Time                   `json:"updated_at"`
	Links     map[string]model.LinkRecord `json:"links"`
}

// checkVersion rejects missing and future schema versions.
func checkVersion(v int) error {
	switch {
	case v <= 0:
		return fmt.Errorf("%w: missing schema version", ErrCorrupt)
	case v > SchemaVersion:
		return fmt.Errorf("%w: found version %d, this build supports up to %d", ErrUnsupportedVersion, v, SchemaVersion)
	}
	return nil
}

// decodeDocument parses a JSON snapshot. The version is checked before the
// body so a future layout fails fast instead of being half-read.
func decodeDocument(data []byte) (*Snapshot, error) {
	var header struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := checkVersion(header.Version); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return snapshotFromRecords(doc.Version, doc.UpdatedAt, doc.Links)
}

func snapshotFromRecords(version int, updated time.Time, records map[string]model.LinkRecord) (*Snapshot, error) {
	links, err := model.NewLinks()
	if err != nil {
		return nil, err
	}
	for key, r := range records {
		if key != r.BookmarkID {
			return nil, fmt.Errorf("%w: record key %q does not match bookmark id %q", ErrCorrupt, key, r.BookmarkID)
		}
		if err := links.Add(r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return &Snapshot{Version: version, UpdatedAt: updated, Links: links}, nil
}

func encodeDocument(snap *Snapshot) ([]byte, error) {
	doc := document{
		Version:   SchemaVersion,
		UpdatedAt: snap.UpdatedAt,
		Links:     make(map[string]model.LinkRecord, snap.Len()),
	}
	if snap.Links != nil {
		for _, r := range snap.Links.Records() {
			doc.Links[r.BookmarkID] = r
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}
