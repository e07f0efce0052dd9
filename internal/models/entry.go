package models

// CacheEntry summarizes one tracked resource for display.
type CacheEntry struct {
	Resource  ResourceID `json:"resource"`
	Name      string     `json:"name"`
	Selection []TrackKey `json:"-"`
	Tracks    []string   `json:"tracks"`
	State     string     `json:"state"`
	Removing  bool       `json:"removing"`
	Files     int        `json:"files"`
	Bytes     int64      `json:"bytes"`
}

// NewCacheEntry builds an entry from a tracked record and its index statistics.
func NewCacheEntry(rec ActionRecord, stats ResourceStats) CacheEntry {
	keys := rec.Keys()
	tracks := make([]string, len(keys))
	for i, k := range keys {
		tracks[i] = k.String()
	}
	return CacheEntry{
		Resource:  rec.Resource,
		Name:      rec.Name(),
		Selection: keys,
		Tracks:    tracks,
		Files:     stats.Files,
		Bytes:     stats.Bytes,
	}
}
