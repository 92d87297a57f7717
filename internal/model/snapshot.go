package model

import "time"

// Snapshot is one cached file-list batch, addressed by the canonical filter key.
type Snapshot struct {
	Key       string       `json:"key"`
	Query     string       `json:"query"`
	Files     []FileRecord `json:"files"`
	FetchedAt time.Time    `json:"fetched_at"`
}
