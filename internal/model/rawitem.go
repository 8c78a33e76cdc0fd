package model

import "time"

// RawItem is a single published item fetched from a monitored source.
// Items are immutable once stored and retained for audit.
type RawItem struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	ExternalID  string    `json:"external_id,omitempty"` // source-provided id, if any
	URL         string    `json:"url"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// DedupeKey identifies an item within its source: the source-provided
// external id when available, otherwise the URL.
func (r RawItem) DedupeKey() string {
	if r.ExternalID != "" {
		return r.ExternalID
	}
	return r.URL
}
