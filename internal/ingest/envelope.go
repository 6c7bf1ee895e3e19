package ingest

import "time"

// Envelope is one completed message with its provenance.
type Envelope struct {
	ID         uint64              `json:"id"`
	Source     string              `json:"source"`
	Body       string              `json:"body"`
	ReceivedAt time.Time           `json:"received_at"`
	Values     map[string][]string `json:"values,omitempty"`
}
