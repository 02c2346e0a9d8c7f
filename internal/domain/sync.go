package domain

import "time"

// ItemError records a single document that could not be synced.
type ItemError struct {
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
}

// SyncStats holds the outcome of one reconciliation run.
type SyncStats struct {
	FolderID string
	Listed   int
	Upserted int
	Deleted  int
	Errors   []ItemError
	Duration time.Duration
}
