package models

import "time"

// SeedRequest describes one seeding run.
type SeedRequest struct {
	AssetIDs      []string
	QuoteCurrency string
	TargetRows    int64
	ClearFirst    bool
}

// AssetFailure records a per-asset error that did not abort the surrounding operation.
type AssetFailure struct {
	AssetID string
	Err     error
}

// Status renders the failure as a status line.
func (f AssetFailure) Status() string {
	return StatusLine(f.AssetID, f.Err)
}

// SeedResult is the outcome of a seeding run, complete or partial.
type SeedResult struct {
	Inserted int64
	Fetched  int64
	Failures []AssetFailure
}

// TickResult is the outcome of one live polling cycle.
type TickResult struct {
	Started  time.Time
	Polled   []string
	Updated  int
	Failures []AssetFailure
	Degraded bool
}

// SeedSummary is the persisted, display-friendly record of the last seeding run.
type SeedSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Target     int64     `json:"target"`
	Inserted   int64     `json:"inserted"`
	Fetched    int64     `json:"fetched"`
	Failures   []string  `json:"failures,omitempty"`
	Status     string    `json:"status"`
}
