package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one observed price of an asset. (AssetID, Timestamp) is the dedup key.
type PricePoint struct {
	AssetID   string          `json:"asset_id"`
	Timestamp time.Time       `json:"ts"`
	Price     decimal.Decimal `json:"price"`
}

// AssetSeries is a time-ordered view of one asset's points.
type AssetSeries struct {
	AssetID string       `json:"asset_id"`
	Points  []PricePoint `json:"points"`
}

// Snapshot holds every asset's points inside [TakenAt-Window, TakenAt].
// Series are ordered by asset id so iteration order is deterministic.
type Snapshot struct {
	TakenAt time.Time
	Window  time.Duration
	Series  []AssetSeries
}

// MoverRow is the price change of one asset over a trailing window.
type MoverRow struct {
	AssetID    string          `json:"asset_id"`
	StartPrice decimal.Decimal `json:"start_price"`
	EndPrice   decimal.Decimal `json:"end_price"`
	ChangePct  decimal.Decimal `json:"change_pct"`
}

// FetchRange is a half-open [From, To) interval.
type FetchRange struct {
	From time.Time
	To   time.Time
}

// Span returns the length of the range, or zero when empty.
func (r FetchRange) Span() time.Duration {
	if !r.To.After(r.From) {
		return 0
	}
	return r.To.Sub(r.From)
}

func (r FetchRange) String() string {
	return r.From.UTC().Format(time.RFC3339) + ".." + r.To.UTC().Format(time.RFC3339)
}
