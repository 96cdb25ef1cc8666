package coingecko

import (
	"sort"
	"time"

	"CoinPull/internal/domain/models"
)

// CoinGecko picks the series granularity from the requested span: 5-minutely up to
// one day, hourly up to 90 days, daily beyond. Chunk widths follow those tiers.
const (
	fineWidth   = 24 * time.Hour
	mediumWidth = 90 * 24 * time.Hour
	coarseWidth = 180 * 24 * time.Hour
)

// chunkWidth picks the tier for the span still left to fetch. A remainder that a
// 90-day chunk cannot cover in one request but a 180-day chunk could is still
// walked in 90-day steps, so hourly data survives for spans up to 180 days.
func chunkWidth(remaining time.Duration) time.Duration {
	switch {
	case remaining <= fineWidth:
		return fineWidth
	case remaining <= coarseWidth:
		return mediumWidth
	default:
		return coarseWidth
	}
}

// PlanChunks splits [from, to) into provider-sized sub-ranges with a greedy forward walk.
// It returns nil when to is not after from.
func PlanChunks(from, to time.Time) []models.FetchRange {
	var out []models.FetchRange
	for start := from; start.Before(to); {
		end := start.Add(chunkWidth(to.Sub(start)))
		if end.After(to) {
			end = to
		}
		out = append(out, models.FetchRange{From: start, To: end})
		start = end
	}
	return out
}

// dedupSort drops repeated timestamps, keeping the first occurrence, and sorts ascending.
func dedupSort(points []models.PricePoint) []models.PricePoint {
	seen := make(map[int64]struct{}, len(points))
	out := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		key := p.Timestamp.UnixMilli()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
