package usecase

import (
	"sort"
	"time"

	"CoinPull/internal/domain/models"
	dsvc "CoinPull/internal/domain/service"

	"github.com/shopspring/decimal"
)

const DefaultMoversLimit = 20

var hundred = decimal.NewFromInt(100)

// Movers ranks assets by absolute percentage change over a trailing window.
type Movers struct{}

var _ dsvc.MoverAnalyzer = Movers{}

func NewMovers() Movers { return Movers{} }

// TopMovers computes one row per series with at least two points, sorted by |ChangePct|
// descending. Ties keep snapshot order. limit <= 0 means DefaultMoversLimit.
func (Movers) TopMovers(snapshot models.Snapshot, window time.Duration, limit int) []models.MoverRow {
	if limit <= 0 {
		limit = DefaultMoversLimit
	}
	cutoff := snapshot.TakenAt.Add(-window)

	rows := make([]models.MoverRow, 0, len(snapshot.Series))
	for _, s := range snapshot.Series {
		if len(s.Points) < 2 {
			continue
		}
		end := s.Points[len(s.Points)-1].Price
		start := startPrice(s.Points, cutoff)
		rows = append(rows, models.MoverRow{
			AssetID:    s.AssetID,
			StartPrice: start,
			EndPrice:   end,
			ChangePct:  changePct(start, end),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ChangePct.Abs().GreaterThan(rows[j].ChangePct.Abs())
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// startPrice is the first point inside the window other than the last one, or the
// earliest point when the window holds nothing else.
func startPrice(points []models.PricePoint, cutoff time.Time) decimal.Decimal {
	for _, p := range points[:len(points)-1] {
		if !p.Timestamp.Before(cutoff) {
			return p.Price
		}
	}
	return points[0].Price
}

func changePct(start, end decimal.Decimal) decimal.Decimal {
	if start.IsZero() {
		return decimal.Zero
	}
	return end.Sub(start).Div(start).Mul(hundred).Round(8)
}
