package usecase

import (
	"testing"
	"time"

	"CoinPull/internal/domain/models"

	"github.com/shopspring/decimal"
)

var refTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type at struct {
	ago   time.Duration
	price string
}

func series(asset string, pts ...at) models.AssetSeries {
	s := models.AssetSeries{AssetID: asset}
	for _, p := range pts {
		s.Points = append(s.Points, models.PricePoint{
			AssetID:   asset,
			Timestamp: refTime.Add(-p.ago),
			Price:     decimal.RequireFromString(p.price),
		})
	}
	return s
}

func TestTopMoversFallsBackToEarliestPoint(t *testing.T) {
	snap := models.Snapshot{TakenAt: refTime, Window: 72 * time.Hour, Series: []models.AssetSeries{
		series("X", at{48 * time.Hour, "100"}, at{0, "150"}),
	}}

	rows := NewMovers().TopMovers(snap, 24*time.Hour, 20)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if !r.StartPrice.Equal(decimal.NewFromInt(100)) || !r.EndPrice.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("start=%s end=%s", r.StartPrice, r.EndPrice)
	}
	if !r.ChangePct.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("change=%s, want 50", r.ChangePct)
	}
}

func TestTopMoversUsesFirstPointInWindow(t *testing.T) {
	snap := models.Snapshot{TakenAt: refTime, Window: 72 * time.Hour, Series: []models.AssetSeries{
		series("X", at{48 * time.Hour, "100"}, at{20 * time.Hour, "200"}, at{time.Hour, "150"}),
	}}

	rows := NewMovers().TopMovers(snap, 24*time.Hour, 20)
	if !rows[0].StartPrice.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("start should be first in-window point, got %s", rows[0].StartPrice)
	}
	if !rows[0].ChangePct.Equal(decimal.NewFromInt(-25)) {
		t.Fatalf("change=%s, want -25", rows[0].ChangePct)
	}
}

func TestTopMoversExcludesSinglePointSeries(t *testing.T) {
	snap := models.Snapshot{TakenAt: refTime, Series: []models.AssetSeries{
		series("lonely", at{time.Hour, "10"}),
		series("pair", at{2 * time.Hour, "10"}, at{time.Hour, "11"}),
	}}

	rows := NewMovers().TopMovers(snap, 24*time.Hour, 20)
	if len(rows) != 1 || rows[0].AssetID != "pair" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestTopMoversZeroStartPrice(t *testing.T) {
	snap := models.Snapshot{TakenAt: refTime, Series: []models.AssetSeries{
		series("z", at{2 * time.Hour, "0"}, at{time.Hour, "5"}),
	}}

	rows := NewMovers().TopMovers(snap, 24*time.Hour, 20)
	if !rows[0].ChangePct.IsZero() {
		t.Fatalf("zero start must give zero change, got %s", rows[0].ChangePct)
	}
}

func TestTopMoversSortsByAbsoluteChangeAndTruncates(t *testing.T) {
	snap := models.Snapshot{TakenAt: refTime, Series: []models.AssetSeries{
		series("a", at{2 * time.Hour, "100"}, at{time.Hour, "105"}), // +5
		series("b", at{2 * time.Hour, "100"}, at{time.Hour, "70"}),  // -30
		series("c", at{2 * time.Hour, "100"}, at{time.Hour, "95"}),  // -5
		series("d", at{2 * time.Hour, "100"}, at{time.Hour, "120"}), // +20
	}}

	rows := NewMovers().TopMovers(snap, 24*time.Hour, 3)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	got := []string{rows[0].AssetID, rows[1].AssetID, rows[2].AssetID}
	want := []string{"b", "d", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v (ties keep input order)", got, want)
		}
	}
}

func TestTopMoversDefaultLimit(t *testing.T) {
	snap := models.Snapshot{TakenAt: refTime}
	for i := 0; i < 25; i++ {
		snap.Series = append(snap.Series, series(string(rune('a'+i)), at{2 * time.Hour, "1"}, at{time.Hour, "2"}))
	}
	if rows := NewMovers().TopMovers(snap, time.Hour, 0); len(rows) != DefaultMoversLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultMoversLimit, len(rows))
	}
}
