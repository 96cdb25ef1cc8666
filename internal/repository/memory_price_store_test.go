package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"CoinPull/internal/domain/models"

	"github.com/shopspring/decimal"
)

func pt(asset string, offset time.Duration, price int64) models.PricePoint {
	return models.PricePoint{AssetID: asset, Timestamp: baseTS.Add(offset), Price: decimal.NewFromInt(price)}
}

func newMemory(t *testing.T, points ...models.PricePoint) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(func() time.Time { return baseTS })
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := s.InsertBatch(context.Background(), points); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return s
}

func TestMemoryStoreNotInitialized(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	if _, err := s.Count(ctx); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("count: %v", err)
	}
	if err := s.AppendOne(ctx, "bitcoin", baseTS, decimal.NewFromInt(1)); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.LatestSeries(ctx, "bitcoin", 10); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("latest: %v", err)
	}
	if err := s.Health(ctx); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("health: %v", err)
	}
}

func TestMemoryStoreInitializeTwice(t *testing.T) {
	s := newMemory(t, pt("bitcoin", 0, 1))
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if n, _ := s.Count(context.Background()); n != 1 {
		t.Fatalf("re-initialize must keep data, count=%d", n)
	}
}

func TestMemoryStoreKeepsDuplicates(t *testing.T) {
	s := newMemory(t, pt("bitcoin", 0, 1), pt("bitcoin", 0, 1))
	if n, _ := s.Count(context.Background()); n != 2 {
		t.Fatalf("store must not dedup, count=%d", n)
	}
	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := s.Count(context.Background()); n != 0 {
		t.Fatalf("expected empty after clear, count=%d", n)
	}
}

func TestMemoryStorePageNewestFirst(t *testing.T) {
	s := newMemory(t,
		pt("bitcoin", -3*time.Minute, 1),
		pt("bitcoin", -time.Minute, 3),
		pt("ethereum", -2*time.Minute, 2),
	)
	ctx := context.Background()

	page, err := s.Page(ctx, 2, -1)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 2 || page[0].Price.IntPart() != 3 || page[1].Price.IntPart() != 2 {
		t.Fatalf("unexpected first page %+v", page)
	}

	page, _ = s.Page(ctx, 2, 1)
	if len(page) != 1 || page[0].Price.IntPart() != 1 {
		t.Fatalf("unexpected second page %+v", page)
	}

	page, _ = s.Page(ctx, 2, 5)
	if len(page) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(page))
	}
}

func TestMemoryStorePageIndexOverflow(t *testing.T) {
	s := newMemory(t, pt("bitcoin", -time.Minute, 1))

	page, err := s.Page(context.Background(), 100, 92233720368547759)
	if err != nil || len(page) != 0 {
		t.Fatalf("expected empty page, got %v err=%v", page, err)
	}
}

func TestMemoryStoreSnapshotWindow(t *testing.T) {
	s := newMemory(t,
		pt("solana", -30*time.Hour, 5),
		pt("solana", -2*time.Hour, 6),
		pt("bitcoin", -time.Hour, 2),
		pt("bitcoin", -3*time.Hour, 1),
	)

	snap, err := s.Snapshot(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(snap.Series))
	}
	btc, sol := snap.Series[0], snap.Series[1]
	if btc.AssetID != "bitcoin" || sol.AssetID != "solana" {
		t.Fatalf("series must be ordered by asset id: %s, %s", btc.AssetID, sol.AssetID)
	}
	if len(btc.Points) != 2 || btc.Points[0].Price.IntPart() != 1 {
		t.Fatalf("bitcoin points must be oldest first: %+v", btc.Points)
	}
	if len(sol.Points) != 1 {
		t.Fatalf("points outside the window must be excluded: %+v", sol.Points)
	}
}

func TestMemoryStoreLatestSeries(t *testing.T) {
	s := newMemory(t,
		pt("bitcoin", -time.Minute, 4),
		pt("bitcoin", -4*time.Minute, 1),
		pt("ethereum", 0, 9),
		pt("bitcoin", -2*time.Minute, 3),
		pt("bitcoin", -3*time.Minute, 2),
	)
	ctx := context.Background()

	points, err := s.LatestSeries(ctx, "bitcoin", 3)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(points) != 3 || points[0].Price.IntPart() != 2 || points[2].Price.IntPart() != 4 {
		t.Fatalf("unexpected series %+v", points)
	}

	if err := s.AppendOne(ctx, "bitcoin", baseTS, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("append: %v", err)
	}
	points, _ = s.LatestSeries(ctx, "bitcoin", 1)
	if len(points) != 1 || points[0].Price.IntPart() != 5 {
		t.Fatalf("appended point should be latest, got %+v", points)
	}
}
