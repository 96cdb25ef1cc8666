package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps points in process memory. Used with store.type=memory and in tests.
type MemoryStore struct {
	gate initGate
	mu   sync.RWMutex
	rows []models.PricePoint
	now  func() time.Time
}

var _ domrepo.PriceStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. now defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now}
}

func (s *MemoryStore) Initialize(context.Context) error {
	return s.gate.run(func() error { return nil })
}

func (s *MemoryStore) Clear(context.Context) error {
	if err := s.gate.check(); err != nil {
		return err
	}
	s.mu.Lock()
	s.rows = nil
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) InsertBatch(ctx context.Context, points []models.PricePoint) error {
	if err := s.gate.check(); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	for _, p := range points {
		p.Timestamp = p.Timestamp.UTC()
		s.rows = append(s.rows, p)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AppendOne(ctx context.Context, assetID string, ts time.Time, price decimal.Decimal) error {
	return s.InsertBatch(ctx, []models.PricePoint{{AssetID: assetID, Timestamp: ts, Price: price}})
}

func (s *MemoryStore) Count(context.Context) (int64, error) {
	if err := s.gate.check(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows)), nil
}

func (s *MemoryStore) Page(_ context.Context, pageSize, pageIndex int) ([]models.PricePoint, error) {
	if err := s.gate.check(); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		return nil, nil
	}
	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageIndex > math.MaxInt/pageSize {
		return []models.PricePoint{}, nil
	}

	all := s.copyRows()
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.After(all[j].Timestamp)
		}
		return all[i].AssetID < all[j].AssetID
	})

	start := pageSize * pageIndex
	if start >= len(all) {
		return []models.PricePoint{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *MemoryStore) Snapshot(_ context.Context, window time.Duration) (models.Snapshot, error) {
	if err := s.gate.check(); err != nil {
		return models.Snapshot{}, err
	}
	takenAt := s.now().UTC()
	cutoff := takenAt.Add(-window)

	all := s.copyRows()
	in := all[:0]
	for _, p := range all {
		if !p.Timestamp.Before(cutoff) {
			in = append(in, p)
		}
	}
	sortByAssetThenTime(in)
	return models.Snapshot{TakenAt: takenAt, Window: window, Series: groupSeries(in)}, nil
}

func (s *MemoryStore) LatestSeries(_ context.Context, assetID string, limit int) ([]models.PricePoint, error) {
	if err := s.gate.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	var series []models.PricePoint
	for _, p := range s.rows {
		if p.AssetID == assetID {
			series = append(series, p)
		}
	}
	s.mu.RUnlock()

	sortByAssetThenTime(series)
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	return series, nil
}

func (s *MemoryStore) Health(context.Context) error {
	return s.gate.check()
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) copyRows() []models.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PricePoint, len(s.rows))
	copy(out, s.rows)
	return out
}

func sortByAssetThenTime(points []models.PricePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].AssetID != points[j].AssetID {
			return points[i].AssetID < points[j].AssetID
		}
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
}
