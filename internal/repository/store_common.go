package repository

import (
	"sync"
	"sync/atomic"

	"CoinPull/internal/domain/models"
)

// initGate makes a store refuse work until Initialize has succeeded once.
type initGate struct {
	mu    sync.Mutex
	ready atomic.Bool
}

func (g *initGate) check() error {
	if !g.ready.Load() {
		return models.ErrNotInitialized
	}
	return nil
}

// run executes setup at most once successfully; later calls return nil immediately.
func (g *initGate) run(setup func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ready.Load() {
		return nil
	}
	if err := setup(); err != nil {
		return err
	}
	g.ready.Store(true)
	return nil
}

// groupSeries splits points already ordered by (asset, ts) into per-asset series.
func groupSeries(points []models.PricePoint) []models.AssetSeries {
	var out []models.AssetSeries
	for _, p := range points {
		if n := len(out); n == 0 || out[n-1].AssetID != p.AssetID {
			out = append(out, models.AssetSeries{AssetID: p.AssetID})
		}
		last := &out[len(out)-1]
		last.Points = append(last.Points, p)
	}
	return out
}
