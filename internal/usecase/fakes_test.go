package usecase

import (
	"context"
	"sync"
	"time"

	"CoinPull/internal/domain/models"

	"github.com/shopspring/decimal"
)

type rangeCall struct {
	asset    string
	quote    string
	from, to time.Time
}

type fakeFetcher struct {
	mu       sync.Mutex
	ranges   map[string][]models.PricePoint
	rangeErr map[string]error
	spots    map[string]decimal.Decimal
	spotErr  map[string]error
	block    chan struct{}
	// spotBlock holds FetchSpot until closed; spotEntered is signalled on entry.
	spotBlock   chan struct{}
	spotEntered chan struct{}

	rangeCalls []rangeCall
	spotCalls  []string
	inFlight   int
	maxFlight  int
}

func (f *fakeFetcher) FetchRange(ctx context.Context, assetID, quote string, from, to time.Time) ([]models.PricePoint, error) {
	f.mu.Lock()
	f.rangeCalls = append(f.rangeCalls, rangeCall{assetID, quote, from, to})
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, models.Cancelled(ctx.Err())
		}
	} else {
		time.Sleep(time.Millisecond)
	}
	if err := f.rangeErr[assetID]; err != nil {
		return nil, err
	}
	return f.ranges[assetID], nil
}

func (f *fakeFetcher) FetchSpot(ctx context.Context, assetID, quote string) (decimal.Decimal, bool, error) {
	f.mu.Lock()
	f.spotCalls = append(f.spotCalls, assetID)
	f.mu.Unlock()
	if f.spotBlock != nil {
		if f.spotEntered != nil {
			select {
			case f.spotEntered <- struct{}{}:
			default:
			}
		}
		select {
		case <-f.spotBlock:
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return decimal.Zero, false, models.Cancelled(err)
	}
	if err := f.spotErr[assetID]; err != nil {
		return decimal.Zero, false, err
	}
	p, ok := f.spots[assetID]
	return p, ok, nil
}

func (f *fakeFetcher) spotCallsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spotCalls...)
}

type fakePresenter struct {
	mu       sync.Mutex
	series   map[string][]models.PricePoint
	movers   [][]models.MoverRow
	progress [][2]int64
	statuses []string
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{series: map[string][]models.PricePoint{}}
}

func (p *fakePresenter) UpdateSeries(assetID string, points []models.PricePoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[assetID] = points
}

func (p *fakePresenter) UpdateMovers(rows []models.MoverRow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.movers = append(p.movers, rows)
}

func (p *fakePresenter) UpdateProgress(inserted, target int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, [2]int64{inserted, target})
}

func (p *fakePresenter) UpdateStatus(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, line)
}

func (p *fakePresenter) lastStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.statuses) == 0 {
		return ""
	}
	return p.statuses[len(p.statuses)-1]
}

type countingPublisher struct {
	mu     sync.Mutex
	points int
}

func (c *countingPublisher) PublishBatch(_ context.Context, points []models.PricePoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points += len(points)
	return nil
}

func (c *countingPublisher) Close() error { return nil }

func mkPoints(asset string, n int, end time.Time) []models.PricePoint {
	out := make([]models.PricePoint, n)
	for i := range out {
		out[i] = models.PricePoint{
			AssetID:   asset,
			Timestamp: end.Add(-time.Duration(n-i) * time.Hour),
			Price:     decimal.NewFromInt(int64(100 + i)),
		}
	}
	return out
}
