package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	dsvc "CoinPull/internal/domain/service"
	applogger "CoinPull/pkg/logger"
	"CoinPull/pkg/metrics"
)

// LiveConfig controls polling cadence and the derived views refreshed after each tick.
type LiveConfig struct {
	Assets        []string
	QuoteCurrency string
	Interval      time.Duration
	AssetsPerTick int
	SeriesLimit   int
	Window        time.Duration
	TopLimit      int
}

// LivePoller appends spot prices for a rotating subset of assets on a fixed interval.
type LivePoller struct {
	fetcher   drepo.PriceFetcher
	store     drepo.PriceStore
	analyzer  dsvc.MoverAnalyzer
	presenter drepo.Presenter
	publisher drepo.Publisher
	metrics   drepo.Metrics
	l         *applogger.Logger
	cfg       LiveConfig
	now       func() time.Time

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	cursor int
	last   models.TickResult
}

// NewLivePoller creates an idle poller. presenter, publisher and m may be nil.
func NewLivePoller(fetcher drepo.PriceFetcher, store drepo.PriceStore, analyzer dsvc.MoverAnalyzer, presenter drepo.Presenter, publisher drepo.Publisher, m drepo.Metrics, l *applogger.Logger, cfg LiveConfig) *LivePoller {
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.AssetsPerTick <= 0 {
		cfg.AssetsPerTick = 10
	}
	if cfg.SeriesLimit <= 0 {
		cfg.SeriesLimit = 500
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	return &LivePoller{
		fetcher:   fetcher,
		store:     store,
		analyzer:  analyzer,
		presenter: presenter,
		publisher: publisher,
		metrics:   m,
		l:         l.Component("live_poller"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start begins polling until Stop or until ctx is done. The first tick runs immediately.
// It returns false when the poller is already running.
//
// Stop is observed between assets and between ticks, so a fetch or append in flight
// always completes. Only cancelling ctx aborts in-flight requests.
func (p *LivePoller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return false
	}

	stop, done := make(chan struct{}), make(chan struct{})
	p.stop, p.done = stop, done

	go p.loop(ctx, stop, done)
	p.l.Info("live polling started",
		applogger.Duration("interval", p.cfg.Interval),
		applogger.Int("assets_per_tick", p.cfg.AssetsPerTick))
	return true
}

// Stop signals the loop and waits for it to exit. It returns false when the poller was idle.
func (p *LivePoller) Stop() bool {
	p.mu.Lock()
	stop, done := p.stop, p.done
	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	p.mu.Unlock()
	if stop == nil {
		return false
	}
	<-done
	return true
}

// Running reports whether the loop is active.
func (p *LivePoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// LastTick returns the outcome of the most recent completed tick.
func (p *LivePoller) LastTick() models.TickResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *LivePoller) loop(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.stop, p.done = nil, nil
		p.mu.Unlock()
		p.l.Info("live polling stopped")
		p.updateStatus("live: stopped")
		close(done)
	}()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil || stopped(stop) {
			return
		}
		p.tick(ctx, stop)

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// Tick polls one subset of assets, then refreshes the series and movers views.
// Per-asset failures are recorded and never stop the tick; cancellation is checked
// between assets.
func (p *LivePoller) Tick(ctx context.Context) models.TickResult {
	return p.tick(ctx, nil)
}

func (p *LivePoller) tick(ctx context.Context, stop <-chan struct{}) models.TickResult {
	res := models.TickResult{Started: p.now().UTC()}
	subset := p.nextSubset()

	for _, asset := range subset {
		if ctx.Err() != nil || stopped(stop) {
			return res
		}
		res.Polled = append(res.Polled, asset)

		updated, err := p.pollOne(ctx, asset)
		if err != nil {
			if models.IsCancelled(err) || ctx.Err() != nil {
				return res
			}
			res.Failures = append(res.Failures, models.AssetFailure{AssetID: asset, Err: err})
			p.metrics.RecordError(errorKind(err))
			p.l.Warn("spot poll failed", applogger.String("asset", asset), applogger.Error(err))
			continue
		}
		if updated {
			res.Updated++
		}
	}
	res.Degraded = res.Updated == 0

	p.refresh(ctx, res.Polled)
	p.metrics.RecordTick(res.Degraded)
	p.updateStatus(tickStatus(res))

	p.mu.Lock()
	p.last = res
	p.mu.Unlock()
	return res
}

// pollOne fetches and stores one spot price. A missing or non-positive price is not an
// error, just no update for this tick.
func (p *LivePoller) pollOne(ctx context.Context, asset string) (bool, error) {
	began := time.Now()
	price, ok, err := p.fetcher.FetchSpot(ctx, asset, p.cfg.QuoteCurrency)
	p.metrics.RecordLatency("fetch_spot", time.Since(began).Seconds())
	if err != nil {
		return false, err
	}
	if !ok || !price.IsPositive() {
		p.l.Debug("no spot price this tick", applogger.String("asset", asset))
		return false, nil
	}

	ts := p.now().UTC()
	if err := p.store.AppendOne(ctx, asset, ts, price); err != nil {
		return false, fmt.Errorf("append %s: %w", asset, err)
	}
	p.metrics.RecordPointsInserted("live", 1)
	p.metrics.RecordLastPrice(asset, price.InexactFloat64())

	if p.publisher != nil {
		pt := models.PricePoint{AssetID: asset, Timestamp: ts, Price: price}
		if err := p.publisher.PublishBatch(ctx, []models.PricePoint{pt}); err != nil {
			p.metrics.RecordError("publish")
			p.l.Warn("mirror publish failed", applogger.String("asset", asset), applogger.Error(err))
		}
	}
	return true, nil
}

func (p *LivePoller) nextSubset() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.cfg.Assets)
	if n == 0 {
		return nil
	}
	size := p.cfg.AssetsPerTick
	if size > n {
		size = n
	}
	out := make([]string, size)
	for i := range out {
		out[i] = p.cfg.Assets[(p.cursor+i)%n]
	}
	p.cursor = (p.cursor + size) % n
	return out
}

func (p *LivePoller) refresh(ctx context.Context, polled []string) {
	if p.presenter == nil {
		return
	}
	for _, asset := range polled {
		series, err := p.store.LatestSeries(ctx, asset, p.cfg.SeriesLimit)
		if err != nil {
			p.l.Warn("series refresh failed", applogger.String("asset", asset), applogger.Error(err))
			continue
		}
		p.presenter.UpdateSeries(asset, series)
	}

	snap, err := p.store.Snapshot(ctx, p.cfg.Window)
	if err != nil {
		p.l.Warn("snapshot failed", applogger.Error(err))
		return
	}
	p.presenter.UpdateMovers(p.analyzer.TopMovers(snap, p.cfg.Window, p.cfg.TopLimit))
}

func (p *LivePoller) updateStatus(line string) {
	if p.presenter != nil {
		p.presenter.UpdateStatus(line)
	}
}

func tickStatus(res models.TickResult) string {
	if !res.Degraded {
		return fmt.Sprintf("live: updated %d/%d assets", res.Updated, len(res.Polled))
	}
	var reasons []string
	for _, f := range res.Failures {
		reasons = append(reasons, f.Status())
	}
	if len(reasons) == 0 {
		return fmt.Sprintf("live: degraded tick, no price for %d polled assets", len(res.Polled))
	}
	return "live: degraded tick, no asset updated (" + strings.Join(reasons, "; ") + ")"
}
