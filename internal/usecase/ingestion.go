package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	applogger "CoinPull/pkg/logger"
	"CoinPull/pkg/metrics"
)

// IngestionConfig controls the seeding window and fan-out width.
type IngestionConfig struct {
	HistoryDays int
	// Concurrency caps parallel range fetches. Zero starts one fetch per asset at once.
	Concurrency int
}

// Ingestion seeds the store with price history for many assets.
type Ingestion struct {
	fetcher   drepo.PriceFetcher
	store     drepo.PriceStore
	publisher drepo.Publisher
	metrics   drepo.Metrics
	l         *applogger.Logger
	cfg       IngestionConfig
	now       func() time.Time
}

// NewIngestion creates the seeding coordinator. publisher and m may be nil.
func NewIngestion(fetcher drepo.PriceFetcher, store drepo.PriceStore, publisher drepo.Publisher, m drepo.Metrics, l *applogger.Logger, cfg IngestionConfig) *Ingestion {
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 365
	}
	return &Ingestion{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		metrics:   m,
		l:         l.Component("ingestion"),
		cfg:       cfg,
		now:       time.Now,
	}
}

type assetFetch struct {
	assetID string
	points  []models.PricePoint
	err     error
}

// SeedMany fetches every asset's history in parallel, then inserts the batches one at a
// time in request order, calling progress with the running total after each insert.
//
// Insertion stops once TargetRows is reached, so the total can overshoot by at most one
// batch. All fetches finish before the first insert, so more points may be fetched than
// end up stored. A TargetRows of zero or less only clears (when asked) and returns.
//
// Per-asset fetch errors are collected in SeedResult.Failures and never stop the run.
// Cancellation returns models.ErrCancelled along with the partial result; batches already
// inserted stay in the store.
func (s *Ingestion) SeedMany(ctx context.Context, req models.SeedRequest, progress func(total int64)) (models.SeedResult, error) {
	var res models.SeedResult
	start := time.Now()
	defer func() { s.metrics.RecordLatency("seed", time.Since(start).Seconds()) }()

	if req.ClearFirst {
		if err := s.store.Clear(ctx); err != nil {
			return res, s.storeErr(ctx, "clear store", err)
		}
		s.l.Info("store cleared before seeding")
	}
	if req.TargetRows <= 0 {
		s.l.Info("target rows is zero, nothing to seed")
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, models.Cancelled(err)
	}

	to := s.now().UTC()
	from := to.AddDate(0, 0, -s.cfg.HistoryDays)
	s.l.Info("seeding started",
		applogger.Strings("assets", req.AssetIDs),
		applogger.String("quote", req.QuoteCurrency),
		applogger.Int64("target_rows", req.TargetRows),
		applogger.Time("from", from),
		applogger.Time("to", to))

	fetched := s.fetchAll(ctx, req.AssetIDs, req.QuoteCurrency, from, to)
	if err := ctx.Err(); err != nil {
		return res, models.Cancelled(err)
	}

	for _, f := range fetched {
		if f.err != nil {
			res.Failures = append(res.Failures, models.AssetFailure{AssetID: f.assetID, Err: f.err})
			s.metrics.RecordError(errorKind(f.err))
			s.l.Warn("asset fetch failed", applogger.String("asset", f.assetID), applogger.Error(f.err))
			continue
		}
		res.Fetched += int64(len(f.points))
	}

	for _, f := range fetched {
		if f.err != nil || len(f.points) == 0 {
			continue
		}
		if res.Inserted >= req.TargetRows {
			s.l.Info("target reached, skipping remaining assets",
				applogger.Int64("inserted", res.Inserted),
				applogger.Int64("fetched", res.Fetched))
			break
		}
		if err := ctx.Err(); err != nil {
			return res, models.Cancelled(err)
		}

		if err := s.store.InsertBatch(ctx, f.points); err != nil {
			return res, s.storeErr(ctx, "insert "+f.assetID, err)
		}
		res.Inserted += int64(len(f.points))
		s.metrics.RecordPointsInserted("seed", len(f.points))
		s.publish(ctx, f.points)
		s.l.Debug("asset persisted",
			applogger.String("asset", f.assetID),
			applogger.Int("points", len(f.points)),
			applogger.Int64("total", res.Inserted))

		if progress != nil {
			progress(res.Inserted)
		}
	}

	s.l.Info("seeding finished",
		applogger.Int64("inserted", res.Inserted),
		applogger.Int64("fetched", res.Fetched),
		applogger.Int("failures", len(res.Failures)),
		applogger.Duration("duration_ms", time.Since(start)))
	return res, nil
}

// fetchAll runs one FetchRange per asset and returns the outcomes in request order.
// A failing asset does not cancel its siblings.
func (s *Ingestion) fetchAll(ctx context.Context, assets []string, quote string, from, to time.Time) []assetFetch {
	out := make([]assetFetch, len(assets))

	var sem chan struct{}
	if s.cfg.Concurrency > 0 {
		sem = make(chan struct{}, s.cfg.Concurrency)
	}

	var wg sync.WaitGroup
	for i, asset := range assets {
		wg.Add(1)
		go func(i int, asset string) {
			defer wg.Done()
			out[i].assetID = asset

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					out[i].err = models.Cancelled(ctx.Err())
					return
				}
			}

			began := time.Now()
			out[i].points, out[i].err = s.fetcher.FetchRange(ctx, asset, quote, from, to)
			s.metrics.RecordLatency("fetch_range", time.Since(began).Seconds())
		}(i, asset)
	}
	wg.Wait()
	return out
}

func (s *Ingestion) publish(ctx context.Context, points []models.PricePoint) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishBatch(ctx, points); err != nil {
		s.metrics.RecordError("publish")
		s.l.Warn("mirror publish failed", applogger.Int("points", len(points)), applogger.Error(err))
	}
}

func (s *Ingestion) storeErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.Cancelled(ctxErr)
	}
	s.metrics.RecordError("store")
	s.l.Error("store write failed", applogger.String("op", op), applogger.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}
