package repository

import (
	"context"
	"time"

	"CoinPull/internal/domain/models"

	"github.com/shopspring/decimal"
)

// PriceFetcher reads price history and spot prices from the remote source.
type PriceFetcher interface {
	FetchRange(ctx context.Context, assetID, quote string, from, to time.Time) ([]models.PricePoint, error)
	// FetchSpot returns ok=false when the response carries no price for the asset/currency pair.
	FetchSpot(ctx context.Context, assetID, quote string) (price decimal.Decimal, ok bool, err error)
}

// PriceStore persists price points. Every method fails with models.ErrNotInitialized before Initialize.
type PriceStore interface {
	Initialize(ctx context.Context) error
	Clear(ctx context.Context) error
	InsertBatch(ctx context.Context, points []models.PricePoint) error
	AppendOne(ctx context.Context, assetID string, ts time.Time, price decimal.Decimal) error
	Count(ctx context.Context) (int64, error)
	Page(ctx context.Context, pageSize, pageIndex int) ([]models.PricePoint, error)
	Snapshot(ctx context.Context, window time.Duration) (models.Snapshot, error)
	LatestSeries(ctx context.Context, assetID string, limit int) ([]models.PricePoint, error)
	Health(ctx context.Context) error
	Close() error
}

// Publisher mirrors committed points to downstream consumers.
type Publisher interface {
	PublishBatch(ctx context.Context, points []models.PricePoint) error
	Close() error
}

// Locker guards single-flight operations across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// KeyValue keeps small JSON-encodable records such as the last seed summary.
type KeyValue interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

// Presenter receives derived values for display. It only accepts updated values.
type Presenter interface {
	UpdateSeries(assetID string, points []models.PricePoint)
	UpdateMovers(rows []models.MoverRow)
	UpdateProgress(inserted, target int64)
	UpdateStatus(line string)
}

type Metrics interface {
	RecordPointsInserted(source string, n int)
	RecordError(kind string)
	RecordLastPrice(assetID string, price float64)
	RecordLatency(op string, seconds float64)
	RecordTick(degraded bool)
}
