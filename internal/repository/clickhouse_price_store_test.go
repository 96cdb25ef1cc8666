package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"CoinPull/internal/domain/models"
	pkgch "CoinPull/pkg/clickhouse"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

var baseTS = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*ClickHouseStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := NewClickHouseStore(pkgch.FromDB(db, "default"), "price_points", nil)
	s.now = func() time.Time { return baseTS }
	return s, mock
}

func initMockStore(t *testing.T) (*ClickHouseStore, sqlmock.Sqlmock) {
	t.Helper()
	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS price_points").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return s, mock
}

func TestClickHouseStoreRequiresInitialize(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	if _, err := s.Count(ctx); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("count: expected ErrNotInitialized, got %v", err)
	}
	if err := s.InsertBatch(ctx, []models.PricePoint{{AssetID: "bitcoin"}}); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("insert: expected ErrNotInitialized, got %v", err)
	}
	if _, err := s.Snapshot(ctx, time.Hour); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("snapshot: expected ErrNotInitialized, got %v", err)
	}
	if err := s.Clear(ctx); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("clear: expected ErrNotInitialized, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClickHouseStoreInitializeIsIdempotent(t *testing.T) {
	s, mock := initMockStore(t)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("schema created more than once: %v", err)
	}
}

func TestClickHouseStoreInitializeRetriesAfterFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("boom"))
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Initialize(context.Background()); err == nil {
		t.Fatal("expected first initialize to fail")
	}
	if _, err := s.Count(context.Background()); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("store should stay uninitialized, got %v", err)
	}
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
}

func TestClickHouseStoreInsertBatchChunks(t *testing.T) {
	s, mock := initMockStore(t)

	points := make([]models.PricePoint, insertChunkSize+1)
	for i := range points {
		points[i] = models.PricePoint{AssetID: "bitcoin", Timestamp: baseTS.Add(time.Duration(i) * time.Minute), Price: decimal.NewFromInt(int64(i))}
	}
	mock.ExpectExec("INSERT INTO price_points \\(asset_id, ts, price\\) VALUES").WillReturnResult(sqlmock.NewResult(0, insertChunkSize))
	mock.ExpectExec("INSERT INTO price_points \\(asset_id, ts, price\\) VALUES \\(\\?, fromUnixTimestamp64Milli\\(toInt64\\(\\?\\), 'UTC'\\), \\?\\)$").
		WithArgs("bitcoin", points[insertChunkSize].Timestamp.UnixMilli(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.InsertBatch(context.Background(), points); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClickHouseStoreKeepsMilliseconds(t *testing.T) {
	s, mock := initMockStore(t)
	ts := time.UnixMilli(1711843512345).UTC()
	mock.ExpectExec("INSERT INTO price_points").
		WithArgs("bitcoin", int64(1711843512345), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO price_points").
		WithArgs("bitcoin", int64(1711843512346), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.InsertBatch(context.Background(), []models.PricePoint{{AssetID: "bitcoin", Timestamp: ts, Price: decimal.RequireFromString("70123.45")}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.AppendOne(context.Background(), "bitcoin", ts.Add(time.Millisecond), decimal.RequireFromString("70123.46")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClickHouseStorePageBeyondRange(t *testing.T) {
	s, mock := initMockStore(t)

	points, err := s.Page(context.Background(), 100, 92233720368547759)
	if err != nil || len(points) != 0 {
		t.Fatalf("expected empty page, got %v err=%v", points, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query should run: %v", err)
	}
}

func TestClickHouseStoreInsertError(t *testing.T) {
	s, mock := initMockStore(t)
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("too many parts"))

	err := s.InsertBatch(context.Background(), []models.PricePoint{{AssetID: "bitcoin", Timestamp: baseTS, Price: decimal.NewFromInt(1)}})
	if err == nil {
		t.Fatal("expected insert error")
	}
}

func TestClickHouseStoreCountAndClear(t *testing.T) {
	s, mock := initMockStore(t)
	mock.ExpectQuery("SELECT count\\(\\) FROM price_points").
		WillReturnRows(sqlmock.NewRows([]string{"count()"}).AddRow(int64(42)))
	mock.ExpectExec("TRUNCATE TABLE IF EXISTS price_points").WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := s.Count(context.Background())
	if err != nil || n != 42 {
		t.Fatalf("count=%d err=%v", n, err)
	}
	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClickHouseStorePageClampsIndex(t *testing.T) {
	s, mock := initMockStore(t)
	mock.ExpectQuery("ORDER BY ts DESC, asset_id ASC").
		WithArgs(int64(10), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"asset_id", "ts", "price"}).
			AddRow("ethereum", baseTS, "3000.5").
			AddRow("bitcoin", baseTS.Add(-time.Minute), "65000"))

	points, err := s.Page(context.Background(), 10, -3)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(points) != 2 || points[0].AssetID != "ethereum" || points[0].Price.String() != "3000.5" {
		t.Fatalf("unexpected page %+v", points)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClickHouseStoreSnapshotGroupsByAsset(t *testing.T) {
	s, mock := initMockStore(t)
	mock.ExpectQuery("WHERE ts >= fromUnixTimestamp64Milli\\(toInt64\\(\\?\\), 'UTC'\\)").
		WithArgs(baseTS.Add(-24 * time.Hour).UnixMilli()).
		WillReturnRows(sqlmock.NewRows([]string{"asset_id", "ts", "price"}).
			AddRow("bitcoin", baseTS.Add(-2*time.Hour), "100").
			AddRow("bitcoin", baseTS.Add(-time.Hour), "110").
			AddRow("ethereum", baseTS.Add(-time.Hour), "10"))

	snap, err := s.Snapshot(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.TakenAt.Equal(baseTS) || snap.Window != 24*time.Hour {
		t.Fatalf("unexpected snapshot header %+v", snap)
	}
	if len(snap.Series) != 2 || snap.Series[0].AssetID != "bitcoin" || len(snap.Series[0].Points) != 2 || len(snap.Series[1].Points) != 1 {
		t.Fatalf("unexpected series %+v", snap.Series)
	}
}

func TestClickHouseStoreLatestSeriesOldestFirst(t *testing.T) {
	s, mock := initMockStore(t)
	mock.ExpectQuery("WHERE asset_id = \\?").
		WithArgs("bitcoin", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"asset_id", "ts", "price"}).
			AddRow("bitcoin", baseTS, "3").
			AddRow("bitcoin", baseTS.Add(-time.Minute), "2").
			AddRow("bitcoin", baseTS.Add(-2*time.Minute), "1"))

	points, err := s.LatestSeries(context.Background(), "bitcoin", 3)
	if err != nil {
		t.Fatalf("latest series: %v", err)
	}
	if len(points) != 3 || points[0].Price.String() != "1" || points[2].Price.String() != "3" {
		t.Fatalf("expected oldest first, got %+v", points)
	}
}
