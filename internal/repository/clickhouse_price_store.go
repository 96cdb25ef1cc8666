package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	pkgch "CoinPull/pkg/clickhouse"
	applogger "CoinPull/pkg/logger"

	"github.com/shopspring/decimal"
)

// insertChunkSize bounds the rows of one multi-VALUES insert.
const insertChunkSize = 2000

// msParam binds a timestamp as epoch milliseconds. The driver's client-side binder
// renders time.Time at second precision, which would drop the DateTime64(3) millis.
const msParam = "fromUnixTimestamp64Milli(toInt64(?), 'UTC')"

func unixMilli(t time.Time) int64 { return t.UTC().UnixMilli() }

// ClickHouseStore implements PriceStore backed by a MergeTree table.
type ClickHouseStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time

	gate initGate
	wmu  sync.Mutex
}

var _ domrepo.PriceStore = (*ClickHouseStore)(nil)

// NewClickHouseStore creates a store writing to table.
func NewClickHouseStore(ch *pkgch.Client, table string, l *applogger.Logger) *ClickHouseStore {
	if l == nil {
		l = applogger.Nop()
	}
	if table == "" {
		table = "price_points"
	}
	return &ClickHouseStore{
		ch:    ch,
		db:    ch.DB(),
		table: table,
		l:     l.Component("clickhouse_store"),
		now:   time.Now,
	}
}

func (s *ClickHouseStore) schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            asset_id LowCardinality(String),
            ts       DateTime64(3, 'UTC'),
            price    Decimal(38, 18)
        )
        ENGINE = MergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (asset_id, ts)
    `, s.table)}
}

// Initialize verifies connectivity and creates the table. Later calls are no-ops.
func (s *ClickHouseStore) Initialize(ctx context.Context) error {
	return s.gate.run(func() error {
		if err := s.ch.Ping(ctx); err != nil {
			return err
		}
		if err := s.ch.InitSchema(ctx, s.schema()); err != nil {
			s.l.Error("clickhouse init schema error", applogger.String("table", s.table), applogger.Error(err))
			return err
		}
		s.l.Info("clickhouse store ready", applogger.String("table", s.table))
		return nil
	})
}

func (s *ClickHouseStore) Clear(ctx context.Context) error {
	if err := s.gate.check(); err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", s.table)); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	s.l.Info("clickhouse store cleared", applogger.String("table", s.table))
	return nil
}

// InsertBatch appends points in multi-row chunks. No uniqueness is enforced.
func (s *ClickHouseStore) InsertBatch(ctx context.Context, points []models.PricePoint) error {
	if err := s.gate.check(); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	start := time.Now()
	for from := 0; from < len(points); from += insertChunkSize {
		to := from + insertChunkSize
		if to > len(points) {
			to = len(points)
		}
		if err := s.insert(ctx, points[from:to]); err != nil {
			s.l.Error("clickhouse insert error",
				applogger.String("table", s.table),
				applogger.Int("rows", to-from),
				applogger.Error(err))
			return fmt.Errorf("insert batch: %w", err)
		}
	}
	s.l.Debug("clickhouse insert ok",
		applogger.String("table", s.table),
		applogger.Int("rows", len(points)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

func (s *ClickHouseStore) insert(ctx context.Context, points []models.PricePoint) error {
	values := make([]string, 0, len(points))
	args := make([]interface{}, 0, len(points)*3)
	for _, p := range points {
		values = append(values, "(?, "+msParam+", ?)")
		args = append(args, p.AssetID, unixMilli(p.Timestamp), p.Price)
	}
	q := fmt.Sprintf("INSERT INTO %s (asset_id, ts, price) VALUES %s", s.table, strings.Join(values, ","))
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *ClickHouseStore) AppendOne(ctx context.Context, assetID string, ts time.Time, price decimal.Decimal) error {
	if err := s.gate.check(); err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := s.insert(ctx, []models.PricePoint{{AssetID: assetID, Timestamp: ts, Price: price}}); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) Count(ctx context.Context) (int64, error) {
	if err := s.gate.check(); err != nil {
		return 0, err
	}
	var n uint64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count() FROM %s", s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return int64(n), nil
}

// Page returns points newest first. A negative pageIndex is treated as zero.
func (s *ClickHouseStore) Page(ctx context.Context, pageSize, pageIndex int) ([]models.PricePoint, error) {
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
	const qtpl = `
        SELECT asset_id, ts, price
        FROM %s
        ORDER BY ts DESC, asset_id ASC
        LIMIT ? OFFSET ?
    `
	return s.query(ctx, "page", fmt.Sprintf(qtpl, s.table), pageSize, pageSize*pageIndex)
}

// Snapshot returns each asset's points inside the trailing window, oldest first.
func (s *ClickHouseStore) Snapshot(ctx context.Context, window time.Duration) (models.Snapshot, error) {
	if err := s.gate.check(); err != nil {
		return models.Snapshot{}, err
	}
	takenAt := s.now().UTC()
	const qtpl = `
        SELECT asset_id, ts, price
        FROM %s
        WHERE ts >= %s
        ORDER BY asset_id ASC, ts ASC
    `
	points, err := s.query(ctx, "snapshot", fmt.Sprintf(qtpl, s.table, msParam), unixMilli(takenAt.Add(-window)))
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{TakenAt: takenAt, Window: window, Series: groupSeries(points)}, nil
}

// LatestSeries returns the most recent limit points of one asset, oldest first.
func (s *ClickHouseStore) LatestSeries(ctx context.Context, assetID string, limit int) ([]models.PricePoint, error) {
	if err := s.gate.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	const qtpl = `
        SELECT asset_id, ts, price
        FROM %s
        WHERE asset_id = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	points, err := s.query(ctx, "latest_series", fmt.Sprintf(qtpl, s.table), assetID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

func (s *ClickHouseStore) query(ctx context.Context, op, q string, args ...interface{}) ([]models.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse query error", applogger.String("op", op), applogger.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, 256)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.AssetID, &p.Timestamp, &p.Price); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		p.Timestamp = p.Timestamp.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	if err := s.gate.check(); err != nil {
		return err
	}
	return s.ch.Health(ctx)
}

func (s *ClickHouseStore) Close() error {
	return s.ch.Close()
}
