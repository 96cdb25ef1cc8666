package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/repository"
	"CoinPull/internal/service/dashboard"
	"CoinPull/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeSeeds struct {
	mu      sync.Mutex
	busy    bool
	started []models.SeedRequest
	summary *models.SeedSummary
}

func (f *fakeSeeds) Start(_ context.Context, req models.SeedRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return models.ErrBusy
	}
	f.busy = true
	f.started = append(f.started, req)
	return nil
}

func (f *fakeSeeds) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.busy
	f.busy = false
	return was
}

func (f *fakeSeeds) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *fakeSeeds) LastSummary(context.Context) (*models.SeedSummary, error) {
	return f.summary, nil
}

type fakeLive struct {
	mu      sync.Mutex
	running bool
	ctxErr  error
	last    models.TickResult
}

func (f *fakeLive) Start(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return false
	}
	f.running = true
	f.ctxErr = ctx.Err()
	return true
}

func (f *fakeLive) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.running
	f.running = false
	return was
}

func (f *fakeLive) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeLive) LastTick() models.TickResult { return f.last }

type testEnv struct {
	e     *echo.Echo
	store *repository.MemoryStore
	seeds *fakeSeeds
	live  *fakeLive
	dash  *dashboard.Dashboard
}

func newEnv(t *testing.T, initialized bool) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore(func() time.Time { return now })
	if initialized {
		if err := store.Initialize(context.Background()); err != nil {
			t.Fatalf("initialize: %v", err)
		}
	}
	env := &testEnv{
		e:     echo.New(),
		store: store,
		seeds: &fakeSeeds{},
		live:  &fakeLive{},
		dash:  dashboard.New(nil, nil),
	}
	h := NewPricesEchoHandler(nil, store, usecase.NewMovers(), env.seeds, env.live, env.dash, HandlerConfig{
		Assets:     []string{"bitcoin", "ethereum"},
		Quote:      "usd",
		TargetRows: 1000,
		ClearFirst: true,
		Window:     24 * time.Hour,
	})
	h.RegisterRoutes(env.e)
	return env
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (env *testEnv) do(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var out envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
	}
	return rec.Code, out
}

func (env *testEnv) insert(t *testing.T, points ...models.PricePoint) {
	t.Helper()
	if err := env.store.InsertBatch(context.Background(), points); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func price(asset string, ago time.Duration, p int64) models.PricePoint {
	return models.PricePoint{AssetID: asset, Timestamp: now.Add(-ago), Price: decimal.NewFromInt(p)}
}

func TestSeedAppliesDefaultsAndRejectsWhenBusy(t *testing.T) {
	env := newEnv(t, true)

	code, res := env.do(t, http.MethodPost, "/api/seed", `{"target_rows":0}`)
	if code != http.StatusAccepted || res.Status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %s", code, res.Data)
	}
	got := env.seeds.started[0]
	if strings.Join(got.AssetIDs, ",") != "bitcoin,ethereum" || got.QuoteCurrency != "usd" {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.TargetRows != 0 || !got.ClearFirst {
		t.Fatalf("explicit zero target must be kept: %+v", got)
	}

	code, _ = env.do(t, http.MethodPost, "/api/seed", `{"assets":["solana"]}`)
	if code != http.StatusConflict {
		t.Fatalf("expected 409 while a seed runs, got %d", code)
	}

	code, res = env.do(t, http.MethodPost, "/api/seed/cancel", "")
	if code != http.StatusOK || string(res.Data) != `{"cancelled":true}` {
		t.Fatalf("cancel: %d %s", code, res.Data)
	}
}

func TestSeedValidatesQuote(t *testing.T) {
	env := newEnv(t, true)
	code, _ := env.do(t, http.MethodPost, "/api/seed", `{"quote":"USD1"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if len(env.seeds.started) != 0 {
		t.Fatal("invalid request must not start a seed")
	}
}

func TestLiveStartDetachesFromRequest(t *testing.T) {
	env := newEnv(t, true)

	code, res := env.do(t, http.MethodPost, "/api/live/start", "")
	if code != http.StatusOK || string(res.Data) != `{"running":true,"started":true}` {
		t.Fatalf("start: %d %s", code, res.Data)
	}
	if env.live.ctxErr != nil {
		t.Fatal("poller context must not be tied to the request")
	}

	_, res = env.do(t, http.MethodPost, "/api/live/start", "")
	if string(res.Data) != `{"running":true,"started":false}` {
		t.Fatalf("second start should be a no-op: %s", res.Data)
	}

	_, res = env.do(t, http.MethodPost, "/api/live/stop", "")
	if string(res.Data) != `{"running":false,"stopped":true}` {
		t.Fatalf("stop: %s", res.Data)
	}
}

func TestMoversUsesWindow(t *testing.T) {
	env := newEnv(t, true)
	env.insert(t,
		price("bitcoin", 20*time.Hour, 100), price("bitcoin", 0, 110),
		price("ethereum", 3*time.Hour, 100), price("ethereum", 0, 50),
		price("solana", 0, 1),
	)

	code, res := env.do(t, http.MethodGet, "/api/movers?limit=1", "")
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, res.Data)
	}
	var rows []models.MoverRow
	if err := json.Unmarshal(res.Data, &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0].AssetID != "ethereum" || !rows[0].ChangePct.Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("unexpected movers %+v", rows)
	}

	code, _ = env.do(t, http.MethodGet, "/api/movers?window=2h", "")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	code, _ = env.do(t, http.MethodGet, "/api/movers?window=forever", "")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad window, got %d", code)
	}
}

func TestSeriesAndPrices(t *testing.T) {
	env := newEnv(t, true)
	env.insert(t, price("bitcoin", 2*time.Minute, 1), price("bitcoin", time.Minute, 2), price("ethereum", 0, 3))

	code, res := env.do(t, http.MethodGet, "/api/series/bitcoin?limit=1", "")
	if code != http.StatusOK {
		t.Fatalf("series: %d", code)
	}
	var series models.AssetSeries
	_ = json.Unmarshal(res.Data, &series)
	if series.AssetID != "bitcoin" || len(series.Points) != 1 || !series.Points[0].Price.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected series %+v", series)
	}

	code, _ = env.do(t, http.MethodGet, "/api/series/dogecoin", "")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown asset, got %d", code)
	}

	code, res = env.do(t, http.MethodGet, "/api/prices?size=2&page=0", "")
	if code != http.StatusOK {
		t.Fatalf("prices: %d", code)
	}
	var page struct {
		Rows  []models.PricePoint `json:"rows"`
		Total int64               `json:"total"`
	}
	_ = json.Unmarshal(res.Data, &page)
	if page.Total != 3 || len(page.Rows) != 2 || page.Rows[0].AssetID != "ethereum" {
		t.Fatalf("unexpected page %+v", page)
	}

	code, _ = env.do(t, http.MethodGet, "/api/prices?size=9000", "")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an oversized page, got %d", code)
	}

	code, _ = env.do(t, http.MethodGet, "/api/prices?page=92233720368547759", "")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an out-of-range page index, got %d", code)
	}
}

func TestStoreNotReady(t *testing.T) {
	env := newEnv(t, false)

	code, _ := env.do(t, http.MethodGet, "/healthz", "")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("healthz: %d", code)
	}
	code, _ = env.do(t, http.MethodGet, "/api/prices", "")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("prices before initialize: %d", code)
	}
}

func TestStatusReportsAllParts(t *testing.T) {
	env := newEnv(t, true)
	env.dash.UpdateStatus("live: updated 1/1 assets")
	env.seeds.summary = &models.SeedSummary{Inserted: 42, Status: "seed: inserted 42 rows"}
	env.live.last = models.TickResult{
		Started:  now,
		Polled:   []string{"bitcoin"},
		Failures: []models.AssetFailure{{AssetID: "bitcoin", Err: &models.FetchError{AssetID: "bitcoin", Status: 503}}},
		Degraded: true,
	}

	code, res := env.do(t, http.MethodGet, "/api/status", "")
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	var st statusResponse
	if err := json.Unmarshal(res.Data, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Dashboard.Status != "live: updated 1/1 assets" || st.Seed.Last == nil || st.Seed.Last.Inserted != 42 {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Live.LastTick == nil || len(st.Live.LastTick.Failures) != 1 || !strings.HasPrefix(st.Live.LastTick.Failures[0], "bitcoin: fetch error") {
		t.Fatalf("unexpected live state %+v", st.Live)
	}
}
