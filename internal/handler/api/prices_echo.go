package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	dsvc "CoinPull/internal/domain/service"
	"CoinPull/internal/service/dashboard"
	xhttp "CoinPull/pkg/http"
	xlogger "CoinPull/pkg/logger"
	xutil "CoinPull/pkg/util"

	"github.com/labstack/echo/v4"
)

type seedController interface {
	Start(ctx context.Context, req models.SeedRequest) error
	Cancel() bool
	Busy() bool
	LastSummary(ctx context.Context) (*models.SeedSummary, error)
}

type liveController interface {
	Start(ctx context.Context) bool
	Stop() bool
	Running() bool
	LastTick() models.TickResult
}

// HandlerConfig carries the configured defaults applied to requests that leave fields unset.
type HandlerConfig struct {
	Assets     []string
	Quote      string
	TargetRows int64
	ClearFirst bool
	Window     time.Duration
}

// PricesEchoHandler exposes the dashboard, the seed and live commands, and read access to the store.
type PricesEchoHandler struct {
	logger   *xlogger.Logger
	store    drepo.PriceStore
	analyzer dsvc.MoverAnalyzer
	seeds    seedController
	live     liveController
	dash     *dashboard.Dashboard
	cfg      HandlerConfig
}

func NewPricesEchoHandler(logger *xlogger.Logger, store drepo.PriceStore, analyzer dsvc.MoverAnalyzer, seeds seedController, live liveController, dash *dashboard.Dashboard, cfg HandlerConfig) *PricesEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	return &PricesEchoHandler{
		logger:   logger.Component("api"),
		store:    store,
		analyzer: analyzer,
		seeds:    seeds,
		live:     live,
		dash:     dash,
		cfg:      cfg,
	}
}

func (h *PricesEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.POST("/seed", h.Seed)
	g.POST("/seed/cancel", h.CancelSeed)
	g.POST("/live/start", h.StartLive)
	g.POST("/live/stop", h.StopLive)
	g.GET("/movers", h.Movers)
	g.GET("/series/:asset", h.Series)
	g.GET("/prices", h.Prices)
	g.GET("/ws", h.Stream)
}

type seedState struct {
	Busy bool                `json:"busy"`
	Last *models.SeedSummary `json:"last,omitempty"`
}

type tickView struct {
	Started  time.Time `json:"started"`
	Polled   []string  `json:"polled"`
	Updated  int       `json:"updated"`
	Failures []string  `json:"failures,omitempty"`
	Degraded bool      `json:"degraded"`
}

type liveState struct {
	Running  bool      `json:"running"`
	LastTick *tickView `json:"last_tick,omitempty"`
}

type statusResponse struct {
	Dashboard dashboard.View `json:"dashboard"`
	Seed      seedState      `json:"seed"`
	Live      liveState      `json:"live"`
}

func (h *PricesEchoHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		return xhttp.ServiceUnavailableResponse(c, map[string]string{"store": err.Error()})
	}
	return xhttp.SuccessResponse(c, map[string]string{"store": "ok"})
}

func (h *PricesEchoHandler) Status(c echo.Context) error {
	last, err := h.seeds.LastSummary(c.Request().Context())
	if err != nil {
		h.logger.Warn("seed summary unavailable", xlogger.Error(err))
	}

	res := statusResponse{
		Dashboard: h.dash.View(),
		Seed:      seedState{Busy: h.seeds.Busy(), Last: last},
		Live:      liveState{Running: h.live.Running()},
	}
	if tick := h.live.LastTick(); !tick.Started.IsZero() {
		res.Live.LastTick = newTickView(tick)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PricesEchoHandler) Seed(c echo.Context) error {
	req := &models.SeedHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	seed := models.SeedRequest{
		AssetIDs:      req.Assets,
		QuoteCurrency: req.Quote,
		TargetRows:    h.cfg.TargetRows,
		ClearFirst:    h.cfg.ClearFirst,
	}
	if len(seed.AssetIDs) == 0 {
		seed.AssetIDs = h.cfg.Assets
	}
	if seed.QuoteCurrency == "" {
		seed.QuoteCurrency = h.cfg.Quote
	}
	if req.TargetRows != nil {
		seed.TargetRows = *req.TargetRows
	}
	if req.ClearFirst != nil {
		seed.ClearFirst = *req.ClearFirst
	}

	if err := h.seeds.Start(c.Request().Context(), seed); err != nil {
		h.logger.Warn("seed not started", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.AcceptedResponse(c, map[string]interface{}{
		"assets":      seed.AssetIDs,
		"quote":       seed.QuoteCurrency,
		"target_rows": seed.TargetRows,
		"clear_first": seed.ClearFirst,
	})
}

func (h *PricesEchoHandler) CancelSeed(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]bool{"cancelled": h.seeds.Cancel()})
}

func (h *PricesEchoHandler) StartLive(c echo.Context) error {
	// the poller outlives this request
	started := h.live.Start(context.WithoutCancel(c.Request().Context()))
	return xhttp.SuccessResponse(c, map[string]bool{"started": started, "running": h.live.Running()})
}

func (h *PricesEchoHandler) StopLive(c echo.Context) error {
	stopped := h.live.Stop()
	return xhttp.SuccessResponse(c, map[string]bool{"stopped": stopped, "running": h.live.Running()})
}

func (h *PricesEchoHandler) Movers(c echo.Context) error {
	req := &models.MoversRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	window := h.cfg.Window
	if req.Window != "" {
		w, err := xutil.ParseWindow(req.Window)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		window = w
	}

	snap, err := h.store.Snapshot(c.Request().Context(), window)
	if err != nil {
		h.logger.Error("snapshot failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, h.analyzer.TopMovers(snap, window, req.Limit))
}

func (h *PricesEchoHandler) Series(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	points, err := h.store.LatestSeries(c.Request().Context(), req.Asset, req.Limit)
	if err != nil {
		h.logger.Error("series query failed", xlogger.String("asset", req.Asset), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	if len(points) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no prices stored for %s", req.Asset))
	}
	return xhttp.SuccessResponse(c, models.AssetSeries{AssetID: req.Asset, Points: points})
}

func (h *PricesEchoHandler) Prices(c echo.Context) error {
	req := &models.PageRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	total, err := h.store.Count(ctx)
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	rows, err := h.store.Page(ctx, req.Size, req.Page)
	if err != nil {
		h.logger.Error("page query failed", xlogger.Int("page", req.Page), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	if rows == nil {
		rows = []models.PricePoint{}
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.ListResponse(c, rows, total)
}

func (h *PricesEchoHandler) Stream(c echo.Context) error {
	hub := h.dash.Hub()
	if hub == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("live stream disabled"))
	}
	if err := hub.Serve(c.Response(), c.Request(), h.dash.StateMessage()); err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
	}
	return nil
}

func newTickView(t models.TickResult) *tickView {
	v := &tickView{Started: t.Started, Polled: t.Polled, Updated: t.Updated, Degraded: t.Degraded}
	for _, f := range t.Failures {
		v.Failures = append(v.Failures, f.Status())
	}
	return v
}

// appError maps domain errors onto HTTP statuses; anything else becomes a 500.
func appError(err error) error {
	var authErr *models.AuthError
	var fetchErr *models.FetchError
	switch {
	case errors.Is(err, models.ErrBusy):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNotInitialized):
		return xhttp.NewAppError("ERR_STORE_NOT_READY", "", err.Error(), http.StatusServiceUnavailable).WithError(err)
	case errors.As(err, &authErr), errors.As(err, &fetchErr):
		return xhttp.BadGatewayError(models.StatusLine("", err)).WithError(err)
	default:
		return err
	}
}
