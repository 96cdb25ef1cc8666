package dashboard

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	applogger "CoinPull/pkg/logger"
)

// Update kinds pushed to subscribers.
const (
	KindSeries   = "series"
	KindMovers   = "movers"
	KindProgress = "progress"
	KindStatus   = "status"
	KindState    = "state"
)

// Progress is the seeding progress bar.
type Progress struct {
	Inserted int64 `json:"inserted"`
	Target   int64 `json:"target"`
}

// View is a point-in-time copy of the dashboard without the per-asset series.
type View struct {
	Status    string            `json:"status"`
	Progress  Progress          `json:"progress"`
	Movers    []models.MoverRow `json:"movers"`
	Assets    []string          `json:"assets"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Update is one message on the websocket stream.
type Update struct {
	Kind    string      `json:"kind"`
	AssetID string      `json:"asset_id,omitempty"`
	Data    interface{} `json:"data"`
}

// Dashboard holds the latest derived values and pushes every change to the hub.
type Dashboard struct {
	hub *Hub
	l   *applogger.Logger
	now func() time.Time

	mu        sync.RWMutex
	series    map[string][]models.PricePoint
	movers    []models.MoverRow
	progress  Progress
	status    string
	updatedAt time.Time
}

var _ drepo.Presenter = (*Dashboard)(nil)

// New creates an empty dashboard. hub may be nil when nothing streams updates.
func New(hub *Hub, l *applogger.Logger) *Dashboard {
	if l == nil {
		l = applogger.Nop()
	}
	return &Dashboard{
		hub:    hub,
		l:      l.Component("dashboard"),
		now:    time.Now,
		series: make(map[string][]models.PricePoint),
		status: "idle",
	}
}

func (d *Dashboard) UpdateSeries(assetID string, points []models.PricePoint) {
	cp := append([]models.PricePoint(nil), points...)
	d.mu.Lock()
	d.series[assetID] = cp
	d.touch()
	d.mu.Unlock()
	d.push(Update{Kind: KindSeries, AssetID: assetID, Data: cp})
}

func (d *Dashboard) UpdateMovers(rows []models.MoverRow) {
	cp := append([]models.MoverRow(nil), rows...)
	d.mu.Lock()
	d.movers = cp
	d.touch()
	d.mu.Unlock()
	d.push(Update{Kind: KindMovers, Data: cp})
}

func (d *Dashboard) UpdateProgress(inserted, target int64) {
	p := Progress{Inserted: inserted, Target: target}
	d.mu.Lock()
	d.progress = p
	d.touch()
	d.mu.Unlock()
	d.push(Update{Kind: KindProgress, Data: p})
}

func (d *Dashboard) UpdateStatus(line string) {
	d.mu.Lock()
	d.status = line
	d.touch()
	d.mu.Unlock()
	d.push(Update{Kind: KindStatus, Data: line})
}

// View returns a copy of the current state.
func (d *Dashboard) View() View {
	d.mu.RLock()
	defer d.mu.RUnlock()

	assets := make([]string, 0, len(d.series))
	for a := range d.series {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	return View{
		Status:    d.status,
		Progress:  d.progress,
		Movers:    append([]models.MoverRow(nil), d.movers...),
		Assets:    assets,
		UpdatedAt: d.updatedAt,
	}
}

// Series returns the last series pushed for assetID.
func (d *Dashboard) Series(assetID string) ([]models.PricePoint, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.series[assetID]
	if !ok {
		return nil, false
	}
	return append([]models.PricePoint(nil), s...), true
}

// StateMessage encodes the full view as the first message for a new subscriber.
func (d *Dashboard) StateMessage() []byte {
	b, err := json.Marshal(Update{Kind: KindState, Data: d.View()})
	if err != nil {
		d.l.Warn("encode dashboard state", applogger.Error(err))
		return nil
	}
	return b
}

// Hub returns the websocket hub, or nil.
func (d *Dashboard) Hub() *Hub { return d.hub }

// touch must be called with mu held.
func (d *Dashboard) touch() {
	d.updatedAt = d.now().UTC()
}

func (d *Dashboard) push(u Update) {
	if d.hub == nil {
		return
	}
	b, err := json.Marshal(u)
	if err != nil {
		d.l.Warn("encode dashboard update", applogger.String("kind", u.Kind), applogger.Error(err))
		return
	}
	d.hub.Broadcast(b)
}
