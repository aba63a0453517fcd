package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/internal/flow"
	"github.com/wonny/moneyflow/pkg/logger"
)

// maxTopSectors caps ?k= so a request cannot fan out unbounded fetches
const maxTopSectors = 50

// HistoryStore lists stored dashboard snapshots
type HistoryStore interface {
	ListSnapshots(ctx context.Context, limit int) ([]flow.Snapshot, error)
}

// FlowHandler handles money-flow API endpoints
// ⭐ SSOT: 자금흐름 API 핸들러는 이 구조체에서만
type FlowHandler struct {
	service *flow.Service
	history HistoryStore
	logger  *logger.Logger
}

// NewFlowHandler creates a new flow handler. history may be nil.
func NewFlowHandler(service *flow.Service, history HistoryStore, log *logger.Logger) *FlowHandler {
	return &FlowHandler{
		service: service,
		history: history,
		logger:  log.WithField("module", "api.flow"),
	}
}

// SectorView is a SectorMetric with display labels
type SectorView struct {
	contracts.SectorMetric
	PercentLabel   string `json:"percent_label"`
	MoneyFlowLabel string `json:"money_flow_label"`
}

// StockView is a StockMetric with display labels
type StockView struct {
	contracts.StockMetric
	TurnoverLabel string `json:"turnover_label"`
}

// RankingView is a StockRanking with labelled stocks
type RankingView struct {
	Sector      string                    `json:"sector"`
	SessionDate time.Time                 `json:"session_date"`
	Stocks      []StockView               `json:"stocks"`
	Failures    []contracts.SymbolFailure `json:"failures"`
}

// TableView is the /sectors payload
type TableView struct {
	Available   bool                  `json:"available"`
	SessionDate time.Time             `json:"session_date"`
	Sectors     []SectorView          `json:"sectors"`
	Gaps        []contracts.SectorGap `json:"gaps"`
}

// LeadersView pairs a labelled sector with its labelled leaders
type LeadersView struct {
	Sector  SectorView  `json:"sector"`
	Leaders RankingView `json:"leaders"`
}

// DashboardView is the /dashboard payload
type DashboardView struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Available   bool          `json:"available"`
	Table       TableView     `json:"table"`
	TopSectors  []LeadersView `json:"top_sectors"`
	Watchlist   []string      `json:"watchlist"`
	Export      string        `json:"export"`
}

// GetSectors returns the sector table
// GET /api/flow/sectors?sort=money_flow
func (h *FlowHandler) GetSectors(w http.ResponseWriter, r *http.Request) {
	table := h.service.SectorTable(r.Context())

	view := NewTableView(table)
	if r.URL.Query().Get("sort") == "money_flow" {
		view.Sectors = sectorViews(flow.SortByMoneyFlow(table.Sectors))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    view,
	})
}

// GetTopSectors returns the top-k sectors by percent change
// GET /api/flow/top?k=3
func (h *FlowHandler) GetTopSectors(w http.ResponseWriter, r *http.Request) {
	k, err := h.parseK(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	top := h.service.TopSectors(r.Context(), k)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"k":       k,
			"sectors": sectorViews(top),
		},
	})
}

// GetSectorStocks returns the leading stocks of one sector
// GET /api/flow/sectors/{label}/stocks ({label} may also be the ETF ticker)
func (h *FlowHandler) GetSectorStocks(w http.ResponseWriter, r *http.Request) {
	label, err := url.PathUnescape(mux.Vars(r)["label"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sector label")
		return
	}

	sector, ok := h.service.Definition().Find(label)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown sector: "+label)
		return
	}

	ranking := h.service.SectorStocks(r.Context(), sector.Label)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    NewRankingView(ranking),
	})
}

// GetDashboard runs the full money-flow dashboard
// GET /api/flow/dashboard?k=3
func (h *FlowHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	k, err := h.parseK(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	d := h.service.Dashboard(r.Context(), k)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    NewDashboardView(d),
	})
}

// GetHistory lists stored snapshots
// GET /api/flow/history?limit=20
func (h *FlowHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "snapshot history is disabled (DATABASE_URL not set)")
		return
	}

	limit := flow.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	snapshots, err := h.history.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list snapshots")
		respondError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"count":     len(snapshots),
			"snapshots": snapshots,
		},
	})
}

var errInvalidK = errors.New("k must be an integer between 1 and 50")

func (h *FlowHandler) parseK(r *http.Request) (int, error) {
	v := r.URL.Query().Get("k")
	if v == "" {
		return h.service.TopK(), nil
	}
	k, err := strconv.Atoi(v)
	if err != nil || k < 1 || k > maxTopSectors {
		return 0, errInvalidK
	}
	return k, nil
}

// NewTableView labels a sector table
func NewTableView(t *contracts.SectorTable) TableView {
	return TableView{
		Available:   !t.Empty(),
		SessionDate: t.SessionDate,
		Sectors:     sectorViews(t.Sectors),
		Gaps:        t.Gaps,
	}
}

// NewRankingView labels a stock ranking
func NewRankingView(r *contracts.StockRanking) RankingView {
	stocks := make([]StockView, 0, len(r.Stocks))
	for _, s := range r.Stocks {
		stocks = append(stocks, StockView{StockMetric: s, TurnoverLabel: flow.FormatMoney(s.Turnover)})
	}
	return RankingView{
		Sector:      r.Sector,
		SessionDate: r.SessionDate,
		Stocks:      stocks,
		Failures:    r.Failures,
	}
}

// NewDashboardView labels a dashboard
func NewDashboardView(d *contracts.Dashboard) DashboardView {
	top := make([]LeadersView, 0, len(d.TopSectors))
	for _, s := range d.TopSectors {
		top = append(top, LeadersView{
			Sector:  sectorView(s.Sector),
			Leaders: NewRankingView(&s.Leaders),
		})
	}
	return DashboardView{
		GeneratedAt: d.GeneratedAt,
		Available:   d.Available,
		Table:       NewTableView(&d.Table),
		TopSectors:  top,
		Watchlist:   d.Watchlist,
		Export:      flow.ExportList(d),
	}
}

func sectorView(m contracts.SectorMetric) SectorView {
	return SectorView{
		SectorMetric:   m,
		PercentLabel:   flow.FormatPercent(m.PercentChange),
		MoneyFlowLabel: flow.FormatMoney(m.MoneyFlow),
	}
}

func sectorViews(metrics []contracts.SectorMetric) []SectorView {
	out := make([]SectorView, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, sectorView(m))
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
