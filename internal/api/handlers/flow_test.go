package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/internal/flow"
	"github.com/wonny/moneyflow/pkg/logger"
)

type stubSource struct {
	rows map[string][]contracts.QuoteRow
	err  error
}

func (s *stubSource) FetchQuotes(_ context.Context, symbols []string, sessions int) (*contracts.QuoteSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	q := contracts.NewQuoteSet()
	for _, sym := range symbols {
		if rows, ok := s.rows[sym]; ok {
			if len(rows) > sessions {
				rows = rows[len(rows)-sessions:]
			}
			q.Series[sym] = rows
		}
	}
	return q, nil
}

func pair(sym, prev, latest string, volume int64) []contracts.QuoteRow {
	d := time.Date(2026, time.October, 9, 0, 0, 0, 0, time.UTC)
	return []contracts.QuoteRow{
		{Symbol: sym, SessionDate: d.AddDate(0, 0, -1), Close: decimal.RequireFromString(prev), Volume: volume},
		{Symbol: sym, SessionDate: d, Close: decimal.RequireFromString(latest), Volume: volume},
	}
}

type stubHistory struct {
	snapshots []flow.Snapshot
	err       error
	limit     int
}

func (s *stubHistory) ListSnapshots(_ context.Context, limit int) ([]flow.Snapshot, error) {
	s.limit = limit
	return s.snapshots, s.err
}

func testDefinition(t *testing.T) *flow.Definition {
	t.Helper()
	def, err := flow.NewDefinition([]flow.Sector{
		{Label: "SMH (Semiconductors)", Constituents: []string{"NVDA", "AMD"}},
		{Label: "IGV (Software / SaaS)", Constituents: []string{"MSFT"}},
		{Label: "XLE (Energy)", Constituents: []string{"XOM"}},
	})
	require.NoError(t, err)
	return def
}

func newTestHandler(t *testing.T, history HistoryStore) *FlowHandler {
	t.Helper()
	src := &stubSource{rows: map[string][]contracts.QuoteRow{
		"SMH":  pair("SMH", "100", "102", 1_000_000),
		"IGV":  pair("IGV", "100", "104", 10),
		"XLE":  pair("XLE", "100", "99", 500),
		"NVDA": pair("NVDA", "1", "180", 200_000_000),
		"AMD":  pair("AMD", "1", "150", 50_000_000),
		"MSFT": pair("MSFT", "1", "500", 20_000_000),
	}}
	svc := flow.NewService(testDefinition(t), src, 2, logger.Nop())
	return NewFlowHandler(svc, history, logger.Nop())
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestGetSectors(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	h.GetSectors(rec, httptest.NewRequest(http.MethodGet, "/api/flow/sectors", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.True(t, env.Success)

	var view TableView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.True(t, view.Available)
	require.Len(t, view.Sectors, 3)
	assert.Equal(t, "SMH", view.Sectors[0].Ticker)
	assert.Equal(t, "+2.00%", view.Sectors[0].PercentLabel)
	assert.Equal(t, "$102.00M", view.Sectors[0].MoneyFlowLabel)
	assert.True(t, view.Sectors[0].MoneyFlow.Equal(decimal.NewFromInt(102_000_000)))
	assert.Empty(t, view.Gaps)
}

func TestGetSectorsSortByMoneyFlow(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	h.GetSectors(rec, httptest.NewRequest(http.MethodGet, "/api/flow/sectors?sort=money_flow", nil))

	var view TableView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))
	require.Len(t, view.Sectors, 3)
	assert.Equal(t, []string{"SMH", "XLE", "IGV"}, []string{
		view.Sectors[0].Ticker, view.Sectors[1].Ticker, view.Sectors[2].Ticker,
	})
}

func TestGetTopSectors(t *testing.T) {
	h := newTestHandler(t, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLen    int
	}{
		{"default k", "", http.StatusOK, 2},
		{"k=1", "?k=1", http.StatusOK, 1},
		{"k larger than table", "?k=10", http.StatusOK, 3},
		{"k=0", "?k=0", http.StatusBadRequest, 0},
		{"not a number", "?k=abc", http.StatusBadRequest, 0},
		{"too large", "?k=51", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.GetTopSectors(rec, httptest.NewRequest(http.MethodGet, "/api/flow/top"+tt.query, nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			env := decode(t, rec)
			if tt.wantStatus != http.StatusOK {
				assert.False(t, env.Success)
				assert.NotEmpty(t, env.Error)
				return
			}

			var data struct {
				K       int          `json:"k"`
				Sectors []SectorView `json:"sectors"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.Len(t, data.Sectors, tt.wantLen)
			assert.Equal(t, "IGV", data.Sectors[0].Ticker)
		})
	}
}

func TestGetSectorStocks(t *testing.T) {
	h := newTestHandler(t, nil)

	tests := []struct {
		name       string
		label      string
		wantStatus int
		wantSector string
	}{
		{"by label", "SMH%20%28Semiconductors%29", http.StatusOK, "SMH (Semiconductors)"},
		{"label with slash", "IGV%20%28Software%20%2F%20SaaS%29", http.StatusOK, "IGV (Software / SaaS)"},
		{"by ticker", "xle", http.StatusOK, "XLE (Energy)"},
		{"unknown", "Crypto", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/flow/sectors/x/stocks", nil)
			req = mux.SetURLVars(req, map[string]string{"label": tt.label})
			rec := httptest.NewRecorder()

			h.GetSectorStocks(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var view RankingView
			require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))
			assert.Equal(t, tt.wantSector, view.Sector)
		})
	}
}

func TestGetSectorStocksRanking(t *testing.T) {
	h := newTestHandler(t, nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"label": "SMH"})
	rec := httptest.NewRecorder()
	h.GetSectorStocks(rec, req)

	var view RankingView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))
	require.Len(t, view.Stocks, 2)
	assert.Equal(t, "NVDA", view.Stocks[0].Symbol)
	assert.Equal(t, "$36.00B", view.Stocks[0].TurnoverLabel)
	assert.Equal(t, "AMD", view.Stocks[1].Symbol)
	assert.Equal(t, 2, view.Stocks[1].Rank)
	assert.Empty(t, view.Failures)
}

func TestGetDashboard(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	h.GetDashboard(rec, httptest.NewRequest(http.MethodGet, "/api/flow/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var view DashboardView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))

	assert.True(t, view.Available)
	require.Len(t, view.TopSectors, 2)
	assert.Equal(t, "IGV (Software / SaaS)", view.TopSectors[0].Sector.Label)
	assert.Equal(t, "SMH (Semiconductors)", view.TopSectors[1].Sector.Label)
	assert.Equal(t, []string{"MSFT", "NVDA", "AMD"}, view.Watchlist)
	assert.Equal(t, "MSFT,NVDA,AMD", view.Export)

	rec = httptest.NewRecorder()
	h.GetDashboard(rec, httptest.NewRequest(http.MethodGet, "/api/flow/dashboard?k=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDashboardUnavailable(t *testing.T) {
	svc := flow.NewService(testDefinition(t), &stubSource{err: errors.New("down")}, 3, logger.Nop())
	h := NewFlowHandler(svc, nil, logger.Nop())

	rec := httptest.NewRecorder()
	h.GetDashboard(rec, httptest.NewRequest(http.MethodGet, "/api/flow/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var view DashboardView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))
	assert.False(t, view.Available)
	assert.Empty(t, view.TopSectors)
	assert.Len(t, view.Table.Gaps, 3)
}

func TestGetHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newTestHandler(t, nil)
		rec := httptest.NewRecorder()
		h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/flow/history", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.False(t, decode(t, rec).Success)
	})

	t.Run("lists snapshots", func(t *testing.T) {
		store := &stubHistory{snapshots: []flow.Snapshot{{ID: 7, TopSectors: []string{"SMH (Semiconductors)"}}}}
		h := newTestHandler(t, store)

		rec := httptest.NewRecorder()
		h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/flow/history?limit=5", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, store.limit)

		var data struct {
			Count     int             `json:"count"`
			Snapshots []flow.Snapshot `json:"snapshots"`
		}
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
		assert.Equal(t, 1, data.Count)
		assert.Equal(t, int64(7), data.Snapshots[0].ID)
	})

	t.Run("default limit", func(t *testing.T) {
		store := &stubHistory{}
		h := newTestHandler(t, store)
		rec := httptest.NewRecorder()
		h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/flow/history", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, flow.DefaultHistoryLimit, store.limit)
	})

	t.Run("bad limit", func(t *testing.T) {
		h := newTestHandler(t, &stubHistory{})
		rec := httptest.NewRecorder()
		h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/flow/history?limit=0", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store error", func(t *testing.T) {
		h := newTestHandler(t, &stubHistory{err: errors.New("db down")})
		rec := httptest.NewRecorder()
		h.GetHistory(rec, httptest.NewRequest(http.MethodGet, "/api/flow/history", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
