package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/moneyflow/internal/api/handlers"
	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/internal/flow"
	"github.com/wonny/moneyflow/pkg/logger"
	"github.com/wonny/moneyflow/pkg/metrics"
)

type staticSource struct {
	rows map[string][]contracts.QuoteRow
}

func (s *staticSource) FetchQuotes(_ context.Context, symbols []string, sessions int) (*contracts.QuoteSet, error) {
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

func rows(sym string, prev, latest int64, volume int64) []contracts.QuoteRow {
	d := time.Date(2026, time.October, 9, 0, 0, 0, 0, time.UTC)
	return []contracts.QuoteRow{
		{Symbol: sym, SessionDate: d.AddDate(0, 0, -1), Close: decimal.NewFromInt(prev), Volume: volume},
		{Symbol: sym, SessionDate: d, Close: decimal.NewFromInt(latest), Volume: volume},
	}
}

func newTestService(t *testing.T) *flow.Service {
	t.Helper()
	def, err := flow.NewDefinition([]flow.Sector{
		{Label: "IGV (Software / SaaS)", Constituents: []string{"MSFT", "CRM"}},
		{Label: "XLE (Energy)", Constituents: []string{"XOM"}},
	})
	require.NoError(t, err)

	src := &staticSource{rows: map[string][]contracts.QuoteRow{
		"IGV":  rows("IGV", 100, 103, 10),
		"XLE":  rows("XLE", 100, 101, 10),
		"MSFT": rows("MSFT", 1, 500, 10),
		"CRM":  rows("CRM", 1, 300, 10),
		"XOM":  rows("XOM", 1, 100, 10),
	}}
	return flow.NewService(def, src, 1, logger.Nop())
}

func newTestRouter(t *testing.T, hub *Hub) http.Handler {
	t.Helper()
	h := handlers.NewFlowHandler(newTestService(t), nil, logger.Nop())
	return NewRouter(h, hub, metrics.New(metrics.DefaultConfig()), logger.Nop())
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/flow/sectors", http.StatusOK},
		{http.MethodGet, "/api/flow/top?k=1", http.StatusOK},
		{http.MethodGet, "/api/flow/top?k=zero", http.StatusBadRequest},
		{http.MethodGet, "/api/flow/sectors/IGV%20%28Software%20%2F%20SaaS%29/stocks", http.StatusOK},
		{http.MethodGet, "/api/flow/sectors/XLE/stocks", http.StatusOK},
		{http.MethodGet, "/api/flow/sectors/QQQ/stocks", http.StatusNotFound},
		{http.MethodGet, "/api/flow/dashboard", http.StatusOK},
		{http.MethodGet, "/api/flow/history", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/flow/sectors", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/flow/dashboard", http.StatusMethodNotAllowed},
		{http.MethodPut, "/api/flow/sectors/XLE/stocks", http.StatusMethodNotAllowed},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/flow/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := handlers.NewFlowHandler(newTestService(t), nil, logger.Nop())
	router := NewRouter(h, nil, metrics.New(metrics.DefaultConfig()), logger.Nop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flow/top?k=zero", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flow/sectors/XLE/stocks", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `moneyflow_http_requests_total{code="400",route="/api/flow/top"} 1`)
	assert.Contains(t, body, `moneyflow_http_requests_total{code="200",route="/api/flow/sectors/{label}/stocks"} 1`)
}

func TestNoMetricsRoute(t *testing.T) {
	h := handlers.NewFlowHandler(newTestService(t), nil, logger.Nop())
	router := NewRouter(h, nil, nil, logger.Nop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/dashboard"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubStreamsDashboards(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(newTestRouter(t, hub))
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	svc := newTestService(t)
	first := svc.Dashboard(context.Background(), 1)
	hub.Publish(first)

	// 접속 시 최신 대시보드 수신
	conn := dial(t, srv)
	msg := readMessage(t, conn)
	assert.Equal(t, "dashboard", msg.Type)
	require.NotNil(t, msg.Data)
	require.Len(t, msg.Data.TopSectors, 1)
	assert.Equal(t, "IGV (Software / SaaS)", msg.Data.TopSectors[0].Sector.Label)

	waitSubscribers(t, hub, 1)

	second := svc.Dashboard(context.Background(), 2)
	hub.Publish(second)

	msg = readMessage(t, conn)
	require.NotNil(t, msg.Data)
	assert.Len(t, msg.Data.TopSectors, 2)
	assert.Equal(t, []string{"MSFT", "CRM", "XOM"}, msg.Data.Watchlist)
}

func TestHubWithoutPublishedDashboard(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(newTestRouter(t, hub))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	waitSubscribers(t, hub, 1)

	conn.Close()
	waitSubscribers(t, hub, 0)
}

func TestHubClose(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(newTestRouter(t, hub))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	waitSubscribers(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.Subscribers())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// 종료 후 Publish는 무시
	hub.Publish(&contracts.Dashboard{})
}

func TestHubPublishNil(t *testing.T) {
	hub := NewHub(logger.Nop())
	hub.Publish(nil)
	assert.Equal(t, 0, hub.Subscribers())
}
