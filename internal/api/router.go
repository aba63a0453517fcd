package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/moneyflow/internal/api/handlers"
	"github.com/wonny/moneyflow/pkg/logger"
	"github.com/wonny/moneyflow/pkg/metrics"
)

// NewRouter creates and configures the HTTP router.
// hub and m may be nil (no stream, no /metrics).
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(flowHandler *handlers.FlowHandler, hub *Hub, m *metrics.Metrics, log *logger.Logger) http.Handler {
	r := mux.NewRouter()
	// 섹터 라벨에 "/"가 포함될 수 있음 ("IGV (Software / SaaS)")
	r.UseEncodedPath()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Flow endpoints
	// 서브라우터는 메서드 불일치 시 404를 반환하므로 루트에 전체 경로로 등록
	r.HandleFunc("/api/flow/sectors", flowHandler.GetSectors).Methods("GET")
	r.HandleFunc("/api/flow/sectors/{label}/stocks", flowHandler.GetSectorStocks).Methods("GET")
	r.HandleFunc("/api/flow/top", flowHandler.GetTopSectors).Methods("GET")
	r.HandleFunc("/api/flow/dashboard", flowHandler.GetDashboard).Methods("GET")
	r.HandleFunc("/api/flow/history", flowHandler.GetHistory).Methods("GET")

	// Stream
	if hub != nil {
		r.Handle("/ws/dashboard", hub).Methods("GET")
	}

	// Metrics
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	if m != nil {
		r.Use(metricsMiddleware(m))
	}
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "moneyflow-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]interface{}{
						"success": false,
						"error":   "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records status and latency per route template
func metricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.ObserveHTTP(route, rec.status, time.Since(start))
		})
	}
}

// statusRecorder captures the response status.
// Hijack은 WebSocket 업그레이드용으로 그대로 전달
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
