package flow

import (
	"context"
	"strings"
	"time"

	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/pkg/logger"
	"github.com/wonny/moneyflow/pkg/metrics"
)

// Service runs the money-flow pipeline against one definition
// ⭐ SSOT: 섹터 테이블 → Top-K → 리더 종목 흐름
type Service struct {
	def     *Definition
	builder *Builder
	ranker  *Ranker
	topK    int
	now     func() time.Time
	metrics *metrics.Metrics // nil = 기록 안 함
	logger  *logger.Logger
}

// NewService creates a pipeline service. topK < 1 falls back to DefaultTopSectors.
func NewService(def *Definition, source contracts.QuoteSource, topK int, log *logger.Logger) *Service {
	if topK < 1 {
		topK = DefaultTopSectors
	}
	return &Service{
		def:     def,
		builder: NewBuilder(source, log),
		ranker:  NewRanker(source, log),
		topK:    topK,
		now:     time.Now,
		logger:  log.WithField("module", "flow.service"),
	}
}

// WithMetrics records every dashboard run
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Definition returns the sector definition the service runs against
func (s *Service) Definition() *Definition {
	return s.def
}

// TopK returns the default number of selected sectors
func (s *Service) TopK() int {
	return s.topK
}

// SectorTable builds the sector table
func (s *Service) SectorTable(ctx context.Context) *contracts.SectorTable {
	return s.builder.Build(ctx, s.def)
}

// TopSectors builds the table and selects the k best sectors.
// k < 1 uses the service default.
func (s *Service) TopSectors(ctx context.Context, k int) []contracts.SectorMetric {
	if k < 1 {
		k = s.topK
	}
	table := s.SectorTable(ctx)
	return SelectTopSectors(table.Sectors, k)
}

// SectorStocks ranks the leaders of one sector
func (s *Service) SectorStocks(ctx context.Context, label string) *contracts.StockRanking {
	return s.ranker.RankSectorStocks(ctx, s.def, label)
}

// Dashboard runs the full flow: table, top-k sectors, their leaders and
// the export watchlist. k < 1 uses the service default.
func (s *Service) Dashboard(ctx context.Context, k int) *contracts.Dashboard {
	if k < 1 {
		k = s.topK
	}

	table := s.SectorTable(ctx)
	d := &contracts.Dashboard{
		GeneratedAt: s.now().UTC(),
		Available:   !table.Empty(),
		Table:       *table,
		TopSectors:  make([]contracts.SectorLeaders, 0, k),
		Watchlist:   make([]string, 0),
	}

	if !d.Available {
		s.logger.Warn("Sector data unavailable")
		s.observe(d)
		return d
	}

	for _, metric := range SelectTopSectors(table.Sectors, k) {
		leaders := s.ranker.RankSectorStocks(ctx, s.def, metric.Label)
		d.TopSectors = append(d.TopSectors, contracts.SectorLeaders{
			Sector:  metric,
			Leaders: *leaders,
		})
	}
	d.Watchlist = CollectWatchlist(d.TopSectors)
	s.observe(d)

	s.logger.WithFields(map[string]interface{}{
		"top":       strings.Join(d.TopLabels(), " | "),
		"watchlist": len(d.Watchlist),
	}).Info("Dashboard ready")

	return d
}

func (s *Service) observe(d *contracts.Dashboard) {
	if s.metrics == nil {
		return
	}
	reasons := make([]string, 0, len(d.Table.Gaps))
	for _, g := range d.Table.Gaps {
		reasons = append(reasons, g.Reason)
	}
	failures := 0
	for _, top := range d.TopSectors {
		failures += len(top.Leaders.Failures)
	}
	s.metrics.ObserveDashboard(d.Available, reasons, failures)
}

// CollectWatchlist returns every leader symbol, first-seen order, no duplicates
func CollectWatchlist(top []contracts.SectorLeaders) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, s := range top {
		for _, stock := range s.Leaders.Stocks {
			if seen[stock.Symbol] {
				continue
			}
			seen[stock.Symbol] = true
			out = append(out, stock.Symbol)
		}
	}
	return out
}

// ExportList is the comma-joined watchlist for pasting into other tools
func ExportList(d *contracts.Dashboard) string {
	if d == nil {
		return ""
	}
	return strings.Join(d.Watchlist, ",")
}
