package flow

import (
	"context"
	"time"

	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/pkg/logger"
)

// sectorSessions is the trailing session pair used for day-over-day change
const sectorSessions = 2

// Builder computes the sector table from representative tickers
// ⭐ SSOT: 섹터 등락률/자금흐름 계산은 여기서만
type Builder struct {
	source contracts.QuoteSource
	logger *logger.Logger
}

// NewBuilder creates a new sector table builder
func NewBuilder(source contracts.QuoteSource, log *logger.Logger) *Builder {
	return &Builder{
		source: source,
		logger: log.WithField("module", "flow.builder"),
	}
}

// Build fetches the representative tickers and builds the table.
// Upstream failure yields an empty table, never an error.
func (b *Builder) Build(ctx context.Context, def *Definition) *contracts.SectorTable {
	tickers := def.Tickers()

	quotes, err := b.source.FetchQuotes(ctx, tickers, sectorSessions)
	if err != nil {
		b.logger.WithError(err).WithField("tickers", len(tickers)).Warn("Sector quotes unavailable")
	}

	table := BuildFromQuotes(def, quotes)

	for _, gap := range table.Gaps {
		b.logger.WithFields(map[string]interface{}{
			"sector": gap.Label,
			"ticker": gap.Ticker,
			"reason": gap.Reason,
		}).Warn("Sector omitted")
	}

	b.logger.WithFields(map[string]interface{}{
		"sectors": len(table.Sectors),
		"gaps":    len(table.Gaps),
		"session": sessionString(table.SessionDate),
	}).Info("Sector table built")

	return table
}

// BuildFromQuotes is the pure transformation behind Build.
// All rows share the most recent session among tickers with a usable
// window; a sector whose ticker lags behind it is reported as a gap
// instead of mixing sessions.
func BuildFromQuotes(def *Definition, quotes *contracts.QuoteSet) *contracts.SectorTable {
	table := &contracts.SectorTable{
		Sectors: make([]contracts.SectorMetric, 0, def.Len()),
		Gaps:    make([]contracts.SectorGap, 0),
	}

	reference, _ := sectorReference(def, quotes)

	for _, s := range def.sectors {
		metric, reason := sectorMetric(s, quotes, reference)
		if reason != "" {
			table.Gaps = append(table.Gaps, contracts.SectorGap{
				Label:  s.Label,
				Ticker: s.Ticker,
				Reason: reason,
			})
			continue
		}
		table.Sectors = append(table.Sectors, metric)
	}

	if len(table.Sectors) > 0 {
		table.SessionDate = reference
	}
	return table
}

// sectorReference returns the most recent session among tickers whose
// window passes sectorWindow. Tickers that end up gapped never set it.
func sectorReference(def *Definition, quotes *contracts.QuoteSet) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, s := range def.sectors {
		window, reason := sectorWindow(s, quotes)
		if reason != "" {
			continue
		}
		if d := window.Latest.SessionDate; !found || d.After(latest) {
			latest = d
			found = true
		}
	}
	return latest, found
}

// sectorWindow returns the trailing session pair of a sector ticker, or the
// gap reason when the rows cannot produce a metric.
func sectorWindow(s Sector, quotes *contracts.QuoteSet) (contracts.QuoteWindow, string) {
	rows, ok := quotes.Rows(s.Ticker)
	if !ok {
		return contracts.QuoteWindow{}, contracts.GapMissing
	}

	window, ok := contracts.NewQuoteWindow(rows)
	if !ok {
		return contracts.QuoteWindow{}, contracts.GapInsufficient
	}
	if !window.Previous.Close.IsPositive() || !window.Latest.Close.IsPositive() || window.Latest.Volume < 0 {
		return contracts.QuoteWindow{}, contracts.GapInvalidQuote
	}
	return window, ""
}

func sectorMetric(s Sector, quotes *contracts.QuoteSet, reference time.Time) (contracts.SectorMetric, string) {
	window, reason := sectorWindow(s, quotes)
	if reason != "" {
		return contracts.SectorMetric{}, reason
	}
	if !window.Latest.SessionDate.Equal(reference) {
		return contracts.SectorMetric{}, contracts.GapStaleSession
	}

	return contracts.SectorMetric{
		Label:         s.Label,
		Ticker:        s.Ticker,
		SessionDate:   window.Latest.SessionDate,
		PreviousClose: window.Previous.Close,
		Close:         window.Latest.Close,
		Volume:        window.Latest.Volume,
		PercentChange: PercentChange(window.Previous.Close, window.Latest.Close),
		MoneyFlow:     TradedValue(window.Latest.Close, window.Latest.Volume),
	}, ""
}

func sessionString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
