package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockMetric is one constituent's traded value for the latest session
// ⭐ SSOT: Intra-Sector Stock Ranker 출력
type StockMetric struct {
	Symbol      string          `json:"symbol"`
	SessionDate time.Time       `json:"session_date"`
	Price       decimal.Decimal `json:"price"`
	Volume      int64           `json:"volume"`
	Turnover    decimal.Decimal `json:"turnover"` // price × volume
	Rank        int             `json:"rank"`     // 1-based
}

// SymbolFailure explains why a symbol was left out of a ranking
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// StockResolution is the per-symbol outcome of resolving a quote:
// either a metric or a failure reason.
type StockResolution struct {
	Symbol string
	Metric StockMetric
	Err    error
}

// OK reports whether the symbol resolved
func (r StockResolution) OK() bool {
	return r.Err == nil
}

// StockRanking is the output of ranking one sector's constituents
type StockRanking struct {
	Sector      string          `json:"sector"`
	SessionDate time.Time       `json:"session_date"`
	Stocks      []StockMetric   `json:"stocks"`
	Failures    []SymbolFailure `json:"failures"`
}

// Symbols returns the ranked symbols in order
func (r *StockRanking) Symbols() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Stocks))
	for _, s := range r.Stocks {
		out = append(out, s.Symbol)
	}
	return out
}
