package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/pkg/logger"
)

// MaxSectorLeaders is the number of stocks returned per sector
const MaxSectorLeaders = 5

// stockSessions: 거래대금 순위는 최신 1개 세션만 사용
const stockSessions = 1

var (
	errNoQuote      = errors.New("no quote")
	errInvalidQuote = errors.New("invalid quote")
	errStaleSession = errors.New(contracts.GapStaleSession)
)

// Ranker ranks a sector's constituents by turnover
// ⭐ SSOT: 섹터 내 종목 순위 로직은 여기서만
type Ranker struct {
	source contracts.QuoteSource
	logger *logger.Logger
}

// NewRanker creates a new intra-sector stock ranker
func NewRanker(source contracts.QuoteSource, log *logger.Logger) *Ranker {
	return &Ranker{
		source: source,
		logger: log.WithField("module", "flow.ranker"),
	}
}

// RankSectorStocks returns the top stocks of a sector by turnover.
// Unresolved symbols are reported in Failures and never abort the ranking.
// An unknown label yields an empty ranking.
func (r *Ranker) RankSectorStocks(ctx context.Context, def *Definition, label string) *contracts.StockRanking {
	sector, ok := def.Lookup(label)
	if !ok {
		r.logger.WithField("sector", label).Warn("Unknown sector")
		return emptyRanking(label)
	}

	quotes, err := r.source.FetchQuotes(ctx, sector.Constituents, stockSessions)
	if err != nil {
		r.logger.WithError(err).WithField("sector", sector.Label).Warn("Constituent quotes unavailable")
		if quotes == nil {
			quotes = contracts.NewQuoteSet()
			for _, sym := range sector.Constituents {
				quotes.Failures[sym] = err
			}
		}
	}

	ranking := RankFromQuotes(sector, quotes)

	for _, f := range ranking.Failures {
		r.logger.WithFields(map[string]interface{}{
			"sector": sector.Label,
			"symbol": f.Symbol,
			"reason": f.Reason,
		}).Warn("Symbol skipped")
	}

	r.logger.WithFields(map[string]interface{}{
		"sector":   sector.Label,
		"ranked":   len(ranking.Stocks),
		"failures": len(ranking.Failures),
	}).Info("Sector stocks ranked")

	return ranking
}

// RankFromQuotes is the pure transformation behind RankSectorStocks
func RankFromQuotes(sector Sector, quotes *contracts.QuoteSet) *contracts.StockRanking {
	resolutions := ResolveStocks(sector.Constituents, quotes)
	return RankResolutions(sector.Label, resolutions, MaxSectorLeaders)
}

// ResolveStocks turns quotes into one resolution per symbol, in input order.
// Symbols behind the most recent session are failures so that one ranking
// never mixes sessions.
func ResolveStocks(symbols []string, quotes *contracts.QuoteSet) []contracts.StockResolution {
	reference, _ := stockReference(symbols, quotes)

	out := make([]contracts.StockResolution, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, resolveStock(sym, quotes, reference))
	}
	return out
}

// stockReference returns the most recent session among symbols whose latest
// row is valid, so a bad or partial quote cannot stale the whole sector.
func stockReference(symbols []string, quotes *contracts.QuoteSet) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, sym := range symbols {
		rows, ok := quotes.Rows(sym)
		if !ok {
			continue
		}
		row := rows[len(rows)-1]
		if !validStockRow(row) {
			continue
		}
		if !found || row.SessionDate.After(latest) {
			latest = row.SessionDate
			found = true
		}
	}
	return latest, found
}

func validStockRow(row contracts.QuoteRow) bool {
	return row.Close.IsPositive() && row.Volume >= 0
}

func resolveStock(symbol string, quotes *contracts.QuoteSet, reference time.Time) contracts.StockResolution {
	res := contracts.StockResolution{Symbol: symbol}

	rows, ok := quotes.Rows(symbol)
	if !ok {
		res.Err = errNoQuote
		if cause := quotes.Failure(symbol); cause != nil {
			res.Err = cause
		}
		return res
	}

	latest := rows[len(rows)-1]
	switch {
	case !validStockRow(latest):
		res.Err = errInvalidQuote
	case !latest.SessionDate.Equal(reference):
		res.Err = fmt.Errorf("%w: %s", errStaleSession, latest.SessionDate.Format("2006-01-02"))
	default:
		res.Metric = contracts.StockMetric{
			Symbol:      symbol,
			SessionDate: latest.SessionDate,
			Price:       latest.Close,
			Volume:      latest.Volume,
			Turnover:    TradedValue(latest.Close, latest.Volume),
		}
	}
	return res
}

// RankResolutions sorts resolved symbols by turnover (descending, ties keep
// input order) and keeps at most limit rows.
func RankResolutions(label string, resolutions []contracts.StockResolution, limit int) *contracts.StockRanking {
	ranking := emptyRanking(label)

	for _, res := range resolutions {
		if !res.OK() {
			ranking.Failures = append(ranking.Failures, contracts.SymbolFailure{
				Symbol: res.Symbol,
				Reason: res.Err.Error(),
			})
			continue
		}
		ranking.Stocks = append(ranking.Stocks, res.Metric)
	}

	sort.SliceStable(ranking.Stocks, func(i, j int) bool {
		return ranking.Stocks[i].Turnover.GreaterThan(ranking.Stocks[j].Turnover)
	})

	if limit >= 0 && len(ranking.Stocks) > limit {
		ranking.Stocks = ranking.Stocks[:limit]
	}

	// Assign ranks
	for i := range ranking.Stocks {
		ranking.Stocks[i].Rank = i + 1
	}
	if len(ranking.Stocks) > 0 {
		ranking.SessionDate = ranking.Stocks[0].SessionDate
	}

	return ranking
}

func emptyRanking(label string) *contracts.StockRanking {
	return &contracts.StockRanking{
		Sector:   label,
		Stocks:   make([]contracts.StockMetric, 0),
		Failures: make([]contracts.SymbolFailure, 0),
	}
}
