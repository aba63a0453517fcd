package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRow is one symbol's data for one trading session
// ⭐ SSOT: Quote Source → 파이프라인 시세 전달
type QuoteRow struct {
	Symbol      string          `json:"symbol"`
	SessionDate time.Time       `json:"session_date"` // 거래일 (UTC 자정)
	Close       decimal.Decimal `json:"close"`        // > 0
	Volume      int64           `json:"volume"`       // >= 0
}

// QuoteWindow holds the trailing session pair of a symbol
type QuoteWindow struct {
	Previous QuoteRow `json:"previous"`
	Latest   QuoteRow `json:"latest"`
}

// NewQuoteWindow builds a window from rows ordered oldest to newest.
// ok is false when fewer than two sessions are available or the last
// two sessions are not strictly ordered.
func NewQuoteWindow(rows []QuoteRow) (QuoteWindow, bool) {
	if len(rows) < 2 {
		return QuoteWindow{}, false
	}

	w := QuoteWindow{
		Previous: rows[len(rows)-2],
		Latest:   rows[len(rows)-1],
	}
	if !w.Previous.SessionDate.Before(w.Latest.SessionDate) {
		return QuoteWindow{}, false
	}
	return w, true
}

// QuoteSet is the result of one Quote Source round trip.
// Series rows are ordered oldest to newest.
type QuoteSet struct {
	Series   map[string][]QuoteRow `json:"series"`
	Failures map[string]error      `json:"-"`
}

// NewQuoteSet creates an empty quote set
func NewQuoteSet() *QuoteSet {
	return &QuoteSet{
		Series:   make(map[string][]QuoteRow),
		Failures: make(map[string]error),
	}
}

// Rows returns the rows of a symbol
func (q *QuoteSet) Rows(symbol string) ([]QuoteRow, bool) {
	if q == nil {
		return nil, false
	}
	rows, ok := q.Series[symbol]
	if !ok || len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

// Failure returns why a symbol could not be resolved, if recorded
func (q *QuoteSet) Failure(symbol string) error {
	if q == nil {
		return nil
	}
	return q.Failures[symbol]
}

// Empty reports whether no symbol has any row
func (q *QuoteSet) Empty() bool {
	if q == nil {
		return true
	}
	for _, rows := range q.Series {
		if len(rows) > 0 {
			return false
		}
	}
	return true
}
