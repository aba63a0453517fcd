package flow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/moneyflow/internal/contracts"
)

// fakeSource serves canned rows and records requested symbols
type fakeSource struct {
	series   map[string][]contracts.QuoteRow
	failures map[string]error
	err      error
	calls    [][]string
	sessions []int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		series:   make(map[string][]contracts.QuoteRow),
		failures: make(map[string]error),
	}
}

func (f *fakeSource) FetchQuotes(_ context.Context, symbols []string, sessions int) (*contracts.QuoteSet, error) {
	f.calls = append(f.calls, append([]string(nil), symbols...))
	f.sessions = append(f.sessions, sessions)
	if f.err != nil {
		return nil, f.err
	}

	q := contracts.NewQuoteSet()
	for _, sym := range symbols {
		if err, ok := f.failures[sym]; ok {
			q.Failures[sym] = err
			continue
		}
		rows, ok := f.series[sym]
		if !ok {
			continue
		}
		if len(rows) > sessions {
			rows = rows[len(rows)-sessions:]
		}
		q.Series[sym] = rows
	}
	return q, nil
}

// pair adds a previous/latest session pair ending at session day latest
func (f *fakeSource) pair(symbol string, latest int, prevClose, close string, volume int64) {
	f.series[symbol] = []contracts.QuoteRow{
		quote(symbol, latest-1, prevClose, volume),
		quote(symbol, latest, close, volume),
	}
}

func (f *fakeSource) single(symbol string, d int, close string, volume int64) {
	f.series[symbol] = []contracts.QuoteRow{quote(symbol, d, close, volume)}
}

func session(d int) time.Time {
	return time.Date(2026, time.October, d, 0, 0, 0, 0, time.UTC)
}

func quote(symbol string, d int, close string, volume int64) contracts.QuoteRow {
	return contracts.QuoteRow{
		Symbol:      symbol,
		SessionDate: session(d),
		Close:       decimal.RequireFromString(close),
		Volume:      volume,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustDefinition(sectors ...Sector) *Definition {
	d, err := NewDefinition(sectors)
	if err != nil {
		panic(err)
	}
	return d
}
