package contracts

import "context"

// QuoteSource supplies daily OHLCV rows for a set of symbols
// ⭐ SSOT: 시세 수집 인터페이스
//
// FetchQuotes returns up to sessions rows per symbol, oldest to newest.
// Symbols that could not be resolved are recorded in QuoteSet.Failures.
// A non-nil error means nothing could be fetched; callers treat it as an
// empty set.
type QuoteSource interface {
	FetchQuotes(ctx context.Context, symbols []string, sessions int) (*QuoteSet, error)
}

// SnapshotStore persists dashboards outside the pipeline
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, d *Dashboard) (int64, error)
}

// DashboardPublisher receives every dashboard produced by a scheduled run
type DashboardPublisher interface {
	Publish(d *Dashboard)
}
