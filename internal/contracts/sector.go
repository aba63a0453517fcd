package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// SectorMetric is one sector's day-over-day change and money flow
// ⭐ SSOT: Sector Table Builder 출력
type SectorMetric struct {
	Label         string          `json:"label"`
	Ticker        string          `json:"ticker"` // 대표 ETF
	SessionDate   time.Time       `json:"session_date"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Close         decimal.Decimal `json:"close"`
	Volume        int64           `json:"volume"`
	PercentChange decimal.Decimal `json:"percent_change"` // 음수 가능
	MoneyFlow     decimal.Decimal `json:"money_flow"`     // close × volume
}

// Gap reasons
const (
	GapMissing      = "missing"
	GapInsufficient = "insufficient sessions"
	GapStaleSession = "stale session"
	GapInvalidQuote = "invalid quote"
)

// SectorGap records a sector omitted from a table
type SectorGap struct {
	Label  string `json:"label"`
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// SectorTable is the output of one table build.
// Sectors keeps the definition order; omitted sectors are listed in Gaps.
type SectorTable struct {
	SessionDate time.Time      `json:"session_date"`
	Sectors     []SectorMetric `json:"sectors"`
	Gaps        []SectorGap    `json:"gaps"`
}

// Empty reports whether the table has no rows ("data unavailable")
func (t *SectorTable) Empty() bool {
	return t == nil || len(t.Sectors) == 0
}

// Find returns the metric for a label
func (t *SectorTable) Find(label string) (SectorMetric, bool) {
	if t == nil {
		return SectorMetric{}, false
	}
	for _, m := range t.Sectors {
		if m.Label == label {
			return m, true
		}
	}
	return SectorMetric{}, false
}
