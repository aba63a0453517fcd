package contracts

import "time"

// SectorLeaders pairs a top sector with its leading stocks
type SectorLeaders struct {
	Sector  SectorMetric `json:"sector"`
	Leaders StockRanking `json:"leaders"`
}

// Dashboard is one complete money-flow run
// ⭐ SSOT: 파이프라인 → Presentation 전달
type Dashboard struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Available   bool            `json:"available"` // false = 데이터 없음
	Table       SectorTable     `json:"table"`
	TopSectors  []SectorLeaders `json:"top_sectors"`
	Watchlist   []string        `json:"watchlist"` // 리더 종목 (중복 제거, 등장 순)
}

// TopLabels returns the labels of the selected sectors in order
func (d *Dashboard) TopLabels() []string {
	if d == nil {
		return nil
	}
	labels := make([]string, 0, len(d.TopSectors))
	for _, s := range d.TopSectors {
		labels = append(labels, s.Sector.Label)
	}
	return labels
}
