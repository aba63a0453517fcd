package flow

import (
	"sort"

	"github.com/wonny/moneyflow/internal/contracts"
)

// DefaultTopSectors is the number of sectors selected for a dashboard
const DefaultTopSectors = 3

// SelectTopSectors returns the k sectors with the largest percent change,
// descending. Ties keep table order. The input is not modified.
func SelectTopSectors(metrics []contracts.SectorMetric, k int) []contracts.SectorMetric {
	if k <= 0 {
		return []contracts.SectorMetric{}
	}

	sorted := make([]contracts.SectorMetric, len(metrics))
	copy(sorted, metrics)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PercentChange.GreaterThan(sorted[j].PercentChange)
	})

	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// SortByMoneyFlow returns a copy ordered by money flow, largest first.
// Ties keep table order.
func SortByMoneyFlow(metrics []contracts.SectorMetric) []contracts.SectorMetric {
	sorted := make([]contracts.SectorMetric, len(metrics))
	copy(sorted, metrics)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MoneyFlow.GreaterThan(sorted[j].MoneyFlow)
	})
	return sorted
}
