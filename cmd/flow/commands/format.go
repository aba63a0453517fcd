package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/internal/flow"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const dateLayout = "2006-01-02"

var (
	sectorColumns = []string{"#", "Sector", "Change", "Money Flow", "Session"}
	sectorWidths  = []int{3, 34, 9, 12, 10}

	stockColumns = []string{"Rank", "Symbol", "Price", "Turnover"}
	stockWidths  = []int{4, 8, 12, 12}
)

// printHeader prints a formatted section header
func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	printDoubleSeparator(w)
	fmt.Fprintf(w, "  %s\n", title)
	printSeparator(w)
}

// printSeparator prints a visual separator
func printSeparator(w io.Writer) {
	fmt.Fprintln(w, "───────────────────────────────────────────────────────────")
}

// printDoubleSeparator prints a double-line separator
func printDoubleSeparator(w io.Writer) {
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
}

// printWarning prints a warning message
func printWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  %s\n", message)
}

// printTableHeader prints a table header
func printTableHeader(w io.Writer, columns []string, widths []int) {
	printTableRow(w, columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", totalWidth))
}

// printTableRow prints a table row
func printTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		if i < len(values)-1 {
			fmt.Fprintf(w, "%-*s  ", widths[i], val)
		} else {
			fmt.Fprint(w, val)
		}
	}
	fmt.Fprintln(w)
}

// printKeyValue prints key-value pairs
func printKeyValue(w io.Writer, key string, value string, keyWidth int) {
	fmt.Fprintf(w, "   %-*s : %s\n", keyWidth, key, value)
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSectors prints sector metrics in the given order
func printSectors(w io.Writer, sectors []contracts.SectorMetric) {
	printTableHeader(w, sectorColumns, sectorWidths)
	for i, s := range sectors {
		printTableRow(w, []string{
			strconv.Itoa(i + 1),
			s.Label,
			flow.FormatPercent(s.PercentChange),
			flow.FormatMoney(s.MoneyFlow),
			s.SessionDate.Format(dateLayout),
		}, sectorWidths)
	}
}

// printTable prints the sector table followed by its gaps
func printTable(w io.Writer, table *contracts.SectorTable) {
	if table.Empty() {
		printWarning(w, "No sector data available")
	} else {
		printSectors(w, table.Sectors)
	}
	printGaps(w, table.Gaps)
}

func printGaps(w io.Writer, gaps []contracts.SectorGap) {
	if len(gaps) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, g := range gaps {
		printWarning(w, fmt.Sprintf("%s skipped: %s", g.Label, g.Reason))
	}
}

// printRanking prints the leading stocks of one sector
func printRanking(w io.Writer, r *contracts.StockRanking) {
	if len(r.Stocks) == 0 {
		printWarning(w, fmt.Sprintf("No stock data available for %s", r.Sector))
	} else {
		printTableHeader(w, stockColumns, stockWidths)
		for _, s := range r.Stocks {
			printTableRow(w, []string{
				strconv.Itoa(s.Rank),
				s.Symbol,
				"$" + s.Price.StringFixed(2),
				flow.FormatMoney(s.Turnover),
			}, stockWidths)
		}
	}

	for _, f := range r.Failures {
		printWarning(w, fmt.Sprintf("%s skipped: %s", f.Symbol, f.Reason))
	}
}

// printDashboard prints a full dashboard run
func printDashboard(w io.Writer, d *contracts.Dashboard) {
	printHeader(w, "Sector Money Flow")
	printKeyValue(w, "Generated", d.GeneratedAt.Format("2006-01-02 15:04:05"), 9)
	if !d.Available {
		printKeyValue(w, "Session", "-", 9)
		printSeparator(w)
		printWarning(w, "No sector data available")
		printGaps(w, d.Table.Gaps)
		return
	}
	printKeyValue(w, "Session", d.Table.SessionDate.Format(dateLayout), 9)
	printSeparator(w)
	printTable(w, &d.Table)

	for i, s := range d.TopSectors {
		printHeader(w, fmt.Sprintf("#%d %s  %s  %s", i+1, s.Sector.Label,
			flow.FormatPercent(s.Sector.PercentChange), flow.FormatMoney(s.Sector.MoneyFlow)))
		printRanking(w, &s.Leaders)
	}

	fmt.Fprintln(w)
	printDoubleSeparator(w)
	printKeyValue(w, "Watchlist", flow.ExportList(d), 9)
}

// printSnapshots prints stored snapshot summaries
func printSnapshots(w io.Writer, snapshots []flow.Snapshot) {
	if len(snapshots) == 0 {
		printWarning(w, "No snapshots stored")
		return
	}

	columns := []string{"ID", "Generated", "Session", "Top Sectors", "Watchlist"}
	widths := []int{6, 19, 10, 40, 9}
	printTableHeader(w, columns, widths)
	for _, s := range snapshots {
		session := "-"
		if s.SessionDate != nil {
			session = s.SessionDate.Format(dateLayout)
		}
		printTableRow(w, []string{
			strconv.FormatInt(s.ID, 10),
			s.GeneratedAt.Format("2006-01-02 15:04:05"),
			session,
			strings.Join(s.TopSectors, ", "),
			strconv.Itoa(len(s.Watchlist)),
		}, widths)
	}
}
