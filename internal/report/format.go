package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Row is one formatted line of an exported report.
type Row struct {
	Label   string  `json:"label"`
	Total   int     `json:"total_activities"`
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
	Late    int     `json:"late"`
	Excused int     `json:"excused"`
	Rate    float64 `json:"rate"`
}

// TotalsLabel names the synthetic trailing row of multi-scope reports.
const TotalsLabel = "TOTAL"

// Format turns aggregated stats into ordered rows. Multi-scope reports
// (unit and system-wide) get a trailing totals row whose rate is
// recomputed over the summed counts, not averaged from per-row rates.
func Format(kind ScopeKind, stats []AggregatedStat) []Row {
	rows := make([]Row, 0, len(stats)+1)
	var sum Row
	for _, s := range stats {
		rows = append(rows, Row{
			Label:   s.Label,
			Total:   s.Total,
			Present: s.Present,
			Absent:  s.Absent,
			Late:    s.Late,
			Excused: s.Excused,
			Rate:    s.Rate,
		})
		sum.Total += s.Total
		sum.Present += s.Present
		sum.Absent += s.Absent
		sum.Late += s.Late
		sum.Excused += s.Excused
	}
	if kind != ScopeSelf {
		sum.Label = TotalsLabel
		sum.Rate = Rate(sum.Present, sum.Late, sum.Total)
		rows = append(rows, sum)
	}
	return rows
}

// WriteCSV renders rows for the external exporter, header first.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"label", "total_activities", "present", "absent", "late", "excused", "rate"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Label,
			fmt.Sprintf("%d", r.Total),
			fmt.Sprintf("%d", r.Present),
			fmt.Sprintf("%d", r.Absent),
			fmt.Sprintf("%d", r.Late),
			fmt.Sprintf("%d", r.Excused),
			fmt.Sprintf("%.1f", r.Rate),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
