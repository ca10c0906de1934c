// Package pivot turns wide data rows into one long row per date and media.
package pivot

import (
	"github.com/shopspring/decimal"

	"github.com/tinafang86/OM-to-ROI-data-process/internal/indexer"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/normalizer"
	"github.com/tinafang86/OM-to-ROI-data-process/internal/vocabulary"
)

// Row is one long-format output row. Values follow the vocabulary's target order.
type Row struct {
	Date   string
	Media  string
	Values []decimal.Decimal
}

// Table is the long-format result of a pivot.
type Table struct {
	Header      []string
	Rows        []Row
	SkippedRows int // data rows dropped because their date cell was blank
}

// Pivot emits, for every data row with a date, one Row per media group in
// discovery order. Metrics a media group has no column for are zero.
func Pivot(idx *indexer.Index, rows [][]string, vocab *vocabulary.Vocabulary) *Table {
	targets := vocab.Targets()

	table := &Table{
		Header: vocab.Header(),
		Rows:   make([]Row, 0, len(rows)*len(idx.Groups)),
	}

	// Resolve each group's column per target once instead of per row.
	columns := make([][]int, len(idx.Groups))
	for g, group := range idx.Groups {
		columns[g] = make([]int, len(targets))
		for m, target := range targets {
			columns[g][m] = group.Column(target.ID)
		}
	}

	for _, row := range rows {
		date := dateValue(row, idx.DateColumn)
		if date == "" {
			table.SkippedRows++
			continue
		}

		for g, group := range idx.Groups {
			values := make([]decimal.Decimal, len(targets))
			for m, col := range columns[g] {
				values[m] = normalizer.NormalizeValue(row, col)
			}
			table.Rows = append(table.Rows, Row{
				Date:   date,
				Media:  group.Name,
				Values: values,
			})
		}
	}

	return table
}

func dateValue(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// Records renders the table as string rows, header first.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows)+1)
	records = append(records, append([]string(nil), t.Header...))
	for _, r := range t.Rows {
		rec := make([]string, 0, len(r.Values)+2)
		rec = append(rec, r.Date, r.Media)
		for _, v := range r.Values {
			rec = append(rec, v.String())
		}
		records = append(records, rec)
	}
	return records
}

// Dates returns the distinct dates in output order.
func (t *Table) Dates() []string {
	var dates []string
	seen := make(map[string]bool)
	for _, r := range t.Rows {
		if !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	return dates
}
