// Package report parses the portal's Custom Report workbook and exports
// consolidated results back to Excel. Two workbook dialects exist; the
// template identifier selects between them.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fteops/dutyrecon/models"
)

// Fields is the aggregate extracted from one Custom Report workbook.
type Fields struct {
	ReportDuty   float64
	InformalDuty float64
	CompleteDuty float64
	TotalHouse   int
	EntryDates   []string
	ReleaseDates []string
}

// Summary renders the aggregate as display strings keyed for the result
// summary. Dates are joined sorted and comma-separated.
func (f Fields) Summary() map[string]string {
	joined := func(dates []string) string {
		if len(dates) == 0 {
			return models.NotAvailable
		}
		return strings.Join(dates, ", ")
	}
	return map[string]string{
		models.KeyReportDuty:        fmt.Sprintf("%.2f", f.ReportDuty),
		models.KeyReportTotalHouse:  strconv.Itoa(f.TotalHouse),
		models.KeyTotalInformalDuty: fmt.Sprintf("%.2f", f.InformalDuty),
		models.KeyCompleteTotalDuty: fmt.Sprintf("%.2f", f.CompleteDuty),
		models.KeyEntryDate:         joined(f.EntryDates),
		models.KeyCargoReleaseDate:  joined(f.ReleaseDates),
	}
}

// Parse reads the workbook at path using the dialect selected by the
// template identifier: identifiers containing "shoaib" use the deduplicating
// dialect, everything else the default one.
func Parse(path, templateIdentifier string) (*Fields, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("report workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read report rows: %w", err)
	}

	if strings.Contains(strings.ToLower(templateIdentifier), "shoaib") {
		return parseDeduplicated(rows), nil
	}
	return parseDefault(rows), nil
}

// parseDefault handles the standard dialect: one entry per row, columns
// informal duty (E), complete duty (G), entry date (C), cargo release (I),
// house indicator (N).
func parseDefault(rows [][]string) *Fields {
	out := &Fields{}
	entryDates := map[string]struct{}{}
	releaseDates := map[string]struct{}{}

	for i, row := range rows {
		if i == 0 {
			continue
		}
		informal, ok1 := parseAmount(cell(row, 4))
		complete, ok2 := parseAmount(cell(row, 6))
		if !ok1 || !ok2 {
			continue
		}
		if cell(row, 13) != "" {
			out.TotalHouse++
		}
		out.InformalDuty += informal
		out.CompleteDuty += complete
		out.ReportDuty += informal + complete
		collectDate(entryDates, cell(row, 2))
		collectDate(releaseDates, cell(row, 8))
	}

	out.EntryDates = sortedKeys(entryDates)
	out.ReleaseDates = sortedKeys(releaseDates)
	return out
}

// parseDeduplicated handles the keyed dialect: column A carries an entry
// identifier and duty is summed once per unique identifier, while houses are
// counted from every row. Rows without a key are skipped.
func parseDeduplicated(rows [][]string) *Fields {
	out := &Fields{}
	entryDates := map[string]struct{}{}
	releaseDates := map[string]struct{}{}
	seen := map[string]struct{}{}

	for i, row := range rows {
		if i == 0 {
			continue
		}
		key := cell(row, 0)
		if key == "" {
			continue
		}
		informal, ok1 := parseAmount(cell(row, 5))
		complete, ok2 := parseAmount(cell(row, 7))
		if !ok1 || !ok2 {
			continue
		}
		if cell(row, 13) != "" {
			out.TotalHouse++
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			out.InformalDuty += informal
			out.CompleteDuty += complete
		}
		collectDate(entryDates, cell(row, 3))
		collectDate(releaseDates, cell(row, 9))
	}

	out.ReportDuty = out.InformalDuty + out.CompleteDuty
	out.EntryDates = sortedKeys(entryDates)
	out.ReleaseDates = sortedKeys(releaseDates)
	return out
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseAmount converts a duty cell to a float. Empty cells count as zero;
// non-numeric text invalidates the row.
func parseAmount(v string) (float64, bool) {
	if v == "" {
		return 0, true
	}
	v = strings.ReplaceAll(strings.ReplaceAll(v, "$", ""), ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-06",
}

// formatDate normalizes a workbook date cell to mm/dd/yy, keeping the raw
// text when no layout matches.
func formatDate(v string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("01/02/06")
		}
	}
	return v
}

func collectDate(set map[string]struct{}, v string) {
	if v == "" {
		return
	}
	set[formatDate(v)] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
