package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fteops/dutyrecon/models"
)

// currencyKeys are summary columns rendered as plain two-decimal amounts in
// the export.
var currencyKeys = map[string]bool{
	models.KeyAMSDuty:           true,
	models.Key7501Duty:          true,
	models.KeyReportDuty:        true,
	models.KeyTotalInformalDuty: true,
	models.KeyCompleteTotalDuty: true,
}

// ExportResults writes one row per result into a workbook and returns the
// encoded bytes. Columns: MAWB (formatted), airport, customer, status,
// verification, template, then the summary keys in their fixed order.
func ExportResults(results []models.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	header := []interface{}{"MAWB", "Airport Code", "Customer", "Status", "Verification", "Template"}
	for _, k := range models.SummaryKeys {
		if k == models.KeyMAWBNumber {
			continue
		}
		header = append(header, k)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}

	for i, res := range results {
		summary, err := res.GetSummary()
		if err != nil {
			return nil, fmt.Errorf("result %s: %w", res.MAWB, err)
		}
		verification := "Failed"
		if res.Status == models.StatusSuccess {
			verification = "Verified"
		}

		row := []interface{}{
			models.FormatMAWB(res.MAWB),
			res.AirportCode,
			res.Customer,
			res.Status,
			verification,
			res.TemplateName,
		}
		for _, k := range models.SummaryKeys {
			if k == models.KeyMAWBNumber {
				continue
			}
			row = append(row, exportValue(k, summary.Get(k)))
		}

		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to compute cell address: %w", err)
		}
		if err := f.SetSheetRow(sheet, addr, &row); err != nil {
			return nil, fmt.Errorf("failed to write export row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode export workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func exportValue(key, value string) string {
	if value == models.NotAvailable || value == "" {
		return value
	}
	if currencyKeys[key] {
		if f := parseCurrencyLoose(value); f != 0 || value == "0" || value == "0.00" || value == "$0.00" {
			return fmt.Sprintf("%.2f", f)
		}
	}
	return value
}

func parseCurrencyLoose(v string) float64 {
	f, ok := parseAmount(v)
	if !ok {
		return 0
	}
	return f
}
