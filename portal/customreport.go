package portal

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fteops/dutyrecon/models"
)

// reportWindowDays bounds the Custom Report query window. Old entry dates
// would otherwise make the portal scan a year of data.
const reportWindowDays = 25

// DownloadCustomReport posts the Custom Report form for a MAWB and saves the
// returned workbook to a temp file, whose path is returned. The template is
// identified by its field arrays; the portal accepts a zero templateId.
func (c *Client) DownloadCustomReport(ctx context.Context, mawb string, oldestEntry time.Time, tpl models.TemplatePayload) (string, error) {
	form := buildCustomReportForm(mawb, oldestEntry, tpl, c.now())

	body, contentType, err := c.postForm(ctx, customReportPath, form, c.baseURL+customReportPage, CustomReportTimeout)
	if err != nil {
		return "", fmt.Errorf("custom report download failed: %w", err)
	}

	ct := strings.ToLower(contentType)
	if !strings.Contains(ct, "excel") && !strings.Contains(ct, "spreadsheet") {
		return "", fmt.Errorf("custom report returned unexpected content type %q", contentType)
	}

	dir := c.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, models.FormatMAWB(mawb)+" customizable report.xlsx")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to save custom report: %w", err)
	}
	return path, nil
}

// buildCustomReportForm assembles the POST body: begin is the oldest entry
// date and end is capped at begin+25 days once the entry is at least 25 days
// old. Array fields serialize as repeated form keys; DefaultValues merges in
// verbatim.
func buildCustomReportForm(mawb string, oldestEntry time.Time, tpl models.TemplatePayload, now time.Time) url.Values {
	form := url.Values{}
	form.Set("templateId", "0")

	end := now
	if now.Sub(oldestEntry) >= reportWindowDays*24*time.Hour {
		end = oldestEntry.AddDate(0, 0, reportWindowDays)
	}
	form.Set("begin", oldestEntry.Format("010206"))
	form.Set("end", end.Format("010206"))
	form.Set("masterBill", mawb)

	for key, value := range tpl.DefaultValues {
		form.Set(key, value)
	}
	for key, values := range map[string][]string{
		"headerFields":   tpl.HeaderFields,
		"manifestFields": tpl.ManifestFields,
		"invoiceFields":  tpl.InvoiceFields,
		"lineFields":     tpl.LineFields,
		"tariffFields":   tpl.TariffFields,
	} {
		for _, v := range values {
			form.Add(key, v)
		}
	}
	return form
}
