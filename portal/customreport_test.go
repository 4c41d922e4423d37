package portal

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fteops/dutyrecon/models"
)

func testTemplate() models.TemplatePayload {
	return models.TemplatePayload{
		HeaderFields:   []string{"entryNo", "entryDate"},
		ManifestFields: []string{"houseBill", "pieces"},
		DefaultValues:  map[string]string{"entryStatus": "", "reportFormat": "excel"},
	}
}

func TestDownloadCustomReportSavesWorkbook(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/entry/downloadCustomizableReport.do", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "0", r.Form.Get("templateId"))
		assert.Equal(t, "23594731221", r.Form.Get("masterBill"))
		assert.Equal(t, []string{"entryNo", "entryDate"}, r.Form["headerFields"])
		assert.Equal(t, []string{"houseBill", "pieces"}, r.Form["manifestFields"])
		assert.Equal(t, "excel", r.Form.Get("reportFormat"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Write([]byte("workbook-bytes"))
	})

	c := m.client(t)
	path, err := c.DownloadCustomReport(context.Background(), "23594731221", time.Now().AddDate(0, 0, -3), testTemplate())
	require.NoError(t, err)
	assert.Contains(t, path, "235-94731221 customizable report.xlsx")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "workbook-bytes", string(data))
}

func TestDownloadCustomReportRejectsNonSpreadsheet(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/entry/downloadCustomizableReport.do", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>session expired</html>"))
	})

	_, err := m.client(t).DownloadCustomReport(context.Background(), "23594731221", time.Now(), testTemplate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content type")
}

// The end date is capped 25 days after the oldest entry once that entry is at
// least 25 days old; otherwise it is today.
func TestCustomReportDateWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	oldEntry := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	form := buildCustomReportForm("23594731221", oldEntry, testTemplate(), now)
	assert.Equal(t, "010124", form.Get("begin"))
	assert.Equal(t, "012624", form.Get("end"))

	recentEntry := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	form = buildCustomReportForm("23594731221", recentEntry, testTemplate(), now)
	assert.Equal(t, "022024", form.Get("begin"))
	assert.Equal(t, "030124", form.Get("end"))

	// Exactly 25 days old: the window cap applies.
	boundary := now.AddDate(0, 0, -25)
	form = buildCustomReportForm("23594731221", boundary, testTemplate(), now)
	assert.Equal(t, boundary.AddDate(0, 0, 25).Format("010206"), form.Get("end"))
}
