package portal

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockPortal is an httptest-backed portal with per-path handlers.
type mockPortal struct {
	server   *httptest.Server
	mux      *http.ServeMux
	requests map[string]int
}

func newMockPortal(t *testing.T) *mockPortal {
	t.Helper()
	m := &mockPortal{mux: http.NewServeMux(), requests: map[string]int{}}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests[r.URL.Path]++
		m.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockPortal) handle(path string, h http.HandlerFunc) {
	m.mux.HandleFunc(path, h)
}

func (m *mockPortal) client(t *testing.T) *Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := NewClient(m.server.URL, jar, nil)
	c.SetTempDir(t.TempDir())
	return c
}

func (m *mockPortal) hits(path string) int { return m.requests[path] }

// amsSearchHTML renders an AMS search results page with one data row.
func amsSearchHTML(masterHref, arrival, hawbs string) string {
	return fmt.Sprintf(`<html><body>
<div id="resultsDiv"><table><tbody>
<tr class="header"><td>Master</td><td>a</td><td>b</td><td>c</td><td>d</td><td>Arrival</td><td>HAWBs</td></tr>
<tr class="light">
  <td><a href="%s">235-94731221</a></td>
  <td>x</td><td>x</td><td>x</td><td>x</td>
  <td>%s</td>
  <td>%s</td>
</tr>
</tbody></table></div>
</body></html>`, masterHref, arrival, hawbs)
}

// amsMasterHTML renders a master detail page with the anchored figures.
func amsMasterHTML(houses, duty, t11, accepted string) string {
	return fmt.Sprintf(`<html><body>
<span id="esH">%s</span>
<span id="esD">%s</span>
<span id="esC">%s</span>
<span id="esA">%s</span>
</body></html>`, houses, duty, t11, accepted)
}

// entriesHTML renders an entries index with a header row and data rows.
// Each data row: entry link in the first cell, entry date in column 6
// (0-indexed 5).
func entriesHTML(rows []string) string {
	var b strings.Builder
	b.WriteString(`<html><body><form id="veForm"><div class="dataCell"><table><tbody>`)
	b.WriteString(`<tr><td>summary</td></tr>`)
	b.WriteString(`<tr><td>Entry No.</td><td>Type</td><td>Importer</td><td>Status</td><td>Release</td><td><div id="eDte_ob">Entry Date</div></td><td>Duty</td></tr>`)
	for _, r := range rows {
		b.WriteString(r)
	}
	b.WriteString(`</tbody></table></div></form></body></html>`)
	return b.String()
}

func entryRowHTML(filer, entryNo, date string) string {
	return fmt.Sprintf(`<tr class="light">
<td><a href="/app/entry/viewEntry.do?filerCode=%s&amp;entryNo=%s">%s-%s</a></td>
<td>T11</td><td>IMP</td><td>OK</td><td>rel</td><td>%s</td><td>$10.00</td>
</tr>`, filer, entryNo, filer, entryNo, date)
}
