package portal

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntriesSearchParsesRows(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/entry/processViewEntries.do", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "23594731221", r.Form.Get("masterBill"))
		assert.Equal(t, "1000", r.Form.Get("noPerPage"))
		assert.Equal(t, "vep1", r.Form.Get("orderBy"))
		w.Write([]byte(entriesHTML([]string{
			entryRowHTML("316", "8000001", "01/07/24"),
			entryRowHTML("316", "8000002", "01/05/24"),
			entryRowHTML("316", "8000003", "01/06/24"),
		})))
	})

	res, err := m.client(t).EntriesSearch(context.Background(), "23594731221")
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	assert.True(t, res.HasOldest)
	assert.Equal(t, "01/05/24", res.OldestEntry.Format("01/02/06"))
	assert.Contains(t, res.Rows[0].QueryString, "filerCode=316&entryNo=8000001")
	assert.Contains(t, res.Rows[0].Link, "/app/entry/viewEntry.do")
}

func TestEntriesSearchNotFoundOnEmptyTable(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/entry/processViewEntries.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(entriesHTML(nil)))
	})

	_, err := m.client(t).EntriesSearch(context.Background(), "23594731221")
	assert.ErrorIs(t, err, ErrEntriesNotFound)
}

func TestEntriesSearchNotFoundOnMessageRow(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/entry/processViewEntries.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(entriesHTML([]string{
			`<tr class="light"><td colspan="7">No results found for this search.</td></tr>`,
		})))
	})

	_, err := m.client(t).EntriesSearch(context.Background(), "23594731221")
	assert.ErrorIs(t, err, ErrEntriesNotFound)
}

func TestEntriesSearchSkipsUnparseableDates(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/entry/processViewEntries.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(entriesHTML([]string{
			entryRowHTML("316", "8000001", "01/07/24"),
			entryRowHTML("316", "8000002", "pending"),
		})))
	})

	res, err := m.client(t).EntriesSearch(context.Background(), "23594731221")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}

func TestEntryNumbers(t *testing.T) {
	rows := []EntryRow{
		{QueryString: "filerCode=316&entryNo=8000001"},
		{Link: "https://portal/app/entry/viewEntry.do?filerCode=316&entryNo=8000002"},
		{},
	}
	assert.Equal(t, []string{"8000001", "8000002"}, EntryNumbers(rows))
}

// Header discovery: a broker layout with Entry Date in a non-default column.
func TestEntriesSearchHeaderDrivenDateColumn(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/entry/processViewEntries.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><form id="veForm"><div class="dataCell"><table><tbody>
<tr><td>summary band</td></tr>
<tr><td>Entry No.</td><td>Entry Date</td><td>Type</td><td>Importer</td><td>Status</td><td>Release</td><td>Duty</td></tr>
<tr class="light">
<td><a href="/app/entry/viewEntry.do?filerCode=316&amp;entryNo=8000009">316-8000009</a></td>
<td>02/01/24</td><td>T11</td><td>IMP</td><td>OK</td><td>x</td><td>$5.00</td>
</tr>
</tbody></table></div></form></body></html>`))
	})

	res, err := m.client(t).EntriesSearch(context.Background(), "23594731221")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "02/01/24", res.Rows[0].DateText)
}
