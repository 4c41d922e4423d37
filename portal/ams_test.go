package portal

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAMSLookupHappyPath(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/ams/viewMawbs.do", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "235", r.Form.Get("prefix"))
		assert.Equal(t, "94731221", r.Form.Get("mawb"))
		assert.Equal(t, "Y1", r.Form.Get("searchTimePeriod"))
		assert.Equal(t, "25", r.Form.Get("noPerPage"))
		w.Write([]byte(amsSearchHTML("/app/ams/mawbMenu.do?amsMawbId=42", "01/05/24", "10")))
	})
	m.handle("/app/ams/mawbMenu.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(amsMasterHTML("9", "$1,234.56", "3", "3")))
	})

	c := m.client(t)
	res, err := c.AMSLookup(context.Background(), "23594731221")
	require.NoError(t, err)

	assert.Equal(t, "10", res.TotalHAWBs)
	assert.Equal(t, "01/05/24", res.ArrivalDate)
	assert.Equal(t, "9", res.Houses7501)
	assert.Equal(t, "$1,234.56", res.Duty)
	assert.Equal(t, "3", res.T11Entries)
	assert.Equal(t, "3", res.EntriesAccepted)
	assert.Equal(t, "0", res.RejectedEntries)
}

func TestAMSLookupRejectedEntriesDerived(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/ams/viewMawbs.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(amsSearchHTML("/app/ams/mawbMenu.do?amsMawbId=42", "01/05/24", "4,250")))
	})
	m.handle("/app/ams/mawbMenu.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(amsMasterHTML("4,250", "$9,000.00", "12", "10")))
	})

	res, err := m.client(t).AMSLookup(context.Background(), "23594731221")
	require.NoError(t, err)
	assert.Equal(t, "4250", res.Houses7501)
	assert.Equal(t, "2", res.RejectedEntries)
}

func TestAMSLookupMasterNotFound(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/ams/viewMawbs.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="resultsDiv">There is no awb matching your search.</div></body></html>`))
	})

	_, err := m.client(t).AMSLookup(context.Background(), "23594731221")
	assert.ErrorIs(t, err, ErrMasterNotFound)
	assert.Zero(t, m.hits("/app/ams/mawbMenu.do"))
}

func TestAMSLookupNoRowsIsNotFound(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/ams/viewMawbs.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="resultsDiv"><table><tbody></tbody></table></div></body></html>`))
	})

	_, err := m.client(t).AMSLookup(context.Background(), "23594731221")
	assert.ErrorIs(t, err, ErrMasterNotFound)
}

func TestAMSLookupMissingAnchorsDefaultToZero(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/ams/viewMawbs.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(amsSearchHTML("/app/ams/mawbMenu.do?amsMawbId=42", "01/05/24", "10")))
	})
	m.handle("/app/ams/mawbMenu.do", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>no anchors here</body></html>`))
	})

	res, err := m.client(t).AMSLookup(context.Background(), "23594731221")
	require.NoError(t, err)
	assert.Equal(t, "0", res.Houses7501)
	assert.Equal(t, "N/A", res.Duty)
	assert.Equal(t, "0", res.RejectedEntries)
}
