package portal

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchEntryDetailDutiesSums(t *testing.T) {
	m := newMockPortal(t)
	var inFlight, maxInFlight int32
	m.handle("/app/entry/viewEntry.do", func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			prev := atomic.LoadInt32(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, cur) {
				break
			}
		}
		fmt.Fprintf(w, `<html><body>Entry %s<br>Total Duty &amp; Fees $100.25</body></html>`, r.URL.Query().Get("entryNo"))
	})

	rows := make([]EntryRow, 10)
	for i := range rows {
		rows[i] = EntryRow{QueryString: fmt.Sprintf("filerCode=316&entryNo=%07d", i)}
	}

	total, failed := m.client(t).FetchEntryDetailDuties(context.Background(), rows)
	assert.InDelta(t, 1002.50, total, 0.001)
	assert.Zero(t, failed)
	assert.LessOrEqual(t, maxInFlight, int32(entryDetailBatchSize))
}

func TestFetchEntryDetailDutiesCountsFailures(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/app/entry/viewEntry.do", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("entryNo") == "0000001" {
			http.Error(w, "denied", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `<html><body>Total duty &amp; fees 50.00</body></html>`)
	})

	rows := []EntryRow{
		{QueryString: "filerCode=316&entryNo=0000001"},
		{QueryString: "filerCode=316&entryNo=0000002"},
		{}, // no query string
	}
	total, failed := m.client(t).FetchEntryDetailDuties(context.Background(), rows)
	assert.InDelta(t, 50.00, total, 0.001)
	assert.Equal(t, 2, failed)
}
