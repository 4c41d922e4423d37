package portal

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// entryDetailBatchSize bounds the fan-out when sweeping entry detail pages.
// Each batch completes before the next is issued.
const entryDetailBatchSize = 6

var detailDutyRe = regexp.MustCompile(`(?i)total\s+duty\s*&\s*fees[^0-9$-]*\$?\s*([\d,]+\.\d{2})`)

// FetchEntryDetailDuties sweeps the entry detail pages for the given rows in
// bounded parallel batches and returns the summed per-entry duty along with
// the number of rows that could not be read. Individual failures are logged
// and skipped; summing is order-independent.
func (c *Client) FetchEntryDetailDuties(ctx context.Context, rows []EntryRow) (float64, int) {
	var mu sync.Mutex
	var total float64
	failed := 0

	for start := 0; start < len(rows); start += entryDetailBatchSize {
		end := start + entryDetailBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		var wg sync.WaitGroup
		for _, row := range rows[start:end] {
			if row.QueryString == "" {
				mu.Lock()
				failed++
				mu.Unlock()
				continue
			}
			wg.Add(1)
			go func(row EntryRow) {
				defer wg.Done()
				duty, err := c.fetchEntryDuty(ctx, row)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					c.log.WithError(err).WithField("entry", row.QueryString).Warn("entry detail fetch failed")
					failed++
					return
				}
				total += duty
			}(row)
		}
		wg.Wait()
	}

	return total, failed
}

func (c *Client) fetchEntryDuty(ctx context.Context, row EntryRow) (float64, error) {
	detailURL := c.baseURL + entryDetailPath + "?" + row.QueryString
	body, _, err := c.get(ctx, detailURL, c.baseURL+entriesIndexPath, EntryDetailTimeout)
	if err != nil {
		return 0, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	m := detailDutyRe.FindStringSubmatch(doc.Text())
	if m == nil {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, nil
	}
	return f, nil
}
