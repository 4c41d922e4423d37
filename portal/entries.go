package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrEntriesNotFound marks a MAWB with no filed entries. Like
// ErrMasterNotFound it is a portal-semantic absence: the pipeline skips the
// Custom Report and PDF stages.
var ErrEntriesNotFound = errors.New("entries not found")

var queryStringRe = regexp.MustCompile(`filerCode=[^&]+&entryNo=\d+`)
var entryNoRe = regexp.MustCompile(`entryNo=(\d+)`)

// EntryRow is one row of the entries index.
type EntryRow struct {
	Date        time.Time
	DateText    string
	Link        string
	QueryString string
}

// EntriesResult is the parsed entries index for one MAWB.
type EntriesResult struct {
	Rows        []EntryRow
	OldestEntry time.Time
	HasOldest   bool
}

// EntriesSearch posts the entries index query for a MAWB. Returns
// ErrEntriesNotFound when the portal lists no entries.
func (c *Client) EntriesSearch(ctx context.Context, mawb string) (*EntriesResult, error) {
	form := url.Values{
		"entryNoSearch":                    {""},
		"brokerRefNo":                      {""},
		"importerRecord":                   {"0"},
		"importerRecordName":               {""},
		"importerSearchByProfile":          {"true"},
		"ultimateConsignee":                {"0"},
		"ultimateConsigneeName":            {""},
		"ultimateConsigneeSearchByProfile": {"true"},
		"freightForwarder":                 {"0"},
		"freightForwarderName":             {""},
		"freightForwarderSearchByProfile":  {"true"},
		"begin":                            {""},
		"end":                              {""},
		"entryStatus":                      {""},
		"cargoReleaseStatus":               {""},
		"manifestStatus":                   {""},
		"pgaAgency":                        {""},
		"ogaStatus":                        {""},
		"statusColor":                      {""},
		"entryType":                        {""},
		"portEntry":                        {""},
		"modeTransport":                    {""},
		"masterBill":                       {mawb},
		"searchTimePeriod":                 {"Y1"},
		"user":                             {""},
		"location":                         {"0"},
		"noPerPage":                        {"1000"},
		"entryNo":                          {"0"},
		"orderBy":                          {"vep1"},
	}

	body, _, err := c.postForm(ctx, entriesSearchPath, form, c.baseURL+entriesIndexPath, EntriesTimeout)
	if err != nil {
		return nil, fmt.Errorf("entries search failed: %w", err)
	}
	return c.parseEntriesSearch(body)
}

func (c *Client) parseEntriesSearch(body []byte) (*EntriesResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse entries HTML: %w", err)
	}

	table := doc.Find("#veForm div.dataCell table").First()
	if table.Length() == 0 {
		table = doc.Find("div.dataCell table").First()
	}
	if table.Length() == 0 {
		return nil, fmt.Errorf("entries results table not found")
	}

	dateCol := findEntryDateColumn(table)

	rows := table.Find("tbody tr.light, tbody tr.dark")
	if rows.Length() == 0 {
		return nil, ErrEntriesNotFound
	}
	firstText := strings.ToLower(strings.TrimSpace(rows.First().Text()))
	if strings.Contains(firstText, "no results") || strings.Contains(firstText, "no entries") {
		return nil, ErrEntriesNotFound
	}

	result := &EntriesResult{}
	rows.Each(func(_ int, row *goquery.Selection) {
		entry, ok := parseEntryRow(c, row, dateCol)
		if !ok {
			return
		}
		result.Rows = append(result.Rows, entry)
		if !result.HasOldest || entry.Date.Before(result.OldestEntry) {
			result.OldestEntry = entry.Date
			result.HasOldest = true
		}
	})

	if len(result.Rows) == 0 {
		return nil, ErrEntriesNotFound
	}
	return result, nil
}

// findEntryDateColumn locates the "Entry Date" header. Brokers place it in
// different positions, so the header text is probed in the second then first
// tbody row, then in rows marked class="header". Returns -1 when no header
// matches; callers fall back to the common column positions.
func findEntryDateColumn(table *goquery.Selection) int {
	tbodyRows := table.Find("tbody tr")

	for _, idx := range []int{1, 0} {
		if tbodyRows.Length() > idx {
			if col := searchHeaderRow(tbodyRows.Eq(idx)); col >= 0 {
				return col
			}
		}
	}

	col := -1
	table.Find("tr.header").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if found := searchHeaderRow(row); found >= 0 {
			col = found
			return false
		}
		return true
	})
	return col
}

func searchHeaderRow(row *goquery.Selection) int {
	col := -1
	row.Find("td").EachWithBreak(func(idx int, cell *goquery.Selection) bool {
		text := strings.TrimSpace(cell.Text())
		// Some headers wrap the label in a div (e.g. <div id="eDte_ob">).
		cell.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
			if t := strings.TrimSpace(div.Text()); t != "" {
				text = t
				return false
			}
			return true
		})
		lower := strings.ToLower(text)
		if strings.Contains(lower, "entry date") ||
			strings.Contains(strings.ReplaceAll(lower, " ", ""), "entrydate") {
			col = idx
			return false
		}
		return true
	})
	return col
}

// parseEntryRow extracts the date and detail link from a data row. Rows whose
// date cannot be parsed are skipped.
func parseEntryRow(c *Client, row *goquery.Selection, dateCol int) (EntryRow, bool) {
	cells := row.Find("td")

	var entry EntryRow
	if href, ok := cells.Eq(0).Find("a").First().Attr("href"); ok && href != "" {
		entry.Link = c.absoluteURL(href)
		if m := queryStringRe.FindString(entry.Link); m != "" {
			entry.QueryString = m
		}
	}

	candidates := []int{5, 6, 4}
	if dateCol >= 0 {
		candidates = append([]int{dateCol}, candidates...)
	}
	for _, idx := range candidates {
		if cells.Length() <= idx {
			continue
		}
		text := strings.TrimSpace(cells.Eq(idx).Text())
		if text == "" || !strings.Contains(text, "/") || len(text) > 10 {
			continue
		}
		if d, err := time.Parse("01/02/06", text); err == nil {
			entry.Date = d
			entry.DateText = text
			return entry, true
		}
	}
	return EntryRow{}, false
}

// EntryNumbers extracts the numeric entry identifiers from index rows, for
// the 7501 batch request.
func EntryNumbers(rows []EntryRow) []string {
	var out []string
	for _, row := range rows {
		source := row.QueryString
		if source == "" {
			source = row.Link
		}
		if m := entryNoRe.FindStringSubmatch(source); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}
