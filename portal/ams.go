package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrMasterNotFound marks a MAWB the portal has no AMS record for. It is a
// portal-semantic absence, not a system failure; the pipeline short-circuits
// on it.
var ErrMasterNotFound = errors.New("master not found")

// AMSResult carries the figures scraped from the AMS search results and the
// master detail page. Counts from the detail page arrive comma-stripped;
// TotalHAWBs and ArrivalDate keep the search-row text as shown; duty keeps
// its display formatting.
type AMSResult struct {
	TotalHAWBs      string
	ArrivalDate     string
	Duty            string
	T11Entries      string
	EntriesAccepted string
	RejectedEntries string
	Houses7501      string
}

// AMSLookup searches the AMS region for a MAWB and follows the master detail
// link. Returns ErrMasterNotFound when the portal reports no AWB.
func (c *Client) AMSLookup(ctx context.Context, mawb string) (*AMSResult, error) {
	form := url.Values{
		"prefix":          {mawb[:3]},
		"mawb":            {mawb[3:]},
		"refNo":           {""},
		"hawb":            {""},
		"arrivalBegin":    {""},
		"arrivalEnd":      {""},
		"container":       {""},
		"cbpStatus":       {""},
		"acasStatus":      {""},
		"arrivalAirport":  {""},
		"carrier":         {""},
		"flight":          {""},
		"client":          {"0"},
		"clientName":      {""},
		"searchByProfile": {"true"},
		"searchTimePeriod": {"Y1"},
		"location":        {"0"},
		"user":            {""},
		"noPerPage":       {"25"},
		"cfs":             {"false"},
		"pageNo":          {"0"},
		"orderBy":         {"amb1"},
	}

	body, _, err := c.postForm(ctx, amsSearchPath, form, c.baseURL+amsSearchPath, AMSSearchTimeout)
	if err != nil {
		return nil, fmt.Errorf("AMS search failed: %w", err)
	}

	masterLink, result, err := c.parseAMSSearch(body)
	if err != nil {
		return nil, err
	}

	detailBody, _, err := c.get(ctx, masterLink, c.baseURL+amsSearchPath, AMSDetailTimeout)
	if err != nil {
		return nil, fmt.Errorf("AMS master page fetch failed: %w", err)
	}
	if err := parseAMSMaster(detailBody, result); err != nil {
		return nil, err
	}
	return result, nil
}

// parseAMSSearch extracts the first result row and the master detail link.
func (c *Client) parseAMSSearch(body []byte) (string, *AMSResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse AMS search HTML: %w", err)
	}

	pageText := strings.ToLower(doc.Text())
	if strings.Contains(pageText, "there is no awb") || strings.Contains(pageText, "no awb") {
		return "", nil, ErrMasterNotFound
	}

	rows := doc.Find("#resultsDiv table tbody tr.light, #resultsDiv table tbody tr.dark")
	if rows.Length() == 0 {
		return "", nil, ErrMasterNotFound
	}

	first := rows.First()
	cells := first.Find("td")
	if cells.Length() < 7 {
		return "", nil, fmt.Errorf("AMS result row has %d cells, expected at least 7", cells.Length())
	}

	result := &AMSResult{
		ArrivalDate: textOrNA(cells.Eq(5)),
		TotalHAWBs:  textOrNA(cells.Eq(6)),
	}

	href, ok := cells.Eq(0).Find("a").First().Attr("href")
	if !ok || href == "" {
		return "", nil, fmt.Errorf("AMS result row has no master detail link")
	}
	return c.absoluteURL(href), result, nil
}

// parseAMSMaster reads the anchored detail figures: #esH houses, #esD duty,
// #esC T-11 entries, #esA accepted entries. Rejected entries are derived.
func parseAMSMaster(body []byte, result *AMSResult) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse AMS master HTML: %w", err)
	}

	result.Houses7501 = strconv.Itoa(anchoredCount(doc, "#esH"))
	result.T11Entries = strconv.Itoa(anchoredCount(doc, "#esC"))
	result.EntriesAccepted = strconv.Itoa(anchoredCount(doc, "#esA"))

	if duty := strings.TrimSpace(doc.Find("#esD").First().Text()); duty != "" {
		result.Duty = duty
	} else {
		result.Duty = "N/A"
	}

	t11, _ := strconv.Atoi(result.T11Entries)
	accepted, _ := strconv.Atoi(result.EntriesAccepted)
	result.RejectedEntries = strconv.Itoa(t11 - accepted)
	return nil
}

// anchoredCount reads an integer from an element by id, stripping thousand
// separators. Missing or unparseable values are zero.
func anchoredCount(doc *goquery.Document, selector string) int {
	text := strings.TrimSpace(doc.Find(selector).First().Text())
	text = strings.ReplaceAll(text, ",", "")
	if text == "" {
		return 0
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return n
}

func textOrNA(sel *goquery.Selection) string {
	if text := strings.TrimSpace(sel.Text()); text != "" {
		return text
	}
	return "N/A"
}
