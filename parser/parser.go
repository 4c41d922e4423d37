// Package parser normalizes heterogeneous clipboard text into ordered batch
// items. It recognizes tab-, comma-, and whitespace-delimited rows as well as
// bare MAWB tokens, and reconstructs rows from vertical spreadsheet pastes
// where each cell arrives on its own line.
package parser

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/fteops/dutyrecon/models"
)

// Item is one parsed input row. Broker and format IDs are injected later by
// the caller; the parser only deals in text.
type Item struct {
	MAWB           string
	AirportCode    string
	Customer       string
	CheckbookHAWBs string
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)
var anySpaceRe = regexp.MustCompile(`\s+`)

// Parse splits a free-form blob into batch items. Malformed lines are dropped
// silently; callers observe the count difference.
func Parse(text string) []Item {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	lines := nonEmptyLines(trimmed)

	// Spreadsheet vertical paste: each cell on its own line, no tabs.
	if !strings.Contains(trimmed, "\t") && len(lines) > 1 {
		if rebuilt := reconstructRows(lines); len(rebuilt) > 0 {
			lines = rebuilt
		}
	}

	var items []Item
	for _, line := range lines {
		if item, ok := parseLine(line); ok {
			items = append(items, item)
		}
	}
	return items
}

// ToBatchItems attaches broker and format IDs to parsed items.
func ToBatchItems(items []Item, brokerID, formatID uuid.UUID) []models.BatchItem {
	out := make([]models.BatchItem, 0, len(items))
	for _, it := range items {
		out = append(out, models.BatchItem{
			MAWB:           it.MAWB,
			AirportCode:    it.AirportCode,
			Customer:       it.Customer,
			CheckbookHAWBs: it.CheckbookHAWBs,
			BrokerID:       brokerID,
			FormatID:       formatID,
		})
	}
	return out
}

// Serialize renders items as tab-delimited 5-column rows
// (Port, Customer, Broker, HAWBs, Master). Parse is its inverse.
func Serialize(items []Item) string {
	rows := make([]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, strings.Join([]string{
			it.AirportCode, it.Customer, "", it.CheckbookHAWBs, it.MAWB,
		}, "\t"))
	}
	return strings.Join(rows, "\n")
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func isMAWBToken(s string) bool {
	return len(digitsOf(s)) == 11
}

// reconstructRows regroups vertically pasted cells into tab-joined rows. At
// each position it peeks ahead: a MAWB four lines down means a 5-column row,
// two lines down a 3-column row; otherwise it scans up to ten lines for the
// next MAWB token and emits whatever precedes it.
func reconstructRows(lines []string) []string {
	var rows []string
	i := 0
	for i < len(lines) {
		if i+4 < len(lines) && isMAWBToken(lines[i+4]) {
			rows = append(rows, strings.Join(lines[i:i+5], "\t"))
			i += 5
			continue
		}
		if i+2 < len(lines) && isMAWBToken(lines[i+2]) {
			rows = append(rows, strings.Join(lines[i:i+3], "\t"))
			i += 3
			continue
		}
		found := false
		limit := i + 10
		if limit > len(lines) {
			limit = len(lines)
		}
		for j := i; j < limit; j++ {
			if isMAWBToken(lines[j]) && j-i >= 2 {
				rows = append(rows, strings.Join(lines[i:j+1], "\t"))
				i = j + 1
				found = true
				break
			}
		}
		if !found {
			i++
		}
	}
	return rows
}

func parseLine(line string) (Item, bool) {
	var it Item
	var mawbRaw string

	switch {
	case strings.Contains(line, "\t"):
		mawbRaw, it = parseDelimited(splitTrim(line, "\t"))
	case strings.Contains(line, ","):
		mawbRaw, it = parseDelimited(splitTrim(line, ","))
	case multiSpaceRe.MatchString(line) || strings.Count(line, " ") >= 2:
		mawbRaw, it = parseSpaced(anySpaceRe.Split(line, -1))
	default:
		mawbRaw = line
	}

	if mawbRaw == "" {
		return Item{}, false
	}
	mawb, err := models.NormalizeMAWB(mawbRaw)
	if err != nil {
		return Item{}, false
	}
	it.MAWB = mawb
	return it, true
}

// parseDelimited handles tab- and comma-separated rows. Five or more columns
// mean Port, Customer, Broker (ignored; selected elsewhere), HAWBs, Master;
// three mean Port, Customer, Master.
func parseDelimited(parts []string) (string, Item) {
	var it Item
	switch {
	case len(parts) >= 5:
		if !isMAWBToken(parts[4]) {
			return "", it
		}
		it.AirportCode = parts[0]
		it.Customer = parts[1]
		it.CheckbookHAWBs = parts[3]
		return parts[4], it
	case len(parts) >= 3:
		it.AirportCode = parts[0]
		it.Customer = parts[1]
		return parts[2], it
	case len(parts) == 2:
		switch {
		case isMAWBToken(parts[0]):
			if !isMAWBToken(parts[1]) {
				it.AirportCode = parts[1]
			}
			return parts[0], it
		case isMAWBToken(parts[1]):
			if !isMAWBToken(parts[0]) {
				it.AirportCode = parts[0]
			}
			return parts[1], it
		default:
			return "", it
		}
	default:
		return parts[0], it
	}
}

// parseSpaced locates the MAWB column by digit extraction; columns to its
// left populate airport and customer, and a MAWB in column five implies the
// 5-column layout with checkbook HAWBs in column four.
func parseSpaced(parts []string) (string, Item) {
	var it Item
	mawbIdx := -1
	for idx, part := range parts {
		if isMAWBToken(part) {
			mawbIdx = idx
			break
		}
	}
	if mawbIdx < 0 {
		if len(parts) > 1 {
			it.AirportCode = parts[1]
		}
		if len(parts) > 2 {
			it.Customer = parts[2]
		}
		return parts[0], it
	}

	if len(parts) >= 5 && mawbIdx == 4 {
		it.AirportCode = parts[0]
		it.Customer = parts[1]
		it.CheckbookHAWBs = parts[3]
		return parts[4], it
	}

	before := parts[:mawbIdx]
	if len(before) >= 2 {
		it.AirportCode = before[0]
		it.Customer = before[1]
	} else if len(before) == 1 {
		it.AirportCode = before[0]
	}
	return parts[mawbIdx], it
}

func splitTrim(line, sep string) []string {
	parts := strings.Split(line, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
