package pdfproc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountEntriesDistinct(t *testing.T) {
	entries := map[string]struct{}{}
	countEntries("Entry No. 316-1234567-8 ... continuation 316-1234567-8", entries)
	countEntries("Entry No. 316-7654321-0", entries)
	assert.Len(t, entries, 2)
}

func TestCountEntriesIgnoresOtherNumbers(t *testing.T) {
	entries := map[string]struct{}{}
	countEntries("MAWB 235-94731221 total $1,234.56 phone 555-1234", entries)
	assert.Empty(t, entries)
}

func TestSumDuty(t *testing.T) {
	text := `US CUSTOMS AND BORDER PROTECTION
Entry No. 316-1234567-8
Other charges 12.00
Total Duty & Fees $1,234.56
`
	assert.InDelta(t, 1234.56, sumDuty(text), 0.001)
}

func TestSumDutyMultipleOccurrences(t *testing.T) {
	text := "Total duty & fees 100.00\nfiller\nTOTAL DUTY & FEES $2,000.25\n"
	assert.InDelta(t, 2100.25, sumDuty(text), 0.001)
}

func TestSumDutyNoMatches(t *testing.T) {
	assert.Zero(t, sumDuty("no totals on this page"))
}

func TestCompressMissingBinary(t *testing.T) {
	p := NewProcessor(nil)
	p.GSBinary = "definitely-not-ghostscript"
	p.Timeout = time.Second

	err := p.Compress(context.Background(), "in.pdf", "out.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
