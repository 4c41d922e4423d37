// Package pdfproc post-processes downloaded 7501 batch PDFs: aggressive
// Ghostscript recompression for storage, and text extraction of the entry
// count and total duty used for reconciliation.
package pdfproc

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/fteops/dutyrecon/common"
)

// Processor compresses and inspects 7501 batch PDFs.
type Processor struct {
	// GSBinary is the Ghostscript executable, "gs" by default.
	GSBinary string
	// Timeout bounds one compression subprocess.
	Timeout time.Duration
	Log     logrus.FieldLogger
}

// NewProcessor returns a processor with the default Ghostscript settings.
func NewProcessor(log logrus.FieldLogger) *Processor {
	return &Processor{GSBinary: "gs", Timeout: 120 * time.Second, Log: log}
}

// Compress rewrites the PDF at inputPath into outputPath using the /screen
// preset with 150 DPI image downsampling. The caller is expected to fall back
// to the original file when an error is returned.
func (p *Processor) Compress(ctx context.Context, inputPath, outputPath string) error {
	binary := p.GSBinary
	if binary == "" {
		binary = "gs"
	}
	if !common.LookPath(binary) {
		return fmt.Errorf("ghostscript binary %q not found on PATH", binary)
	}

	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/screen",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dColorImageResolution=150",
		"-dGrayImageResolution=150",
		"-dMonoImageResolution=150",
		"-dColorImageDownsampleType=/Bicubic",
		"-dGrayImageDownsampleType=/Bicubic",
		"-dColorConversionStrategy=/sRGB",
		"-dProcessColorModel=/DeviceRGB",
		"-sOutputFile=" + outputPath,
		inputPath,
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if _, err := common.RunCommand(ctx, timeout, binary, args...); err != nil {
		return fmt.Errorf("ghostscript compression failed: %w", err)
	}
	return nil
}

// Entry identifiers on a 7501 form: 3-digit filer code, 7-digit number, check
// digit.
var entryNumberRe = regexp.MustCompile(`\b\d{3}-\d{7}-\d\b`)

// The "Total duty & fees" line carries one monetary amount per entry.
var totalDutyRe = regexp.MustCompile(`(?i)total\s+duty\s*&\s*fees[^0-9$-]*\$?\s*([\d,]+\.\d{2})`)

// ExtractSummary reads the PDF text page by page and returns the number of
// distinct entries and the summed "Total duty & fees" amount. Both values are
// reported even when zero.
func (p *Processor) ExtractSummary(path string) (int, float64, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	entries := map[string]struct{}{}
	var totalDuty float64

	pages := reader.NumPage()
	for n := 1; n <= pages; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			if p.Log != nil {
				p.Log.WithError(err).WithField("page", n).Warn("failed to extract PDF page text")
			}
			continue
		}
		countEntries(text, entries)
		totalDuty += sumDuty(text)
	}

	return len(entries), totalDuty, nil
}

// countEntries records distinct entry-number tokens found in text.
func countEntries(text string, entries map[string]struct{}) {
	for _, m := range entryNumberRe.FindAllString(text, -1) {
		entries[m] = struct{}{}
	}
}

// sumDuty sums every "Total duty & fees" amount in text. Amounts are parsed
// as currency: dollar sign and thousand separators stripped, unparseable
// occurrences contribute zero.
func sumDuty(text string) float64 {
	var total float64
	for _, m := range totalDutyRe.FindAllStringSubmatch(text, -1) {
		amount := strings.ReplaceAll(m[1], ",", "")
		f, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			continue
		}
		total += f
	}
	return total
}
