package portal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Download7501Batch generates and downloads the concatenated 7501 PDF for a
// set of entry numbers. The portal accepts the payload directly, without the
// intermediate form page. Generation is slow for large batches; the call uses
// the extended PDF timeout.
func (c *Client) Download7501Batch(ctx context.Context, entryNos []string) ([]byte, error) {
	if len(entryNos) == 0 {
		return nil, fmt.Errorf("no entry numbers to print")
	}

	form := url.Values{
		"signature":          {""},
		"digitalSignature":   {""},
		"signedDate":         {c.now().Format("010206")},
		"broker":             {"false"},
		"cashier":            {"false"},
		"record":             {"false"},
		"original":           {"false"},
		"multiple":           {"false"},
		"type7501":           {"2"},
		"separateConsignees": {"false"},
		"printPartNumbers":   {"false"},
		"printMfrName":       {"false"},
		"entryNoBlank":       {"false"},
		// Trailing comma is required by the portal.
		"entryNos": {strings.Join(entryNos, ",") + ","},
		"type":     {"6"},
	}

	body, contentType, err := c.postForm(ctx, pdfBatchPath, form, c.baseURL+entriesIndexPath, PDFTimeout)
	if err != nil {
		return nil, fmt.Errorf("7501 batch request failed: %w", err)
	}
	if !strings.Contains(strings.ToLower(contentType), "pdf") {
		return nil, fmt.Errorf("7501 batch returned unexpected content type %q", contentType)
	}
	return body, nil
}
