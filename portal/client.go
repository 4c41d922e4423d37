// Package portal implements the customs brokerage portal protocols over
// plain HTTP with a shared authenticated cookie jar: AMS master lookup, the
// entries index, Custom Report download, entry detail sweeps, and 7501 batch
// PDF generation. Login is handled separately by the session manager; this
// package assumes the jar it is given is already authenticated.
package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fteops/dutyrecon/common"
)

// DefaultBaseURL is the production portal host. Tests point the client at an
// httptest server instead.
const DefaultBaseURL = "https://www.netchb.com"

// Portal paths shared with the session manager.
const (
	LoginPath          = "/security/"
	AMSIndexPath       = "/app/ams/index.jsp"
	amsSearchPath      = "/app/ams/viewMawbs.do"
	entriesIndexPath   = "/app/entry/index.jsp"
	entriesSearchPath  = "/app/entry/processViewEntries.do"
	entryDetailPath    = "/app/entry/viewEntry.do"
	customReportPage   = "/app/entry/customizableReport.jsp"
	customReportPath   = "/app/entry/downloadCustomizableReport.do"
	pdfBatchPath       = "/app/entry/7501_Batch.pdf"
)

// UserAgent is sent on every portal request.
const UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 18_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.5 Mobile/15E148 Safari/604.1"

// Per-call timeouts.
const (
	AMSSearchTimeout    = 60 * time.Second
	AMSDetailTimeout    = 60 * time.Second
	EntriesTimeout      = 60 * time.Second
	EntryDetailTimeout  = 120 * time.Second
	CustomReportTimeout = 300 * time.Second
	PDFTimeout          = 600 * time.Second
)

// Client drives the portal protocols over one cookie jar. All calls share the
// same retry policy: up to three attempts with 0.5s doubling backoff on
// connection resets, timeouts, and 5xx responses, with the underlying HTTP
// client re-created after connection errors.
type Client struct {
	baseURL    string
	jar        http.CookieJar
	httpClient *http.Client
	log        logrus.FieldLogger
	now        func() time.Time
	tempDir    string
}

// NewClient builds a portal client for baseURL using an authenticated jar.
func NewClient(baseURL string, jar http.CookieJar, log logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		jar:        jar,
		httpClient: &http.Client{Jar: jar},
		log:        log,
		now:        time.Now,
	}
}

// SetNow overrides the clock, used by date-window tests.
func (c *Client) SetNow(now func() time.Time) { c.now = now }

// SetTempDir overrides the directory downloads are saved into.
func (c *Client) SetTempDir(dir string) { c.tempDir = dir }

// BaseURL returns the configured portal host.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return c.baseURL + href
	}
	return c.baseURL + "/" + href
}

// recreateHTTPClient replaces the transport after a connection error; the jar
// and its session cookies are preserved.
func (c *Client) recreateHTTPClient() {
	c.httpClient = &http.Client{Jar: c.jar}
	c.log.Warn("portal HTTP client re-created after connection error")
}

type requestSpec struct {
	method  string
	url     string
	form    url.Values
	referer string
	timeout time.Duration
}

// do executes one portal request with the shared retry policy and returns the
// response body and content type.
func (c *Client) do(ctx context.Context, spec requestSpec) ([]byte, string, error) {
	var body []byte
	var contentType string

	err := common.Retry(ctx, common.RetryConfig{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		Retryable: common.IsTransientError,
		OnRetry: func(attempt int, err error) {
			c.log.WithError(err).WithFields(logrus.Fields{
				"url": spec.url, "attempt": attempt,
			}).Warn("retrying portal request")
			if common.IsConnectionError(err) {
				c.recreateHTTPClient()
			}
		},
	}, func() error {
		rctx, cancel := context.WithTimeout(ctx, spec.timeout)
		defer cancel()

		var reader io.Reader
		if spec.form != nil {
			reader = strings.NewReader(spec.form.Encode())
		}
		req, err := http.NewRequestWithContext(rctx, spec.method, spec.url, reader)
		if err != nil {
			return fmt.Errorf("failed to build portal request: %w", err)
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Origin", c.baseURL)
		if spec.referer != "" {
			req.Header.Set("Referer", spec.referer)
		}
		if spec.form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("portal request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read portal response: %w", err)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("portal returned status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("portal rejected request: HTTP %d", resp.StatusCode)
		}

		body = data
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

// postForm issues a form POST to a portal path.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, referer string, timeout time.Duration) ([]byte, string, error) {
	return c.do(ctx, requestSpec{
		method:  http.MethodPost,
		url:     c.baseURL + path,
		form:    form,
		referer: referer,
		timeout: timeout,
	})
}

// get issues a GET to an absolute portal URL.
func (c *Client) get(ctx context.Context, rawURL, referer string, timeout time.Duration) ([]byte, string, error) {
	return c.do(ctx, requestSpec{
		method:  http.MethodGet,
		url:     rawURL,
		referer: referer,
		timeout: timeout,
	})
}
