// Package pipeline runs the per-MAWB processing sequence: session
// acquisition, AMS lookup, entries index, Custom Report, verification, and
// the 7501 batch PDF, accumulating a fixed-key summary and persisting exactly
// one result per item.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fteops/dutyrecon/models"
	"github.com/fteops/dutyrecon/pdfproc"
	"github.com/fteops/dutyrecon/portal"
	"github.com/fteops/dutyrecon/report"
	"github.com/fteops/dutyrecon/session"
	"github.com/fteops/dutyrecon/verify"
)

// ArtifactStore is the slice of the storage gateway the pipeline needs.
type ArtifactStore interface {
	UploadBytes(ctx context.Context, key, contentType string, content []byte) error
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	ExcelKey(mawb, airportCode, customer, templateName string) string
	PDFKey(mawb, airportCode, customer string) string
}

// ResultStore persists pipeline outcomes.
type ResultStore interface {
	Upsert(ctx context.Context, rec *models.Result) error
}

// SessionSource produces authenticated session states per broker.
type SessionSource interface {
	AcquireSession(ctx context.Context, broker models.Broker) (*models.SessionState, error)
}

// Callbacks surface progress and log lines to the caller. Either may be nil.
type Callbacks struct {
	OnLog      func(message string)
	OnProgress func(message string, fraction float64)
}

func (cb Callbacks) log(msg string) {
	if cb.OnLog != nil {
		cb.OnLog(msg)
	}
}

func (cb Callbacks) progress(msg string, fraction float64) {
	if cb.OnProgress != nil {
		cb.OnProgress(msg, fraction)
	}
}

// Runner executes the per-MAWB pipeline.
type Runner struct {
	Sessions  SessionSource
	Artifacts ArtifactStore
	Results   ResultStore
	PDF       *pdfproc.Processor
	BaseURL   string
	TempDir   string
	Log       logrus.FieldLogger
	Now       func() time.Time
}

// NewRunner wires a Runner with defaults filled in.
func NewRunner(sessions SessionSource, artifacts ArtifactStore, results ResultStore, pdf *pdfproc.Processor, baseURL string, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		Sessions:  sessions,
		Artifacts: artifacts,
		Results:   results,
		PDF:       pdf,
		BaseURL:   baseURL,
		TempDir:   os.TempDir(),
		Log:       log,
		Now:       time.Now,
	}
}

// ProcessMAWB runs every enabled stage for one batch item and upserts the
// result. It always returns a result: stage failures degrade the summary,
// only login failure and portal-semantic absences mark the result failed.
func (r *Runner) ProcessMAWB(ctx context.Context, item models.BatchItem, broker models.Broker, format models.Format, sections models.Sections, cb Callbacks) *models.Result {
	log := r.Log.WithFields(logrus.Fields{"mawb": item.MAWB, "broker_id": broker.ID})
	summary := models.NewSummary(item.MAWB, item.CheckbookHAWBs)

	result := &models.Result{
		MAWB:         item.MAWB,
		BrokerID:     broker.ID.String(),
		FormatID:     format.ID.String(),
		Status:       models.StatusSuccess,
		AirportCode:  item.AirportCode,
		Customer:     item.Customer,
		TemplateName: format.Name,
	}

	cb.progress("Acquiring session", 0.05)
	state, err := r.Sessions.AcquireSession(ctx, broker)
	if err != nil {
		log.WithError(err).Error("session acquisition failed")
		cb.log(fmt.Sprintf("Login failed: %v", err))
		return r.finish(ctx, result, summary, models.StatusFailed, err.Error(), log)
	}

	jar, err := session.Jar(state, r.BaseURL)
	if err != nil {
		log.WithError(err).Error("failed to build cookie jar")
		return r.finish(ctx, result, summary, models.StatusFailed, err.Error(), log)
	}
	client := r.newPortalClient(jar)

	// AMS stage: the only stage whose absence short-circuits everything.
	if sections.AMS {
		cb.progress("AMS lookup", 0.2)
		var ams *portal.AMSResult
		err := r.runStage(log, "ams", func() error {
			var stageErr error
			ams, stageErr = client.AMSLookup(ctx, item.MAWB)
			return stageErr
		})
		if errors.Is(err, portal.ErrMasterNotFound) {
			cb.log("Master not found")
			return r.finish(ctx, result, summary, models.StatusFailed, "Master not found", log)
		}
		if err == nil && ams != nil {
			summary[models.KeyAMSTotalHAWBs] = ams.TotalHAWBs
			summary[models.KeyAMSDuty] = ams.Duty
			summary[models.KeyAMSTotalT11] = ams.T11Entries
			summary[models.KeyAMSAccepted] = ams.EntriesAccepted
			summary[models.KeyRejectedEntries] = ams.RejectedEntries
			summary[models.Key7501TotalHouses] = ams.Houses7501
			cb.log(fmt.Sprintf("AMS: %s HAWBs, duty %s", ams.TotalHAWBs, ams.Duty))
		}
	}

	// Entries stage feeds its own summary fields plus the inputs of the
	// Custom Report and PDF stages.
	var entries *portal.EntriesResult
	entriesNotFound := false
	if sections.Entries || sections.Custom || sections.Download7501PDF {
		cb.progress("Entries index", 0.4)
		err := r.runStage(log, "entries", func() error {
			var stageErr error
			entries, stageErr = client.EntriesSearch(ctx, item.MAWB)
			return stageErr
		})
		if errors.Is(err, portal.ErrEntriesNotFound) {
			entriesNotFound = true
			cb.log("Entries not found")
		} else if err == nil && entries != nil && entries.HasOldest {
			summary[models.KeyEntryDate] = entries.OldestEntry.Format("01/02/06")
		}
	}

	if sections.Custom {
		switch {
		case entriesNotFound:
			cb.log("Custom report skipped: entries not found")
		case entries == nil || !entries.HasOldest:
			cb.log("Custom report skipped: no oldest entry date available")
		default:
			cb.progress("Custom report", 0.6)
			oldest := entries.OldestEntry
			r.runStage(log, "custom", func() error {
				return r.customReportStage(ctx, client, item, format, oldest, summary, result, cb)
			})
		}
	}

	if sections.Download7501PDF {
		switch {
		case entriesNotFound:
			cb.log("PDF download skipped: entries not found")
		case entries == nil || len(entries.Rows) == 0:
			cb.log("PDF download skipped: no entry rows available")
		default:
			cb.progress("7501 batch PDF", 0.8)
			r.runStage(log, "download_7501_pdf", func() error {
				return r.pdfStage(ctx, client, item, entries, sections, summary, result, cb)
			})
		}
	} else if sections.Entries && entries != nil && len(entries.Rows) > 0 {
		// Diagnostic sweep in place of the PDF figures: sum the per-entry
		// duty from the detail pages in bounded batches.
		r.runStage(log, "entry_details", func() error {
			total, failed := client.FetchEntryDetailDuties(ctx, entries.Rows)
			cb.log(fmt.Sprintf("Entry detail duty sweep: $%.2f across %d entries (%d unreadable)", total, len(entries.Rows), failed))
			return nil
		})
	}

	if entriesNotFound {
		return r.finish(ctx, result, summary, models.StatusFailed, "Entries not found", log)
	}
	return r.finish(ctx, result, summary, models.StatusSuccess, "", log)
}

func (r *Runner) newPortalClient(jar http.CookieJar) *portal.Client {
	client := portal.NewClient(r.BaseURL, jar, r.Log)
	client.SetTempDir(r.TempDir)
	if r.Now != nil {
		client.SetNow(r.Now)
	}
	return client
}

// runStage executes one stage inside a recovery boundary. Panics and errors
// are logged; the stage's summary fields simply stay N/A.
func (r *Runner) runStage(log logrus.FieldLogger, name string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage %s panicked: %v", name, rec)
			log.WithField("stage", name).Errorf("stage panic: %v\n%s", rec, debug.Stack())
		}
	}()
	if err = fn(); err != nil {
		log.WithError(err).WithField("stage", name).Warn("stage failed")
	}
	return err
}

// customReportStage downloads and parses the report workbook, merges its
// fields into the summary, and uploads the workbook as an artifact. Upload
// failure is non-fatal: the figures are already extracted.
func (r *Runner) customReportStage(ctx context.Context, client *portal.Client, item models.BatchItem, format models.Format, oldestEntry time.Time, summary models.Summary, result *models.Result, cb Callbacks) error {
	path, err := client.DownloadCustomReport(ctx, item.MAWB, oldestEntry, format.TemplatePayload)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	fields, err := report.Parse(path, format.TemplateIdentifier)
	if err != nil {
		return err
	}
	summary.Merge(fields.Summary())
	cb.log(fmt.Sprintf("Report: duty %s, houses %d", summary.Get(models.KeyReportDuty), fields.TotalHouse))

	content, err := os.ReadFile(path)
	if err != nil {
		r.Log.WithError(err).Warn("failed to re-read report workbook for upload")
		return nil
	}
	key := r.Artifacts.ExcelKey(item.MAWB, item.AirportCode, item.Customer, format.Name)
	if err := r.Artifacts.UploadBytes(ctx, key, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content); err != nil {
		r.Log.WithError(err).Warn("report workbook upload failed")
		return nil
	}
	result.ArtifactPath = key
	if url, err := r.Artifacts.Presign(ctx, key, 0); err == nil {
		result.ArtifactURL = url
	} else {
		r.Log.WithError(err).Warn("report workbook presign failed")
	}
	return nil
}

// pdfStage gates, downloads, compresses, measures, and uploads the 7501
// batch PDF. A failed gate leaves the PDF URL empty and skips the download.
func (r *Runner) pdfStage(ctx context.Context, client *portal.Client, item models.BatchItem, entries *portal.EntriesResult, sections models.Sections, summary models.Summary, result *models.Result, cb Callbacks) error {
	if sections.AMS && sections.Custom {
		ok, issues := verify.PrePDFGate(summary)
		if !ok {
			for _, issue := range issues {
				cb.log("Pre-PDF verification: " + issue)
			}
			summary[models.Key7501BatchPDFURL] = ""
			cb.log("PDF download skipped: verification failed")
			return nil
		}
		cb.log("Pre-PDF verification passed")
	}

	entryNos := portal.EntryNumbers(entries.Rows)
	if len(entryNos) == 0 {
		return fmt.Errorf("no entry numbers extractable from index rows")
	}

	pdfBytes, err := client.Download7501Batch(ctx, entryNos)
	if err != nil {
		return err
	}

	originalPath := filepath.Join(r.TempDir, item.MAWB+"_7501_batch_original.pdf")
	finalPath := filepath.Join(r.TempDir, item.MAWB+"_7501_batch.pdf")
	if err := os.WriteFile(originalPath, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("failed to save 7501 PDF: %w", err)
	}
	defer os.Remove(originalPath)
	defer os.Remove(finalPath)

	if err := r.PDF.Compress(ctx, originalPath, finalPath); err != nil {
		r.Log.WithError(err).Warn("PDF compression failed, keeping original")
		finalPath = originalPath
	}

	entryCount, totalDuty, err := r.PDF.ExtractSummary(finalPath)
	if err != nil {
		r.Log.WithError(err).Warn("PDF extraction failed")
	} else {
		summary[models.Key7501TotalT11] = fmt.Sprintf("%d", entryCount)
		summary[models.Key7501Duty] = fmt.Sprintf("%.2f", totalDuty)
		if entryCount == 0 {
			cb.log("Warning: no entries extracted from PDF")
		}
		if totalDuty == 0 {
			cb.log("Warning: no duty extracted from PDF")
		}
	}

	content, err := os.ReadFile(finalPath)
	if err != nil {
		return fmt.Errorf("failed to read processed PDF: %w", err)
	}
	key := r.Artifacts.PDFKey(item.MAWB, item.AirportCode, item.Customer)
	if err := r.Artifacts.UploadBytes(ctx, key, "application/pdf", content); err != nil {
		r.Log.WithError(err).Warn("PDF upload failed")
		summary[models.Key7501BatchPDFURL] = ""
		return nil
	}
	result.PDFPath = key
	if url, err := r.Artifacts.Presign(ctx, key, 0); err == nil {
		summary[models.Key7501BatchPDFURL] = url
		result.PDFURL = url
	} else {
		r.Log.WithError(err).Warn("PDF presign failed")
		summary[models.Key7501BatchPDFURL] = ""
	}

	if sections.AMS && sections.Custom {
		if ok, issues := verify.PostPDFReconcile(summary); !ok {
			for _, issue := range issues {
				cb.log("Post-PDF reconciliation: " + issue)
			}
		} else {
			cb.log("Post-PDF reconciliation passed")
		}
	}
	return nil
}

// finish stamps the outcome, attaches the summary, and upserts the result.
func (r *Runner) finish(ctx context.Context, result *models.Result, summary models.Summary, status, errorMessage string, log logrus.FieldLogger) *models.Result {
	result.Status = status
	result.ErrorMessage = errorMessage
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	result.CompletedAt = &now
	if err := result.SetSummary(summary); err != nil {
		log.WithError(err).Error("failed to encode summary")
	}
	if err := r.Results.Upsert(ctx, result); err != nil {
		log.WithError(err).Error("failed to persist result")
	}
	return result
}
