// Package batch schedules batch items through the per-MAWB pipeline, one at
// a time. The portal session and the browser-driven login are not safely
// re-entrant, and per-item cost dominates, so the orchestrator is strictly
// sequential: it deduplicates the input, streams progress and log events,
// tolerates per-item failure, and returns results in input order.
package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fteops/dutyrecon/models"
	"github.com/fteops/dutyrecon/pipeline"
)

// PipelineRunner is the per-item processing engine.
type PipelineRunner interface {
	ProcessMAWB(ctx context.Context, item models.BatchItem, broker models.Broker, format models.Format, sections models.Sections, cb pipeline.Callbacks) *models.Result
}

// Catalog resolves broker and format records by ID.
type Catalog interface {
	Broker(id uuid.UUID) (models.Broker, error)
	Format(id uuid.UUID) (models.Format, error)
}

// Orchestrator runs a batch sequentially.
type Orchestrator struct {
	Runner  PipelineRunner
	Catalog Catalog
	Log     logrus.FieldLogger

	// OnProgress receives the overall percentage, OnLog per-item log lines.
	// Either may be nil.
	OnProgress func(message string, percent int)
	OnLog      func(message string)
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(runner PipelineRunner, catalog Catalog, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{Runner: runner, Catalog: catalog, Log: log}
}

func (o *Orchestrator) emitLog(msg string) {
	if o.OnLog != nil {
		o.OnLog(msg)
	}
}

func (o *Orchestrator) emitProgress(msg string, percent int) {
	if o.OnProgress != nil {
		if percent > 100 {
			percent = 100
		}
		o.OnProgress(msg, percent)
	}
}

// Run processes items in order and returns one result per unique item.
// Cancellation is cooperative and checked between items; an in-flight item
// completes or times out. A failed item never aborts the batch.
func (o *Orchestrator) Run(ctx context.Context, items []models.BatchItem, sections models.Sections) []models.Result {
	unique := dedupe(items)
	if len(unique) < len(items) {
		o.emitLog(fmt.Sprintf("Dropped %d duplicate item(s)", len(items)-len(unique)))
	}

	total := len(unique)
	results := make([]models.Result, 0, total)

	for i, item := range unique {
		select {
		case <-ctx.Done():
			o.emitLog(fmt.Sprintf("Batch cancelled after %d of %d items", i, total))
			return results
		default:
		}

		itemLabel := models.FormatMAWB(item.MAWB)
		o.emitProgress(fmt.Sprintf("Processing %s (%d/%d)", itemLabel, i+1, total), percent(i, 0, total))
		o.emitLog(fmt.Sprintf("Processing MAWB %s", itemLabel))

		result := o.processOne(ctx, i, total, item, sections)
		results = append(results, *result)

		if result.Status == models.StatusSuccess {
			o.emitLog(fmt.Sprintf("Completed %s", itemLabel))
		} else {
			o.emitLog(fmt.Sprintf("Failed %s: %s", itemLabel, result.ErrorMessage))
		}
	}

	o.emitProgress("Batch complete", 100)
	return results
}

func (o *Orchestrator) processOne(ctx context.Context, index, total int, item models.BatchItem, sections models.Sections) *models.Result {
	broker, err := o.Catalog.Broker(item.BrokerID)
	if err != nil {
		o.Log.WithError(err).WithField("mawb", item.MAWB).Error("broker lookup failed")
		return failedResult(item, fmt.Sprintf("broker not found: %v", err))
	}
	format, err := o.Catalog.Format(item.FormatID)
	if err != nil {
		o.Log.WithError(err).WithField("mawb", item.MAWB).Error("format lookup failed")
		return failedResult(item, fmt.Sprintf("format not found: %v", err))
	}

	cb := pipeline.Callbacks{
		OnLog: o.emitLog,
		OnProgress: func(message string, fraction float64) {
			o.emitProgress(message, percent(index, fraction, total))
		},
	}
	return o.Runner.ProcessMAWB(ctx, item, broker, format, sections, cb)
}

// percent computes floor((i + fraction) / total * 100), capped at 100.
func percent(index int, fraction float64, total int) int {
	if total == 0 {
		return 100
	}
	p := int((float64(index) + fraction) / float64(total) * 100)
	if p > 100 {
		return 100
	}
	return p
}

// dedupe drops repeated (mawb, broker, format) triples, keeping first
// occurrences in order.
func dedupe(items []models.BatchItem) []models.BatchItem {
	type key struct {
		mawb   string
		broker uuid.UUID
		format uuid.UUID
	}
	seen := make(map[key]struct{}, len(items))
	out := make([]models.BatchItem, 0, len(items))
	for _, item := range items {
		k := key{item.MAWB, item.BrokerID, item.FormatID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

func failedResult(item models.BatchItem, msg string) *models.Result {
	rec := &models.Result{
		MAWB:         item.MAWB,
		BrokerID:     item.BrokerID.String(),
		FormatID:     item.FormatID.String(),
		Status:       models.StatusFailed,
		ErrorMessage: msg,
		AirportCode:  item.AirportCode,
		Customer:     item.Customer,
	}
	_ = rec.SetSummary(models.NewSummary(item.MAWB, item.CheckbookHAWBs))
	return rec
}
