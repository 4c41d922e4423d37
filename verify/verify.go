// Package verify implements the reconciliation checks over a result summary:
// the gate evaluated before the 7501 PDF is generated, and the informational
// reconciliation evaluated after it.
package verify

import (
	"fmt"
	"math"

	"github.com/fteops/dutyrecon/common"
	"github.com/fteops/dutyrecon/models"
)

// Tolerance is the maximum accepted difference between duty amounts.
const Tolerance = 0.01

// withinTolerance reports whether two amounts differ by at most Tolerance.
// A tiny slack absorbs binary floating-point error, so a one-cent difference
// such as 9000.00 against 9000.01 is within tolerance.
func withinTolerance(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance+1e-9
}

// PrePDFGate checks that the summary is internally consistent enough to spend
// a PDF generation on it: all four house counts agree, no entries were
// rejected, and the AMS and report duties match within tolerance. It is a
// total function; missing or non-numeric values are treated as zero.
func PrePDFGate(s models.Summary) (bool, []string) {
	amsHAWBs := common.ParseCurrency(s.Get(models.KeyAMSTotalHAWBs))
	houses7501 := common.ParseCurrency(s.Get(models.Key7501TotalHouses))
	reportHouses := common.ParseCurrency(s.Get(models.KeyReportTotalHouse))
	checkbook := common.ParseCurrency(s.Get(models.KeyCheckbookHAWBs))
	rejected := common.ParseCurrency(s.Get(models.KeyRejectedEntries))
	amsDuty := common.ParseCurrency(s.Get(models.KeyAMSDuty))
	reportDuty := common.ParseCurrency(s.Get(models.KeyReportDuty))

	var issues []string

	if !(amsHAWBs == houses7501 && houses7501 == reportHouses && reportHouses == checkbook) {
		issues = append(issues, fmt.Sprintf(
			"houses mismatch (AMS: %.0f, 7501: %.0f, Report: %.0f, Checkbook: %.0f)",
			amsHAWBs, houses7501, reportHouses, checkbook))
	}
	if rejected != 0 {
		issues = append(issues, fmt.Sprintf("rejected entries: %.0f", rejected))
	}
	if !withinTolerance(amsDuty, reportDuty) {
		issues = append(issues, fmt.Sprintf(
			"duty mismatch (AMS: $%.2f, Report: $%.2f)", amsDuty, reportDuty))
	}

	return len(issues) == 0, issues
}

// PostPDFReconcile compares the PDF-derived figures against the AMS and report
// figures. Failures are informational only; the pipeline logs them and keeps
// the result.
func PostPDFReconcile(s models.Summary) (bool, []string) {
	amsDuty := common.ParseCurrency(s.Get(models.KeyAMSDuty))
	reportDuty := common.ParseCurrency(s.Get(models.KeyReportDuty))
	duty7501 := common.ParseCurrency(s.Get(models.Key7501Duty))
	amsT11 := common.ParseCurrency(s.Get(models.KeyAMSTotalT11))
	t117501 := common.ParseCurrency(s.Get(models.Key7501TotalT11))

	var issues []string

	dutiesMatch := withinTolerance(amsDuty, reportDuty) &&
		withinTolerance(amsDuty, duty7501) &&
		withinTolerance(reportDuty, duty7501)
	if !dutiesMatch {
		issues = append(issues, fmt.Sprintf(
			"duty mismatch (AMS: $%.2f, Report: $%.2f, 7501: $%.2f)",
			amsDuty, reportDuty, duty7501))
	}
	if amsT11 != t117501 {
		issues = append(issues, fmt.Sprintf(
			"T-11 mismatch (AMS: %.0f, 7501: %.0f)", amsT11, t117501))
	}

	return len(issues) == 0, issues
}
