package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fteops/dutyrecon/models"
)

func matchedSummary() models.Summary {
	s := models.NewSummary("23594731221", "4250")
	s[models.KeyAMSTotalHAWBs] = "4250"
	s[models.Key7501TotalHouses] = "4250"
	s[models.KeyReportTotalHouse] = "4250"
	s[models.KeyRejectedEntries] = "0"
	s[models.KeyAMSDuty] = "$9,000.00"
	s[models.KeyReportDuty] = "9000.00"
	return s
}

func TestPrePDFGatePasses(t *testing.T) {
	ok, issues := PrePDFGate(matchedSummary())
	assert.True(t, ok)
	assert.Empty(t, issues)
}

func TestPrePDFGateHouseMismatch(t *testing.T) {
	s := matchedSummary()
	s[models.KeyReportTotalHouse] = "4249"
	ok, issues := PrePDFGate(s)
	assert.False(t, ok)
	assert.Len(t, issues, 1)
	assert.Contains(t, issues[0], "houses mismatch")
}

func TestPrePDFGateRejectedEntries(t *testing.T) {
	s := matchedSummary()
	s[models.KeyRejectedEntries] = "2"
	ok, issues := PrePDFGate(s)
	assert.False(t, ok)
	assert.Contains(t, issues[0], "rejected entries")
}

func TestPrePDFGateDutyTolerance(t *testing.T) {
	s := matchedSummary()
	s[models.KeyReportDuty] = "9000.01"
	ok, _ := PrePDFGate(s)
	assert.True(t, ok, "one cent difference is within tolerance")

	s[models.KeyReportDuty] = "9000.02"
	ok, issues := PrePDFGate(s)
	assert.False(t, ok)
	assert.Contains(t, issues[0], "duty mismatch")
}

func TestPrePDFGateUnparseableCheckbookIsZero(t *testing.T) {
	s := matchedSummary()
	s[models.KeyCheckbookHAWBs] = "approx 4250"
	ok, issues := PrePDFGate(s)
	assert.False(t, ok)
	assert.Contains(t, issues[0], "Checkbook: 0")
}

func TestPostPDFReconcilePasses(t *testing.T) {
	s := matchedSummary()
	s[models.Key7501Duty] = "9000.00"
	s[models.KeyAMSTotalT11] = "3"
	s[models.Key7501TotalT11] = "3"
	ok, issues := PostPDFReconcile(s)
	assert.True(t, ok)
	assert.Empty(t, issues)
}

func TestPostPDFReconcileIssues(t *testing.T) {
	s := matchedSummary()
	s[models.Key7501Duty] = "8999.00"
	s[models.KeyAMSTotalT11] = "3"
	s[models.Key7501TotalT11] = "2"
	ok, issues := PostPDFReconcile(s)
	assert.False(t, ok)
	assert.Len(t, issues, 2)
}
