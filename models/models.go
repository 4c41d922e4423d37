// Package models defines the core data types shared across the duty
// reconciliation services: batch input items, broker credentials, report
// format templates, persisted results, and browser session snapshots.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NormalizeMAWB extracts the digits from a raw MAWB value and validates that
// exactly 11 remain. Separators ("235-94731221") and surrounding noise are
// tolerated.
func NormalizeMAWB(raw string) (string, error) {
	var b strings.Builder
	for _, ch := range raw {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	digits := b.String()
	if len(digits) != 11 {
		return "", fmt.Errorf("MAWB %q must contain exactly 11 digits, found %d", raw, len(digits))
	}
	return digits, nil
}

// FormatMAWB renders a normalized 11-digit MAWB as XXX-XXXXXXXX. Values that
// are not 11 digits are returned unchanged.
func FormatMAWB(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return digits[:3] + "-" + digits[3:]
}

// BatchItem is one unit of work produced by the input parser. It is immutable
// once created; broker and format IDs are injected by the caller before the
// orchestrator runs.
type BatchItem struct {
	MAWB           string
	AirportCode    string
	Customer       string
	CheckbookHAWBs string
	BrokerID       uuid.UUID
	FormatID       uuid.UUID
}

// Sections selects which pipeline stages run for a batch.
type Sections struct {
	AMS             bool `json:"ams" yaml:"ams"`
	Entries         bool `json:"entries" yaml:"entries"`
	Custom          bool `json:"custom" yaml:"custom"`
	Download7501PDF bool `json:"download_7501_pdf" yaml:"download_7501_pdf"`
}

// AllSections enables every stage.
func AllSections() Sections {
	return Sections{AMS: true, Entries: true, Custom: true, Download7501PDF: true}
}

// Broker holds portal credentials. Read-only to the processing core.
type Broker struct {
	ID           uuid.UUID `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Username     string    `json:"username" yaml:"username"`
	Password     string    `json:"password" yaml:"password"`
	AuthRequired bool      `json:"auth_required" yaml:"auth_required"`
	OTPURI       string    `json:"otp_uri,omitempty" yaml:"otp_uri"`
	IsActive     bool      `json:"is_active" yaml:"is_active"`
}

// Validate checks the invariants the catalog guarantees for active brokers.
func (b Broker) Validate() error {
	if b.Username == "" || b.Password == "" {
		return fmt.Errorf("broker %s: username and password are required", b.ID)
	}
	if b.OTPURI != "" && !strings.HasPrefix(b.OTPURI, "otpauth://totp/") {
		return fmt.Errorf("broker %s: OTP URI must start with otpauth://totp/", b.ID)
	}
	if b.AuthRequired && b.OTPURI == "" {
		return fmt.Errorf("broker %s: OTP URI is required when authentication is enabled", b.ID)
	}
	return nil
}

// TemplatePayload is the stored Custom Report form configuration. The list
// fields are serialized as repeated form keys; DefaultValues is merged into
// the POST body verbatim.
type TemplatePayload struct {
	HeaderFields   []string          `json:"headerFields" yaml:"headerFields"`
	ManifestFields []string          `json:"manifestFields" yaml:"manifestFields"`
	InvoiceFields  []string          `json:"invoiceFields,omitempty" yaml:"invoiceFields"`
	LineFields     []string          `json:"lineFields,omitempty" yaml:"lineFields"`
	TariffFields   []string          `json:"tariffFields,omitempty" yaml:"tariffFields"`
	DefaultValues  map[string]string `json:"defaultValues" yaml:"defaultValues"`
}

// Format drives the Custom Report request body and the spreadsheet dialect.
type Format struct {
	ID                 uuid.UUID       `json:"id" yaml:"id"`
	Name               string          `json:"name" yaml:"name"`
	TemplateIdentifier string          `json:"template_identifier" yaml:"template_identifier"`
	TemplatePayload    TemplatePayload `json:"template_payload" yaml:"template_payload"`
	IsActive           bool            `json:"is_active" yaml:"is_active"`
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Result is the persisted outcome of one pipeline run, upserted on the
// (mawb, broker_id, format_id) key.
type Result struct {
	gorm.Model
	MAWB         string `gorm:"column:mawb;size:11;uniqueIndex:idx_results_key"`
	BrokerID     string `gorm:"size:36;uniqueIndex:idx_results_key"`
	FormatID     string `gorm:"size:36;uniqueIndex:idx_results_key"`
	Status       string `gorm:"size:16"`
	Summary      []byte `gorm:"type:text"`
	ArtifactPath string
	ArtifactURL  string
	PDFPath      string
	PDFURL       string
	ErrorMessage string
	AirportCode  string
	Customer     string
	TemplateName string
	CompletedAt  *time.Time
}

// TableName keeps the table name stable regardless of pluralization settings.
func (Result) TableName() string { return "duty_results" }

// SetSummary stores the summary map as JSON.
func (r *Result) SetSummary(s Summary) error {
	data, err := json.Marshal(map[string]string(s))
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	r.Summary = data
	return nil
}

// GetSummary decodes the stored summary JSON; a missing summary yields nil.
func (r *Result) GetSummary() (Summary, error) {
	if len(r.Summary) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(r.Summary, &m); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return Summary(m), nil
}

// SessionCookie mirrors the browser cookie snapshot persisted per broker.
// Expires is a Unix timestamp in seconds; session-only cookies carry -1.
type SessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// SessionState is a per-broker browser state snapshot. CalculatedExpiry is
// min{c.Expires | c.Expires > now} across cookies at save time, or nil when
// only session cookies exist.
type SessionState struct {
	Cookies          []SessionCookie   `json:"cookies"`
	Origins          []json.RawMessage `json:"origins,omitempty"`
	CalculatedExpiry *float64          `json:"_calculated_expiry,omitempty"`
}

// ComputeExpiry recalculates CalculatedExpiry from the cookie set.
func (s *SessionState) ComputeExpiry(now time.Time) {
	nowTS := float64(now.Unix())
	var earliest *float64
	for _, c := range s.Cookies {
		if c.Expires > 0 && c.Expires > nowTS {
			e := c.Expires
			if earliest == nil || e < *earliest {
				earliest = &e
			}
		}
	}
	s.CalculatedExpiry = earliest
}

// Expired reports whether the saved expiry hint is in the past. States without
// a hint are never considered expired here; the HTTP probe decides.
func (s *SessionState) Expired(now time.Time) bool {
	return s.CalculatedExpiry != nil && *s.CalculatedExpiry <= float64(now.Unix())
}
