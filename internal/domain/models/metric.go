package models

import (
	"fmt"
	"time"
)

// FinancialMetric is one normalized financial fact. Concept is the
// canonical provider-agnostic name (e.g. "Revenue"), never an upstream
// field name. Within one company's result set a metric is uniquely
// addressed by (Concept, FiscalYear, FiscalPeriod).
type FinancialMetric struct {
	Concept      string     `json:"concept"`
	Value        float64    `json:"value"`
	Unit         string     `json:"unit"`
	PeriodEnd    time.Time  `json:"period_end"`
	PeriodStart  *time.Time `json:"period_start,omitempty"` // duration concepts only
	Instant      bool       `json:"instant"`
	FiscalYear   int        `json:"fiscal_year"`
	FiscalPeriod string     `json:"fiscal_period"` // FY, Q1..Q4, TTM
	AccessionNo  string     `json:"accession_no,omitempty"`
	Form         string     `json:"form,omitempty"`
	FiledAt      *time.Time `json:"filed_at,omitempty"`
}

// Key addresses a metric within one company's result set.
func (m FinancialMetric) Key() string {
	return fmt.Sprintf("%s|%d|%s", m.Concept, m.FiscalYear, m.FiscalPeriod)
}

// FinancialData aggregates one company's metadata with its normalized
// metrics. Instances are created fresh per request and never mutated
// after construction.
type FinancialData struct {
	Company     CompanyMetadata   `json:"company"`
	Metrics     []FinancialMetric `json:"metrics"`
	LastUpdated time.Time         `json:"last_updated"`
	Source      string            `json:"source"`
}

// Quote is a point-in-time price observation from a realtime-capable
// provider.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	Change    float64   `json:"change,omitempty"`
	ChangePct float64   `json:"change_pct,omitempty"`
	High      float64   `json:"high,omitempty"`
	Low       float64   `json:"low,omitempty"`
	Open      float64   `json:"open,omitempty"`
	PrevClose float64   `json:"prev_close,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}
