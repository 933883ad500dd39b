package models

import "time"

// CompanyMetadata describes one company as reported by a provider.
// CIK is the canonical zero-padded regulatory identifier; providers
// that do not carry a CIK leave it empty and identity falls back to
// the ticker.
type CompanyMetadata struct {
	CIK           string     `json:"cik"`
	Ticker        string     `json:"ticker"`
	Name          string     `json:"name"`
	SIC           string     `json:"sic,omitempty"`
	FiscalYearEnd string     `json:"fiscal_year_end,omitempty"`
	Sector        string     `json:"sector,omitempty"`
	Industry      string     `json:"industry,omitempty"`
	Exchange      string     `json:"exchange,omitempty"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
}

// IdentityKey returns the key used for merge deduplication: the CIK
// when present, otherwise the ticker.
func (c CompanyMetadata) IdentityKey() string {
	if c.CIK != "" {
		return c.CIK
	}
	return c.Ticker
}

// PeerCompany is one entry of a peer-comparison set.
type PeerCompany struct {
	CIK        string   `json:"cik,omitempty"`
	Ticker     string   `json:"ticker"`
	Name       string   `json:"name"`
	MarketCap  *float64 `json:"market_cap,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"` // in [0,1]
}

// IdentityKey mirrors CompanyMetadata.IdentityKey for peer dedup.
func (p PeerCompany) IdentityKey() string {
	if p.CIK != "" {
		return p.CIK
	}
	return p.Ticker
}
