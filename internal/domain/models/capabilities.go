package models

// Capabilities describes what one provider can serve. The set is
// fixed at adapter construction and never mutated.
type Capabilities struct {
	CompanyFacts  bool `json:"company_facts"`   // hierarchical regulatory filing data
	RealTimePrice bool `json:"real_time_price"` // live quotes
	PeerData      bool `json:"peer_data"`       // peer comparison sets
	RatioData     bool `json:"ratio_data"`      // precomputed financial ratios
	HistoryYears  int  `json:"history_years"`   // maximum lookback span
}

// Capability identifies one boolean capability flag for lookups.
type Capability string

const (
	CapCompanyFacts  Capability = "company_facts"
	CapRealTimePrice Capability = "real_time_price"
	CapPeerData      Capability = "peer_data"
	CapRatioData     Capability = "ratio_data"
)

// Has reports whether the named boolean flag is set.
func (c Capabilities) Has(flag Capability) bool {
	switch flag {
	case CapCompanyFacts:
		return c.CompanyFacts
	case CapRealTimePrice:
		return c.RealTimePrice
	case CapPeerData:
		return c.PeerData
	case CapRatioData:
		return c.RatioData
	}
	return false
}

// Merge folds another provider's capabilities into this set: boolean
// flags are ORed, numeric flags take the maximum.
func (c Capabilities) Merge(o Capabilities) Capabilities {
	out := Capabilities{
		CompanyFacts:  c.CompanyFacts || o.CompanyFacts,
		RealTimePrice: c.RealTimePrice || o.RealTimePrice,
		PeerData:      c.PeerData || o.PeerData,
		RatioData:     c.RatioData || o.RatioData,
		HistoryYears:  c.HistoryYears,
	}
	if o.HistoryYears > out.HistoryYears {
		out.HistoryYears = o.HistoryYears
	}
	return out
}
