package models

// SearchRequest is the company search query.
type SearchRequest struct {
	Query string `query:"q" validate:"required,min=1"`
}

// FinancialsRequest narrows a financials fetch.
type FinancialsRequest struct {
	Concepts string `query:"concepts"`
	From     string `query:"from"`
	To       string `query:"to"`
	Form     string `query:"form"`
	Limit    int    `query:"limit" validate:"gte=0" default:"0"`
}

// LatestMetricsRequest selects concepts for a latest-metrics fetch.
type LatestMetricsRequest struct {
	Concepts string `query:"concepts" validate:"required"`
}

// PeersRequest caps peer aggregation.
type PeersRequest struct {
	Limit int `query:"limit" validate:"gte=0" default:"10"`
}
