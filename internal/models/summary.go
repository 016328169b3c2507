package models

// SummaryRecord holds the derived statistics for the active filters.
// All fields are nil when no region is set or nothing matches.
type SummaryRecord struct {
	Extreme *TreeFeature   `json:"extreme,omitempty"`
	Modal   *CategoryCount `json:"modal,omitempty"`
	Average *float64       `json:"average,omitempty"`
}

// IsEmpty reports whether no field is populated.
func (s SummaryRecord) IsEmpty() bool {
	return s.Extreme == nil && s.Modal == nil && s.Average == nil
}

// HistogramBin is one fixed-width interval with its row count.
type HistogramBin struct {
	RangeStart float64 `json:"range_start"`
	RangeEnd   float64 `json:"range_end"`
	Count      int64   `json:"count"`
}

// QueryFailure is the payload of a query-error notification, published
// once per failed recompute.
type QueryFailure struct {
	Component  string `json:"component"`
	Generation uint64 `json:"generation"`
	Message    string `json:"message"`
}
