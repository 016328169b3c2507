package models

// Dimension names one of the three filter dimensions.
type Dimension string

const (
	DimensionCategory Dimension = "category"
	DimensionRange    Dimension = "range"
	DimensionRegion   Dimension = "region"
	DimensionAll      Dimension = "all"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FilterSnapshot is an immutable copy of the filter state.
type FilterSnapshot struct {
	Category *string  `json:"category,omitempty"`
	Range    Range    `json:"range"`
	Region   *Polygon `json:"region,omitempty"`
}

// FilterChange is the payload of a filter-change notification.
type FilterChange struct {
	Dimension Dimension      `json:"dimension"`
	Snapshot  FilterSnapshot `json:"snapshot"`
}
