package pipeline

import (
	"context"

	"street_trees/internal/models"
)

// DatasetSource executes filtered aggregate queries over the tree dataset.
type DatasetSource interface {
	Query(ctx context.Context, p models.Predicate, spec models.AggregationSpec) (models.QueryResult, error)
	QueryHistogram(ctx context.Context, p models.Predicate, field string, binCount int, min, max float64) ([]models.HistogramBin, error)
}

// MapSurface renders the selection region and the dim effect for
// non-matching features.
type MapSurface interface {
	SetDimEffect(p models.Predicate)
	SetHighlightRegion(region *models.Polygon)
}

// Controls is the part of the widget layer the animation toggles.
type Controls interface {
	SetCategoryListEnabled(enabled bool)
	SetResetEnabled(enabled bool)
	FocusMap()
}
