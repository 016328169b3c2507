package db

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"modernc.org/sqlite"

	"street_trees/internal/models"
)

// PointInPolygonFunc is the SQL name of the region test used by filters:
// point_in_polygon(lon, lat, 'lon lat,lon lat,...') returns 1 or 0.
const PointInPolygonFunc = "point_in_polygon"

// parsed rings keyed by their encoded text; a region is evaluated once per row
const polygonCacheSize = 64

var (
	registerOnce sync.Once
	registerErr  error
	polygons     *lru.Cache[string, models.Polygon]
)

// RegisterFunctions adds the spatial functions to the sqlite driver. Safe to
// call more than once.
func RegisterFunctions() error {
	registerOnce.Do(func() {
		polygons, registerErr = lru.New[string, models.Polygon](polygonCacheSize)
		if registerErr != nil {
			return
		}
		registerErr = sqlite.RegisterDeterministicScalarFunction(PointInPolygonFunc, 3, pointInPolygon)
		if registerErr != nil {
			registerErr = fmt.Errorf("register %s: %w", PointInPolygonFunc, registerErr)
		}
	})
	return registerErr
}

func pointInPolygon(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if args[0] == nil || args[1] == nil {
		return int64(0), nil
	}
	lon, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	lat, err := toFloat(args[1])
	if err != nil {
		return nil, err
	}
	ring, ok := args[2].(string)
	if !ok {
		if b, isBytes := args[2].([]byte); isBytes {
			ring = string(b)
		} else {
			return nil, errors.New("point_in_polygon: ring must be text")
		}
	}

	poly, err := lookupPolygon(ring)
	if err != nil {
		return nil, err
	}
	if poly.Contains(models.Point{Lon: lon, Lat: lat}) {
		return int64(1), nil
	}
	return int64(0), nil
}

func lookupPolygon(ring string) (models.Polygon, error) {
	if p, ok := polygons.Get(ring); ok {
		return p, nil
	}
	p, err := models.ParsePolygon(ring)
	if err != nil {
		return models.Polygon{}, fmt.Errorf("point_in_polygon: %w", err)
	}
	polygons.Add(ring, p)
	return p, nil
}

func toFloat(v driver.Value) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("point_in_polygon: want number, got %T", v)
}
