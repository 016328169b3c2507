package models

import "strings"

// Column names of the trees table used by filters and aggregations.
const (
	FieldID       = "id"
	FieldSpecies  = "species"
	FieldLatin    = "species_latin"
	FieldDiameter = "diameter"
	FieldStreet   = "street"
	FieldDistrict = "district"
	FieldLon      = "lon"
	FieldLat      = "lat"
)

// defaultAddress is shown when a tree has neither street nor district.
const defaultAddress = "Berlin"

// Point is a WGS84 position.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Polygon is a closed ring of points. The closing point may be omitted.
type Polygon struct {
	Ring []Point `json:"ring"`
}

// TreeFeature is a single tree with geometry and attributes.
type TreeFeature struct {
	ID       int64   `json:"id"`
	Species  string  `json:"species"`
	Latin    string  `json:"species_latin,omitempty"`
	Diameter float64 `json:"diameter"`
	Street   string  `json:"street,omitempty"`
	District string  `json:"district,omitempty"`
	Location Point   `json:"location"`
}

// Address joins street and district, falling back to the city name.
func (t TreeFeature) Address() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(t.Street); s != "" {
		parts = append(parts, s)
	}
	if d := strings.TrimSpace(t.District); d != "" {
		parts = append(parts, d)
	}
	if len(parts) == 0 {
		return defaultAddress
	}
	return strings.Join(parts, ", ")
}

// CategoryCount is a species name with the number of matching trees.
type CategoryCount struct {
	Name  string `json:"name"`
	Latin string `json:"latin,omitempty"`
	Count int64  `json:"count"`
}
