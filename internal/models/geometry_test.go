package models

import (
	"errors"
	"math"
	"testing"
)

func square() Polygon {
	return Polygon{Ring: []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}
}

func TestPolygonContains(t *testing.T) {
	cases := []struct {
		name string
		pt   Point
		want bool
	}{
		{"center", Point{5, 5}, true},
		{"outside_east", Point{11, 5}, false},
		{"outside_south", Point{5, -1}, false},
		{"near_corner", Point{9.9, 9.9}, true},
	}
	p := square()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Contains(tc.pt); got != tc.want {
				t.Fatalf("Contains(%v)=%v, want %v", tc.pt, got, tc.want)
			}
		})
	}
}

func TestPolygonEncodeParse(t *testing.T) {
	p := Polygon{Ring: []Point{{13.4, 52.5}, {13.5, 52.5}, {13.5, 52.6}}}
	got, err := ParsePolygon(p.Encode())
	if err != nil {
		t.Fatalf("ParsePolygon: %v", err)
	}
	if len(got.Ring) != 3 || got.Ring[2] != p.Ring[2] {
		t.Fatalf("unexpected ring: %+v", got.Ring)
	}

	if _, err := ParsePolygon("1 2,3 4"); !errors.Is(err, ErrInvalidPolygon) {
		t.Fatalf("expected ErrInvalidPolygon for 2-point ring, got %v", err)
	}
	if _, err := ParsePolygon("1 2,x 4,5 6"); err == nil {
		t.Fatalf("expected error for bad number")
	}
}

func TestCircleAround(t *testing.T) {
	center := Point{Lon: 13.4, Lat: 52.5}
	c := CircleAround(center, 1)
	if len(c.Ring) != circleVertices {
		t.Fatalf("got %d vertices", len(c.Ring))
	}
	for i, pt := range c.Ring {
		if d := Haversine(center, pt); math.Abs(d-1) > 0.01 {
			t.Fatalf("vertex %d at %.4f km, want 1 km", i, d)
		}
	}
	if !c.Contains(center) {
		t.Fatalf("circle should contain its center")
	}
}

func TestTreeFeatureAddress(t *testing.T) {
	if got := (TreeFeature{Street: "Unter den Linden", District: "Mitte"}).Address(); got != "Unter den Linden, Mitte" {
		t.Fatalf("got %q", got)
	}
	if got := (TreeFeature{District: "Pankow"}).Address(); got != "Pankow" {
		t.Fatalf("got %q", got)
	}
	if got := (TreeFeature{}).Address(); got != "Berlin" {
		t.Fatalf("got %q", got)
	}
}

func TestPredicateRendering(t *testing.T) {
	var p Predicate
	if p.Where() != TautologyWhere || p.String() != TautologyWhere {
		t.Fatalf("empty predicate should be tautological, got %q", p.Where())
	}
	p = p.And(Clause{Dimension: DimensionCategory, SQL: "species = ?", Args: []any{"O'Brien"}})
	p = p.And(Clause{Dimension: DimensionRange, SQL: "diameter >= ? AND diameter <= ?", Args: []any{50.0, 150.0}})
	if got, want := p.Where(), "(species = ?) AND (diameter >= ? AND diameter <= ?)"; got != want {
		t.Fatalf("Where()=%q, want %q", got, want)
	}
	if got, want := p.String(), "(species = 'O''Brien') AND (diameter >= 50 AND diameter <= 150)"; got != want {
		t.Fatalf("String()=%q, want %q", got, want)
	}
	if q := p.Without(DimensionCategory); q.Has(DimensionCategory) || len(q.Args()) != 2 {
		t.Fatalf("Without(category) left %+v", q)
	}
	if len(p.Clauses) != 2 {
		t.Fatalf("Without must not mutate the receiver")
	}
}
