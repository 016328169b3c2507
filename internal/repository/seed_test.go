package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"street_trees/internal/models"
	"street_trees/internal/repository/db"
)

const berlinCSV = `OBJECTID,Art_Dtsch,Art_Bot,Stammumfg,StrName,HausNr,BEZIRK,X,Y
1,Linde,Tilia,120,Unter den Linden,5,Mitte,13.39,52.51
2,Eiche,Quercus,"210,5",,,Pankow,13.41,52.57
3,,,,,,,14.90,52.50
`

func TestReadTreesCSV(t *testing.T) {
	trees, err := ReadTreesCSV(strings.NewReader(berlinCSV))
	if err != nil {
		t.Fatalf("ReadTreesCSV: %v", err)
	}
	if len(trees) != 3 {
		t.Fatalf("trees=%d", len(trees))
	}
	if trees[0].Street != "Unter den Linden 5" || trees[0].Address() != "Unter den Linden 5, Mitte" {
		t.Fatalf("address of first tree: %q", trees[0].Address())
	}
	if trees[1].Diameter != 210.5 || trees[1].Address() != "Pankow" {
		t.Fatalf("second tree %+v", trees[1])
	}
	if trees[2].Species != "" || trees[2].Address() != "Berlin" {
		t.Fatalf("third tree %+v", trees[2])
	}
}

func TestReadTreesCSVErrors(t *testing.T) {
	cases := map[string]string{
		"missing_header": "species,diameter\nLinde,3\n",
		"bad_id":         "id,lon,lat\nx,13,52\n",
		"bad_lat":        "id,lon,lat\n1,13,north\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadTreesCSV(strings.NewReader(in)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSeedAndQuerySQLite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "trees.csv")
	if err := os.WriteFile(csvPath, []byte(berlinCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	conn, err := db.InitDB(filepath.Join(dir, "trees.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer conn.Close()
	repo := NewTreeSQLite(conn)
	bg := context.Background()

	n, err := SeedTreesFromFile(bg, repo, csvPath)
	if err != nil || n != 3 {
		t.Fatalf("seed: n=%d err=%v", n, err)
	}
	if n, err := SeedTreesFromFile(bg, repo, csvPath); err != nil || n != 0 {
		t.Fatalf("second seed should be skipped: n=%d err=%v", n, err)
	}

	region := models.Polygon{Ring: []models.Point{{Lon: 13.3, Lat: 52.4}, {Lon: 13.5, Lat: 52.4}, {Lon: 13.5, Lat: 52.6}, {Lon: 13.3, Lat: 52.6}}}
	p := models.Predicate{}.And(models.Clause{
		Dimension: models.DimensionRegion,
		SQL:       "point_in_polygon(lon, lat, ?) = 1",
		Args:      []any{region.Encode()},
	})

	top, err := repo.Query(bg, p, models.AggregationSpec{Statistic: models.StatisticTop, Field: models.FieldDiameter, OrderBy: "diameter DESC", Limit: 1})
	if err != nil || len(top.Features) != 1 || top.Features[0].ID != 2 {
		t.Fatalf("top=%+v err=%v", top, err)
	}
	avg, err := repo.Query(bg, p, models.AggregationSpec{Statistic: models.StatisticAvg, Field: models.FieldDiameter})
	if err != nil || avg.Value == nil || *avg.Value != 165.25 {
		t.Fatalf("avg=%v err=%v", avg.Value, err)
	}
	bins, err := repo.QueryHistogram(bg, p, models.FieldDiameter, 50, 0, 300)
	if err != nil || len(bins) != 2 || bins[0].RangeStart != 120 || bins[1].RangeStart != 210 {
		t.Fatalf("bins=%+v err=%v", bins, err)
	}
}
