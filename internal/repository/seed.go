package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"street_trees/internal/models"
)

const seedBatchSize = 500

// csv header aliases; the second set are the attribute names of the
// public Berlin street tree export
var seedColumns = map[string]string{
	"id":            models.FieldID,
	"objectid":      models.FieldID,
	"species":       models.FieldSpecies,
	"art_dtsch":     models.FieldSpecies,
	"species_latin": models.FieldLatin,
	"art_bot":       models.FieldLatin,
	"diameter":      models.FieldDiameter,
	"stammumfg":     models.FieldDiameter,
	"street":        models.FieldStreet,
	"strname":       models.FieldStreet,
	"hausnr":        "house_number",
	"district":      models.FieldDistrict,
	"bezirk":        models.FieldDistrict,
	"lon":           models.FieldLon,
	"x":             models.FieldLon,
	"lat":           models.FieldLat,
	"y":             models.FieldLat,
}

var errSeedHeader = errors.New("csv header needs id, lon and lat columns")

// ReadTreesCSV parses trees from a CSV stream with a header row.
func ReadTreesCSV(r io.Reader) ([]models.TreeFeature, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if col, ok := seedColumns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))]; ok {
			idx[col] = i
		}
	}
	for _, required := range []string{models.FieldID, models.FieldLon, models.FieldLat} {
		if _, ok := idx[required]; !ok {
			return nil, errSeedHeader
		}
	}

	var out []models.TreeFeature
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		t, err := treeFromRecord(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func treeFromRecord(rec []string, idx map[string]int) (models.TreeFeature, error) {
	get := func(col string) string {
		if i, ok := idx[col]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var t models.TreeFeature
	id, err := strconv.ParseInt(get(models.FieldID), 10, 64)
	if err != nil {
		return t, fmt.Errorf("id: %w", err)
	}
	t.ID = id
	if t.Location.Lon, err = strconv.ParseFloat(get(models.FieldLon), 64); err != nil {
		return t, fmt.Errorf("lon: %w", err)
	}
	if t.Location.Lat, err = strconv.ParseFloat(get(models.FieldLat), 64); err != nil {
		return t, fmt.Errorf("lat: %w", err)
	}
	if d := get(models.FieldDiameter); d != "" {
		if t.Diameter, err = strconv.ParseFloat(strings.ReplaceAll(d, ",", "."), 64); err != nil {
			return t, fmt.Errorf("diameter: %w", err)
		}
	}
	t.Species = get(models.FieldSpecies)
	t.Latin = get(models.FieldLatin)
	t.District = get(models.FieldDistrict)
	t.Street = get(models.FieldStreet)
	if hn := get("house_number"); hn != "" && t.Street != "" {
		t.Street += " " + hn
	}
	return t, nil
}

// SeedTreesFromFile imports the CSV at path when the trees table is empty.
// It returns the number of inserted trees.
func SeedTreesFromFile(ctx context.Context, repo TreeRepo, path string) (int, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 || path == "" {
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open seed csv %q: %w", path, err)
	}
	defer f.Close()

	trees, err := ReadTreesCSV(f)
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(trees); start += seedBatchSize {
		end := start + seedBatchSize
		if end > len(trees) {
			end = len(trees)
		}
		if err := repo.InsertBatch(ctx, trees[start:end]); err != nil {
			return start, err
		}
	}
	return len(trees), nil
}
