package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"street_trees/internal/models"
)

// ErrUnsupportedAggregation is returned for a statistic, column or ordering
// the store does not allow.
var ErrUnsupportedAggregation = errors.New("unsupported aggregation")

// queryable columns; anything else never reaches the SQL text
var treeColumns = map[string]bool{
	models.FieldID:       true,
	models.FieldSpecies:  true,
	models.FieldLatin:    true,
	models.FieldDiameter: true,
	models.FieldStreet:   true,
	models.FieldDistrict: true,
	models.FieldLon:      true,
	models.FieldLat:      true,
}

const (
	selectTreeColumns = `id, species, species_latin, diameter, street, district, lon, lat`
	insertTreeSQL     = `INSERT INTO trees (id, species, species_latin, diameter, street, district, lon, lat) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	countTreesSQL     = `SELECT COUNT(*) FROM trees`
)

type TreeSQLite struct {
	db *sql.DB
}

func NewTreeSQLite(db *sql.DB) *TreeSQLite { return &TreeSQLite{db: db} }

// Query runs one aggregate over the rows matching p.
func (r *TreeSQLite) Query(ctx context.Context, p models.Predicate, spec models.AggregationSpec) (models.QueryResult, error) {
	switch spec.Statistic {
	case models.StatisticTop:
		return r.top(ctx, p, spec)
	case models.StatisticCount:
		return r.count(ctx, p, spec)
	case models.StatisticAvg:
		return r.avg(ctx, p, spec)
	}
	return models.QueryResult{}, fmt.Errorf("%w: statistic %q", ErrUnsupportedAggregation, spec.Statistic)
}

func (r *TreeSQLite) top(ctx context.Context, p models.Predicate, spec models.AggregationSpec) (models.QueryResult, error) {
	order, err := orderClause(spec.OrderBy, false)
	if err != nil {
		return models.QueryResult{}, err
	}
	q := `SELECT ` + selectTreeColumns + ` FROM trees WHERE ` + p.Where()
	if spec.Field != "" {
		if !treeColumns[spec.Field] {
			return models.QueryResult{}, fmt.Errorf("%w: field %q", ErrUnsupportedAggregation, spec.Field)
		}
		q += ` AND ` + spec.Field + ` IS NOT NULL`
	}
	q += order + limitClause(spec.Limit)

	rows, err := r.db.QueryContext(ctx, q, p.Args()...)
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("query top trees: %w", err)
	}
	defer rows.Close()

	var res models.QueryResult
	for rows.Next() {
		t, err := scanTree(rows)
		if err != nil {
			return models.QueryResult{}, fmt.Errorf("scan tree: %w", err)
		}
		res.Features = append(res.Features, t)
	}
	if err := rows.Err(); err != nil {
		return models.QueryResult{}, fmt.Errorf("iterate trees: %w", err)
	}
	return res, nil
}

func (r *TreeSQLite) count(ctx context.Context, p models.Predicate, spec models.AggregationSpec) (models.QueryResult, error) {
	if len(spec.GroupBy) == 0 || len(spec.GroupBy) > 2 {
		return models.QueryResult{}, fmt.Errorf("%w: count needs one or two group columns", ErrUnsupportedAggregation)
	}
	for _, c := range spec.GroupBy {
		if !treeColumns[c] {
			return models.QueryResult{}, fmt.Errorf("%w: group column %q", ErrUnsupportedAggregation, c)
		}
	}
	order, err := orderClause(spec.OrderBy, true)
	if err != nil {
		return models.QueryResult{}, err
	}

	name := spec.GroupBy[0]
	latin := "NULL"
	if len(spec.GroupBy) == 2 {
		latin = "MAX(" + spec.GroupBy[1] + ")"
	}
	q := `SELECT ` + name + `, ` + latin + `, COUNT(*) AS count FROM trees WHERE ` + p.Where() +
		` GROUP BY ` + name + order + limitClause(spec.Limit)

	rows, err := r.db.QueryContext(ctx, q, p.Args()...)
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("query grouped counts: %w", err)
	}
	defer rows.Close()

	var res models.QueryResult
	for rows.Next() {
		var (
			n      sql.NullString
			l      sql.NullString
			counts int64
		)
		if err := rows.Scan(&n, &l, &counts); err != nil {
			return models.QueryResult{}, fmt.Errorf("scan group: %w", err)
		}
		res.Groups = append(res.Groups, models.CategoryCount{Name: n.String, Latin: l.String, Count: counts})
	}
	if err := rows.Err(); err != nil {
		return models.QueryResult{}, fmt.Errorf("iterate groups: %w", err)
	}
	return res, nil
}

func (r *TreeSQLite) avg(ctx context.Context, p models.Predicate, spec models.AggregationSpec) (models.QueryResult, error) {
	if !treeColumns[spec.Field] {
		return models.QueryResult{}, fmt.Errorf("%w: field %q", ErrUnsupportedAggregation, spec.Field)
	}
	q := `SELECT AVG(` + spec.Field + `) FROM trees WHERE ` + p.Where()

	var v sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, q, p.Args()...).Scan(&v); err != nil {
		return models.QueryResult{}, fmt.Errorf("query average %s: %w", spec.Field, err)
	}
	var res models.QueryResult
	if v.Valid {
		f := v.Float64
		res.Value = &f
	}
	return res, nil
}

// QueryHistogram counts rows per fixed-width bin of field over [min, max].
// Only non-empty bins are returned; the value max falls into the last bin.
func (r *TreeSQLite) QueryHistogram(ctx context.Context, p models.Predicate, field string, binCount int, min, max float64) ([]models.HistogramBin, error) {
	if !treeColumns[field] {
		return nil, fmt.Errorf("%w: field %q", ErrUnsupportedAggregation, field)
	}
	if binCount <= 0 || max <= min {
		return nil, fmt.Errorf("%w: %d bins over [%v, %v]", ErrUnsupportedAggregation, binCount, min, max)
	}
	width := (max - min) / float64(binCount)

	q := `SELECT MIN(CAST((` + field + ` - ?) / ? AS INTEGER), ?) AS bin, COUNT(*) FROM trees WHERE ` + p.Where() +
		` AND ` + field + ` >= ? AND ` + field + ` <= ? GROUP BY bin ORDER BY bin`
	args := append([]any{min, width, binCount - 1}, p.Args()...)
	args = append(args, min, max)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query histogram: %w", err)
	}
	defer rows.Close()

	var bins []models.HistogramBin
	for rows.Next() {
		var (
			idx   int64
			count int64
		)
		if err := rows.Scan(&idx, &count); err != nil {
			return nil, fmt.Errorf("scan bin: %w", err)
		}
		start := min + float64(idx)*width
		bins = append(bins, models.HistogramBin{RangeStart: start, RangeEnd: start + width, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bins: %w", err)
	}
	return bins, nil
}

// Count returns the number of stored trees.
func (r *TreeSQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countTreesSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trees: %w", err)
	}
	return n, nil
}

// InsertBatch stores trees in one transaction.
func (r *TreeSQLite) InsertBatch(ctx context.Context, trees []models.TreeFeature) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert trees: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertTreeSQL)
	if err != nil {
		return fmt.Errorf("prepare insert tree: %w", err)
	}
	defer stmt.Close()

	for _, t := range trees {
		if _, err := stmt.ExecContext(ctx, t.ID, nullString(t.Species), nullString(t.Latin), t.Diameter,
			nullString(t.Street), nullString(t.District), t.Location.Lon, t.Location.Lat); err != nil {
			return fmt.Errorf("insert tree %d: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trees: %w", err)
	}
	return nil
}

// orderClause validates "col [ASC|DESC]". grouped also accepts "count".
func orderClause(orderBy string, grouped bool) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "", nil
	}
	parts := strings.Fields(orderBy)
	if len(parts) > 2 {
		return "", fmt.Errorf("%w: order %q", ErrUnsupportedAggregation, orderBy)
	}
	col := parts[0]
	if !treeColumns[col] && !(grouped && col == "count") {
		return "", fmt.Errorf("%w: order column %q", ErrUnsupportedAggregation, col)
	}
	dir := "ASC"
	if len(parts) == 2 {
		dir = strings.ToUpper(parts[1])
		if dir != "ASC" && dir != "DESC" {
			return "", fmt.Errorf("%w: order direction %q", ErrUnsupportedAggregation, parts[1])
		}
	}
	return " ORDER BY " + col + " " + dir, nil
}

func limitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", n)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTree(s rowScanner) (models.TreeFeature, error) {
	var (
		t                                models.TreeFeature
		species, latin, street, district sql.NullString
		diameter                         sql.NullFloat64
	)
	if err := s.Scan(&t.ID, &species, &latin, &diameter, &street, &district, &t.Location.Lon, &t.Location.Lat); err != nil {
		return models.TreeFeature{}, err
	}
	t.Species = species.String
	t.Latin = latin.String
	t.Diameter = diameter.Float64
	t.Street = street.String
	t.District = district.String
	return t, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
