package models

import (
	"fmt"
	"strconv"
	"strings"
)

// TautologyWhere is the WHERE text of an empty predicate.
const TautologyWhere = "1=1"

// Clause is one filter dimension rendered as SQL with positional args.
type Clause struct {
	Dimension Dimension
	SQL       string
	Args      []any
}

// Predicate is a conjunction of clauses. The zero value matches every row.
type Predicate struct {
	Clauses []Clause
}

// And returns a new predicate with c appended.
func (p Predicate) And(c Clause) Predicate {
	out := make([]Clause, 0, len(p.Clauses)+1)
	out = append(out, p.Clauses...)
	return Predicate{Clauses: append(out, c)}
}

// Without returns a new predicate without clauses of the given dimension.
func (p Predicate) Without(d Dimension) Predicate {
	out := make([]Clause, 0, len(p.Clauses))
	for _, c := range p.Clauses {
		if c.Dimension != d {
			out = append(out, c)
		}
	}
	return Predicate{Clauses: out}
}

// Has reports whether a clause for d is present.
func (p Predicate) Has(d Dimension) bool {
	for _, c := range p.Clauses {
		if c.Dimension == d {
			return true
		}
	}
	return false
}

// IsTautology reports whether the predicate has no clauses.
func (p Predicate) IsTautology() bool { return len(p.Clauses) == 0 }

// Where renders the WHERE text with '?' placeholders.
func (p Predicate) Where() string {
	if len(p.Clauses) == 0 {
		return TautologyWhere
	}
	parts := make([]string, len(p.Clauses))
	for i, c := range p.Clauses {
		parts[i] = "(" + c.SQL + ")"
	}
	return strings.Join(parts, " AND ")
}

// Args returns the positional args in clause order.
func (p Predicate) Args() []any {
	var args []any
	for _, c := range p.Clauses {
		args = append(args, c.Args...)
	}
	return args
}

// String renders the predicate with args inlined, for display and logs.
func (p Predicate) String() string {
	where := p.Where()
	args := p.Args()
	var b strings.Builder
	i := 0
	for _, r := range where {
		if r == '?' && i < len(args) {
			b.WriteString(literal(args[i]))
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func literal(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Statistic is the aggregate computed by a query.
type Statistic string

const (
	StatisticCount Statistic = "count"
	StatisticAvg   Statistic = "avg"
	StatisticTop   Statistic = "top"
)

// AggregationSpec describes an aggregate query.
type AggregationSpec struct {
	Statistic Statistic
	Field     string
	GroupBy   []string
	OrderBy   string // e.g. "diameter DESC" or "count DESC"
	Limit     int
}

// QueryResult carries the rows produced for one generation.
// Top queries fill Features, grouped counts fill Groups, avg fills Value.
type QueryResult struct {
	Generation uint64
	Features   []TreeFeature
	Groups     []CategoryCount
	Value      *float64
}

// QueryRequest is one aggregate query tagged with the generation that issued it.
type QueryRequest struct {
	Name        string
	Predicate   Predicate
	Aggregation AggregationSpec
	Generation  uint64
}
