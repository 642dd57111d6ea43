// Package query compiles a manifest job's source section into a Plan: an
// engine-agnostic description of a single-table-rooted SELECT with left
// joins, conjunctive filters, projections and grouping. Rendering a Plan to
// SQL for a particular database lives in package sqlgen.
package query

import "etlmanifest/internal/manifest"

// JoinKind is the kind of a join. Only left outer joins exist.
type JoinKind int

const (
	LeftOuter JoinKind = iota
)

func (k JoinKind) String() string {
	switch k {
	case LeftOuter:
		return "LEFT JOIN"
	}
	return "JOIN"
}

// Join adds Table to the query, matched by the On column pairs.
type Join struct {
	Table string
	Kind  JoinKind
	On    []manifest.ColumnPair
}

// Operator is a filter comparison.
type Operator string

const (
	Eq        Operator = "="
	Neq       Operator = "<>"
	Gt        Operator = ">"
	Gte       Operator = ">="
	Lt        Operator = "<"
	Lte       Operator = "<="
	IsNull    Operator = "IS NULL"
	IsNotNull Operator = "IS NOT NULL"
)

// Unary reports whether the operator takes no value.
func (o Operator) Unary() bool { return o == IsNull || o == IsNotNull }

// Filter is one conjunct of the WHERE clause.
type Filter struct {
	Column string
	Op     Operator
	// Value is bound as a query parameter; it is nil for unary operators.
	Value any
}

// Aggregate is an aggregate function applied to a projection.
type Aggregate int

const (
	NoAggregate Aggregate = iota
	Count
	Sum
	Avg
	Min
	Max
	Concat
)

var aggregateNames = [...]string{
	NoAggregate: "",
	Count:       "count",
	Sum:         "sum",
	Avg:         "avg",
	Min:         "min",
	Max:         "max",
	Concat:      "concat",
}

func (a Aggregate) String() string {
	if a < 0 || int(a) >= len(aggregateNames) {
		return "unknown"
	}
	return aggregateNames[a]
}

// Operand is one concat part: a column reference or a string literal.
type Operand struct {
	Value  string
	Column bool
}

// Projection is one output column.
type Projection struct {
	// Expr is the column (or raw expression) being projected. Empty for
	// concat and for COUNT(*).
	Expr string
	// Alias is the output name; empty for raw passthrough projections.
	Alias    string
	Raw      bool
	Agg      Aggregate
	Operands []Operand
}

// Name returns the column name the projection produces in a result row.
func (p Projection) Name() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Expr
}

// Plan is the compiled form of one job's source.
type Plan struct {
	Table       string
	Joins       []Join
	Filters     []Filter
	Projections []Projection
	GroupBy     []string
}

// Tables returns the base table followed by every joined table, in order.
func (p *Plan) Tables() []string {
	out := make([]string, 0, len(p.Joins)+1)
	out = append(out, p.Table)
	for _, j := range p.Joins {
		out = append(out, j.Table)
	}
	return out
}
