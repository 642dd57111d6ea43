package query

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"

	"etlmanifest/internal/manifest"
)

var (
	ErrUnsupportedRelationship = errors.New("unsupported relationship")
	ErrUnsupportedAggregate    = errors.New("unsupported aggregate function")
	ErrMissingConcatColumns    = errors.New("missing columns for concat function")
	ErrDuplicateAlias          = errors.New("duplicate projection alias")
	ErrUnknownTable            = errors.New("unknown table")
	ErrUnsupportedOperator     = errors.New("unsupported condition operator")
	ErrEmptyColumn             = errors.New("empty column")
)

// relationKinds maps every accepted relationship type to its join kind.
var relationKinds = map[string]JoinKind{
	"hasMany":     LeftOuter,
	"hasOne":      LeftOuter,
	"one_to_many": LeftOuter,
	"one_to_one":  LeftOuter,
}

var aggregates = map[string]Aggregate{
	"count":  Count,
	"sum":    Sum,
	"avg":    Avg,
	"min":    Min,
	"max":    Max,
	"concat": Concat,
}

var rangeOps = map[string]Operator{
	manifest.OpEq:  Eq,
	manifest.OpNeq: Neq,
	manifest.OpGt:  Gt,
	manifest.OpGte: Gte,
	manifest.OpLt:  Lt,
	manifest.OpLte: Lte,
}

// qualified matches "table.column" and "table.*".
var qualified = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*|\*)$`)

// Compiler turns manifest sources into plans. The zero value is not usable;
// construct with NewCompiler.
type Compiler struct {
	now func() time.Time
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithClock sets the clock used to resolve date sentinels such as
// "last_month". The returned time's location is used for the window.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCompiler returns a Compiler reading the wall clock.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds the plan for src. Steps run in a fixed order (base table,
// joins, filters, projections, group-by) and every list keeps manifest order.
func (c *Compiler) Compile(src manifest.Source) (*Plan, error) {
	base := src.Base()
	if base.Table == "" {
		return nil, errors.Wrap(ErrUnknownTable, "source has no base table")
	}

	s := &scope{
		entities: make(map[string]string, len(src.Entities)),
		known:    map[string]bool{base.Table: true},
	}
	for _, e := range src.Entities {
		s.entities[e.Name] = e.Table
	}

	plan := &Plan{Table: base.Table}

	for i, rel := range src.Relationships {
		j, err := s.join(rel)
		if err != nil {
			return nil, errors.Wrapf(err, "relationship %d", i)
		}
		plan.Joins = append(plan.Joins, j)
	}

	for _, cond := range src.Conditions {
		filters, err := c.filters(s, cond)
		if err != nil {
			return nil, err
		}
		plan.Filters = append(plan.Filters, filters...)
	}

	aliases := make(map[string]bool, len(src.Mapping))
	for _, f := range src.Mapping {
		p, err := s.projection(f)
		if err != nil {
			return nil, err
		}
		if p.Alias != "" {
			if aliases[p.Alias] {
				return nil, errors.Wrapf(ErrDuplicateAlias, "%q", p.Alias)
			}
			aliases[p.Alias] = true
		}
		plan.Projections = append(plan.Projections, p)
	}

	for _, g := range src.GroupBy {
		col, err := s.column(g)
		if err != nil {
			return nil, errors.Wrap(err, "group_by")
		}
		plan.GroupBy = append(plan.GroupBy, col)
	}

	return plan, nil
}

// LastMonth returns the inclusive window covering the calendar month before
// now, in now's location.
func LastMonth(now time.Time) (start, end time.Time) {
	y, m, _ := now.Date()
	thisMonth := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return thisMonth.AddDate(0, -1, 0), thisMonth.Add(-time.Nanosecond)
}

func (c *Compiler) filters(s *scope, cond manifest.Condition) ([]Filter, error) {
	col, err := s.column(cond.Column)
	if err != nil {
		return nil, errors.Wrap(err, "condition")
	}

	if cond.Op == manifest.OpShorthand {
		switch v := cond.Value.(type) {
		case nil:
			return []Filter{{Column: col, Op: IsNull}}, nil
		case string:
			if v == manifest.SentinelLastMonth {
				start, end := LastMonth(c.now())
				return []Filter{
					{Column: col, Op: Gte, Value: start},
					{Column: col, Op: Lte, Value: end},
				}, nil
			}
		}
		return []Filter{{Column: col, Op: Eq, Value: cond.Value}}, nil
	}

	op, ok := rangeOps[cond.Op]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedOperator, "%q on %s", cond.Op, cond.Column)
	}
	if cond.Value == nil {
		switch op {
		case Eq:
			return []Filter{{Column: col, Op: IsNull}}, nil
		case Neq:
			return []Filter{{Column: col, Op: IsNotNull}}, nil
		}
		return nil, errors.Wrapf(ErrUnsupportedOperator, "%q with null on %s", cond.Op, cond.Column)
	}
	return []Filter{{Column: col, Op: op, Value: cond.Value}}, nil
}

// scope tracks which tables are visible while compiling one source.
type scope struct {
	// entities maps logical entity names to tables.
	entities map[string]string
	known    map[string]bool
}

func (s *scope) table(name string) string {
	if t, ok := s.entities[name]; ok {
		return t
	}
	return name
}

// column resolves an entity qualifier to its table and checks that the table
// is visible. Expressions that are not plain identifiers pass through.
func (s *scope) column(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	m := qualified.FindStringSubmatch(expr)
	if m == nil {
		return expr, nil
	}
	table := s.table(m[1])
	if !s.known[table] {
		return "", errors.Wrapf(ErrUnknownTable, "%q in %q", m[1], expr)
	}
	return table + "." + m[2], nil
}

func (s *scope) join(rel manifest.Relationship) (Join, error) {
	desc := rel.Text
	if desc == "" {
		desc = fmt.Sprintf("%s %s %s", rel.From, rel.Type, rel.To)
	}
	kind, ok := relationKinds[rel.Type]
	if !ok || rel.From == "" || rel.To == "" {
		return Join{}, errors.Wrapf(ErrUnsupportedRelationship, "%q", desc)
	}

	from, to := s.table(rel.From), s.table(rel.To)
	if !s.known[from] {
		return Join{}, errors.Wrapf(ErrUnknownTable, "%q in %q", rel.From, desc)
	}

	j := Join{Table: to, Kind: kind}
	if len(rel.On) == 0 {
		j.On = []manifest.ColumnPair{{
			Left:  from + ".id",
			Right: to + "." + inflection.Singular(from) + "_id",
		}}
		s.known[to] = true
		return j, nil
	}

	// The joined table itself may be referenced in its own ON clause.
	s.known[to] = true
	for _, pair := range rel.On {
		left, err := s.column(pair.Left)
		if err != nil {
			return Join{}, err
		}
		right, err := s.column(pair.Right)
		if err != nil {
			return Join{}, err
		}
		j.On = append(j.On, manifest.ColumnPair{Left: left, Right: right})
	}
	return j, nil
}

func (s *scope) projection(f manifest.Field) (Projection, error) {
	if f.Raw {
		return Projection{Expr: f.Expr, Raw: true}, nil
	}

	if f.Function == "" {
		if f.Expr == "" {
			return Projection{}, errors.Wrapf(ErrEmptyColumn, "mapping %q", f.Alias)
		}
		col, err := s.column(f.Expr)
		if err != nil {
			return Projection{}, errors.Wrapf(err, "mapping %q", f.Alias)
		}
		return Projection{Expr: col, Alias: f.Alias}, nil
	}

	agg, ok := aggregates[strings.ToLower(f.Function)]
	if !ok {
		return Projection{}, errors.Wrapf(ErrUnsupportedAggregate, "%q for %q", f.Function, f.Alias)
	}
	p := Projection{Alias: f.Alias, Agg: agg}

	switch agg {
	case Concat:
		if len(f.Parts) == 0 {
			return Projection{}, errors.Wrapf(ErrMissingConcatColumns, "mapping %q", f.Alias)
		}
		for _, part := range f.Parts {
			op, err := s.operand(part)
			if err != nil {
				return Projection{}, errors.Wrapf(err, "mapping %q", f.Alias)
			}
			p.Operands = append(p.Operands, op)
		}
	case Count:
		if f.Expr == "" || f.Expr == "*" {
			return p, nil
		}
		fallthrough
	default:
		if f.Expr == "" {
			return Projection{}, errors.Wrapf(ErrEmptyColumn, "%s for %q", agg, f.Alias)
		}
		col, err := s.column(f.Expr)
		if err != nil {
			return Projection{}, errors.Wrapf(err, "mapping %q", f.Alias)
		}
		p.Expr = col
	}
	return p, nil
}

// operand classifies a concat part. Explicitly quoted parts are literals;
// otherwise a part containing a dot is a column reference. A literal that
// itself contains a dot must therefore be quoted in the manifest.
func (s *scope) operand(part manifest.Part) (Operand, error) {
	if part.Quoted || !strings.Contains(part.Text, ".") {
		return Operand{Value: part.Text}, nil
	}
	col, err := s.column(part.Text)
	if err != nil {
		return Operand{}, err
	}
	return Operand{Value: col, Column: true}, nil
}
