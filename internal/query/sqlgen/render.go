package sqlgen

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"etlmanifest/internal/query"
)

// ErrRender is returned for plans that cannot be expressed as SQL.
var ErrRender = errors.New("cannot render plan")

var aggregateFuncs = map[query.Aggregate]string{
	query.Count: "COUNT",
	query.Sum:   "SUM",
	query.Avg:   "AVG",
	query.Min:   "MIN",
	query.Max:   "MAX",
}

// Render returns the SELECT statement for plan and its bound arguments in
// placeholder order.
func Render(plan *query.Plan, d *Dialect) (string, []any, error) {
	if plan == nil {
		return "", nil, errors.Wrap(ErrRender, "nil plan")
	}
	if d == nil {
		return "", nil, errors.Wrap(ErrRender, "nil dialect")
	}

	r := &renderer{d: d}
	var b strings.Builder

	b.WriteString("SELECT ")
	if len(plan.Projections) == 0 {
		b.WriteString("*")
	}
	for i, p := range plan.Projections {
		if i > 0 {
			b.WriteString(", ")
		}
		expr, err := r.projection(p)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(expr)
	}

	b.WriteString(" FROM ")
	b.WriteString(plan.Table)

	for _, j := range plan.Joins {
		b.WriteString(" ")
		b.WriteString(j.Kind.String())
		b.WriteString(" ")
		b.WriteString(j.Table)
		b.WriteString(" ON ")
		for i, on := range j.On {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString(on.Left)
			b.WriteString(" = ")
			b.WriteString(on.Right)
		}
	}

	for i, f := range plan.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		if f.Op.Unary() {
			b.WriteString(f.Column)
			b.WriteString(" ")
			b.WriteString(string(f.Op))
			continue
		}
		col, mark := f.Column, r.bind(f.Value)
		if _, ok := f.Value.(time.Time); ok && r.d.timeExpr != nil {
			col, mark = r.d.timeExpr(col), r.d.timeExpr(mark)
		}
		b.WriteString(col)
		b.WriteString(" ")
		b.WriteString(string(f.Op))
		b.WriteString(" ")
		b.WriteString(mark)
	}

	if len(plan.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(plan.GroupBy, ", "))
	}

	return b.String(), r.args, nil
}

type renderer struct {
	d    *Dialect
	args []any
}

func (r *renderer) bind(v any) string {
	r.args = append(r.args, r.d.bind(v))
	return r.d.placeholder(len(r.args))
}

func (r *renderer) projection(p query.Projection) (string, error) {
	var expr string
	switch p.Agg {
	case query.NoAggregate:
		expr = p.Expr
		if p.Raw {
			return expr, nil
		}
	case query.Concat:
		if len(p.Operands) == 0 {
			return "", errors.Wrapf(ErrRender, "concat %q has no operands", p.Alias)
		}
		parts := make([]string, 0, len(p.Operands))
		for _, op := range p.Operands {
			if op.Column {
				parts = append(parts, op.Value)
			} else {
				parts = append(parts, r.d.literal(op.Value))
			}
		}
		if len(parts) == 1 {
			expr = parts[0]
		} else {
			expr = r.d.concat(parts)
		}
	default:
		fn, ok := aggregateFuncs[p.Agg]
		if !ok {
			return "", errors.Wrapf(ErrRender, "aggregate %s", p.Agg)
		}
		arg := p.Expr
		if arg == "" {
			arg = "*"
		}
		expr = fn + "(" + arg + ")"
	}

	if p.Alias == "" {
		return expr, nil
	}
	return expr + " AS " + r.d.ident(p.Alias), nil
}
