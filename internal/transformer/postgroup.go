package transformer

import (
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"etlmanifest/internal/manifest"
	"etlmanifest/pkg/records"
)

var (
	ErrUnsupportedPostGroupTransform = errors.New("unsupported post-group transform")
	// ErrArithmetic covers division by zero and non-numeric operands.
	ErrArithmetic = errors.New("arithmetic error")
)

// Op is a post-group arithmetic function.
type Op string

const (
	Add      Op = "add"
	Subtract Op = "subtract"
	Multiply Op = "multiply"
	Divide   Op = "divide"
)

var ops = map[Op]func(a, b float64) (float64, error){
	Add:      func(a, b float64) (float64, error) { return a + b, nil },
	Subtract: func(a, b float64) (float64, error) { return a - b, nil },
	Multiply: func(a, b float64) (float64, error) { return a * b, nil },
	Divide: func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, errors.Wrap(ErrArithmetic, "division by zero")
		}
		return a / b, nil
	},
}

// ApplyPostGroup computes spec over row. Each argument naming a field of row
// resolves to that field's value; anything else is used as a literal.
func ApplyPostGroup(row records.Row, spec manifest.PostGroupTransform) (any, error) {
	fn, ok := ops[Op(spec.Function)]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedPostGroupTransform, "%q", spec.Function)
	}
	if len(spec.Args) != 2 {
		return nil, errors.Wrapf(ErrArithmetic, "%s takes 2 arguments, got %d", spec.Function, len(spec.Args))
	}

	var operands [2]float64
	for i, arg := range spec.Args {
		v := arg
		if name, ok := arg.(string); ok {
			if fv, found := row.Get(name); found {
				v = fv
			}
		}
		f, err := cast.ToFloat64E(v)
		if err != nil || v == nil {
			return nil, errors.Wrapf(ErrArithmetic, "%s: operand %v is not numeric", spec.Function, arg)
		}
		operands[i] = f
	}
	return fn(operands[0], operands[1])
}

// PostGroup applies post-group transforms to every row, in order. Later
// transforms see fields computed by earlier ones.
type PostGroup []manifest.PostGroupTransform

func (p PostGroup) Apply(rows []records.Row) ([]records.Row, error) {
	for i := range rows {
		for _, spec := range p {
			v, err := ApplyPostGroup(rows[i], spec)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d: post-group %q", i+1, spec.Field)
			}
			rows[i].Set(spec.Field, v)
		}
	}
	return rows, nil
}
