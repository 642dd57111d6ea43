package transformer

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"etlmanifest/internal/manifest"
	"etlmanifest/pkg/records"
)

var (
	// ErrDateParse is returned when a date transform cannot interpret its
	// input.
	ErrDateParse = errors.New("cannot parse date")
	// ErrInvalidNumber is returned when a number transform gets a value that
	// is not numeric.
	ErrInvalidNumber = errors.New("not a number")
)

// Kind is a field transform type.
type Kind string

const (
	Lower   Kind = "lower"
	Upper   Kind = "upper"
	Date    Kind = "date"
	Number  Kind = "number"
	Boolean Kind = "boolean"
)

const (
	defaultDatePattern = "YYYY-MM-DD"
	defaultDecimals    = 2
)

type fieldFunc func(v *Values, value any, spec manifest.FieldTransform) (any, error)

// fieldFuncs is the dispatch table for every known Kind. Types missing here
// pass values through unchanged.
var fieldFuncs = map[Kind]fieldFunc{
	Lower: func(_ *Values, value any, _ manifest.FieldTransform) (any, error) {
		return cases.Lower(language.Und).String(toString(value)), nil
	},
	Upper: func(_ *Values, value any, _ manifest.FieldTransform) (any, error) {
		return cases.Upper(language.Und).String(toString(value)), nil
	},
	Date: func(v *Values, value any, spec manifest.FieldTransform) (any, error) {
		return v.formatDate(value, spec.Format)
	},
	Number: func(_ *Values, value any, spec manifest.FieldTransform) (any, error) {
		decimals := defaultDecimals
		if spec.Decimals != nil {
			decimals = *spec.Decimals
		}
		return formatNumber(value, decimals)
	},
	Boolean: func(_ *Values, value any, _ manifest.FieldTransform) (any, error) {
		if truthy(value) {
			return "1", nil
		}
		return "0", nil
	},
}

// Values applies field transforms to single values. It is safe for
// concurrent use; a cases.Caser is stateful, so one is built per call.
type Values struct {
	loc *time.Location
}

// Option configures Values.
type Option func(*Values)

// WithLocation sets the zone Unix timestamps and zone-less date strings are
// interpreted in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(v *Values) {
		if loc != nil {
			v.loc = loc
		}
	}
}

// New returns Values with the given options.
func New(opts ...Option) *Values {
	v := &Values{loc: time.UTC}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// TransformField returns value rewritten according to spec. nil stays nil and
// unknown transform types return value unchanged.
func (v *Values) TransformField(value any, spec manifest.FieldTransform) (any, error) {
	if value == nil {
		return nil, nil
	}
	fn, ok := fieldFuncs[Kind(strings.ToLower(spec.Type))]
	if !ok {
		return value, nil
	}
	return fn(v, value, spec)
}

// FieldTransforms applies Specs to every row that carries the field.
type FieldTransforms struct {
	Values *Values
	Specs  []manifest.FieldTransform
}

// Apply rewrites rows in place and returns them.
func (f FieldTransforms) Apply(rows []records.Row) ([]records.Row, error) {
	vals := f.Values
	if vals == nil {
		vals = New()
	}
	for i := range rows {
		for _, spec := range f.Specs {
			cur, ok := rows[i].Get(spec.Field)
			if !ok {
				continue
			}
			next, err := vals.TransformField(cur, spec)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d: %s transform on %q", i+1, spec.Type, spec.Field)
			}
			rows[i].Set(spec.Field, next)
		}
	}
	return rows, nil
}

// toString renders a scalar the way it would appear in an export.
func toString(value any) string {
	switch x := value.(type) {
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return x.String()
	}
	if s, err := cast.ToStringE(value); err == nil {
		return s
	}
	return fmt.Sprint(value)
}
