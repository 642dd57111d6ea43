package transformer

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/pkg/errors"
)

// decimalCtx rounds half away from zero.
var decimalCtx = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(64)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// formatNumber renders value as a fixed-point string with exactly decimals
// fraction digits and no grouping separators.
func formatNumber(value any, decimals int) (string, error) {
	d := new(apd.Decimal)
	switch x := value.(type) {
	case float64:
		if _, err := d.SetFloat64(x); err != nil {
			return "", errors.Wrapf(ErrInvalidNumber, "%v", x)
		}
	case float32:
		if _, err := d.SetFloat64(float64(x)); err != nil {
			return "", errors.Wrapf(ErrInvalidNumber, "%v", x)
		}
	case bool:
		if x {
			d.SetInt64(1)
		}
	default:
		s := strings.TrimSpace(toString(value))
		if _, _, err := d.SetString(s); err != nil {
			return "", errors.Wrapf(ErrInvalidNumber, "%q", s)
		}
	}
	if d.Form != apd.Finite {
		return "", errors.Wrapf(ErrInvalidNumber, "%v", value)
	}

	if _, err := decimalCtx.Quantize(d, d, -int32(decimals)); err != nil {
		return "", errors.Wrapf(ErrInvalidNumber, "%v: %v", value, err)
	}
	if d.IsZero() {
		d.Negative = false
	}
	return d.Text('f'), nil
}
