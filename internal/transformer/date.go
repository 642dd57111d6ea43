package transformer

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/ncruces/go-strftime"
	"github.com/pkg/errors"
)

// formatDate interprets value as a point in time and formats it with pattern.
// Numbers (and numeric strings) are Unix seconds; other strings go through
// free-form parsing.
func (v *Values) formatDate(value any, pattern string) (string, error) {
	t, err := v.toTime(value)
	if err != nil {
		return "", err
	}
	if pattern == "" {
		pattern = defaultDatePattern
	}
	return strftime.Format(toStrftime(pattern), t), nil
}

func (v *Values) toTime(value any) (time.Time, error) {
	switch x := value.(type) {
	case time.Time:
		return x, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f, err := strconv.ParseFloat(toString(x), 64)
		if err != nil {
			return time.Time{}, errors.Wrapf(ErrDateParse, "%v", value)
		}
		return unix(f, v.loc), nil
	}

	s := strings.TrimSpace(toString(value))
	if s == "" {
		return time.Time{}, errors.Wrap(ErrDateParse, "empty value")
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return unix(f, v.loc), nil
	}
	t, err := dateparse.ParseIn(s, v.loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrDateParse, "%q", s)
	}
	return t, nil
}

func unix(secs float64, loc *time.Location) time.Time {
	whole := int64(secs)
	frac := int64((secs - float64(whole)) * 1e9)
	return time.Unix(whole, frac).In(loc)
}

// toStrftime converts a date pattern to strftime syntax. Three notations are
// accepted: strftime itself (any pattern containing '%'), moment-style tokens
// such as "YYYY-MM-DD HH:mm:ss", and PHP date() letters such as "Y-m-d H:i".
func toStrftime(pattern string) string {
	switch {
	case strings.Contains(pattern, "%"):
		return pattern
	case isMoment(pattern):
		return translate(pattern, momentTokens)
	default:
		return translate(pattern, phpTokens)
	}
}

type token struct {
	from, to string
}

// momentTokens is ordered longest first so "YYYY" wins over "YY".
var momentTokens = []token{
	{"YYYY", "%Y"}, {"YY", "%y"},
	{"MMMM", "%B"}, {"MMM", "%b"}, {"MM", "%m"}, {"M", "%-m"},
	{"dddd", "%A"}, {"ddd", "%a"},
	{"DD", "%d"}, {"D", "%-d"},
	{"HH", "%H"}, {"hh", "%I"},
	{"mm", "%M"}, {"ss", "%S"},
	{"A", "%p"},
}

var phpTokens = []token{
	{"Y", "%Y"}, {"y", "%y"},
	{"m", "%m"}, {"n", "%-m"}, {"M", "%b"}, {"F", "%B"},
	{"d", "%d"}, {"j", "%-d"}, {"D", "%a"}, {"l", "%A"},
	{"H", "%H"}, {"G", "%-H"}, {"h", "%I"}, {"g", "%-I"},
	{"i", "%M"}, {"s", "%S"}, {"A", "%p"},
}

func isMoment(pattern string) bool {
	for _, marker := range []string{"YY", "DD", "HH", "MM", "mm", "ss"} {
		if strings.Contains(pattern, marker) {
			return true
		}
	}
	return false
}

func translate(pattern string, tokens []token) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		matched := false
		for _, tok := range tokens {
			if strings.HasPrefix(pattern[i:], tok.from) {
				b.WriteString(tok.to)
				i += len(tok.from)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}
