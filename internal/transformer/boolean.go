package transformer

import (
	"strings"

	"github.com/spf13/cast"
)

// Lowercased boolean vocabularies, checked before generic coercion.
var (
	truthySet = map[string]struct{}{
		"1": {}, "t": {}, "true": {}, "yes": {}, "y": {}, "on": {}, "ano": {},
	}
	falsySet = map[string]struct{}{
		"0": {}, "f": {}, "false": {}, "no": {}, "n": {}, "off": {}, "ne": {}, "": {},
	}
)

// truthy reports whether value counts as true. Strings outside the known
// vocabularies are true when non-empty.
func truthy(value any) bool {
	if s, ok := value.(string); ok {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, ok := truthySet[key]; ok {
			return true
		}
		if _, ok := falsySet[key]; ok {
			return false
		}
		if f, err := cast.ToFloat64E(key); err == nil {
			return f != 0
		}
		return true
	}
	if b, err := cast.ToBoolE(value); err == nil {
		return b
	}
	if f, err := cast.ToFloat64E(value); err == nil {
		return f != 0
	}
	return value != nil
}
