// Package transformer rewrites row values after extraction: per-field
// formatting (case, dates, numbers, booleans) and post-group arithmetic over
// already aggregated fields.
package transformer

import "etlmanifest/pkg/records"

// Transformer rewrites a batch of rows.
type Transformer interface {
	Apply([]records.Row) ([]records.Row, error)
}

// Chain is an ordered list of transformers. It stops at the first error.
type Chain []Transformer

func (c Chain) Apply(in []records.Row) ([]records.Row, error) {
	out := in
	for _, t := range c {
		var err error
		if out, err = t.Apply(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
