package transformer

import (
	"errors"
	"testing"

	"etlmanifest/pkg/records"
)

// counterTransformer records the order in which it was applied.
type counterTransformer struct {
	id    int
	order *[]int
	err   error
}

func (c counterTransformer) Apply(in []records.Row) ([]records.Row, error) {
	*c.order = append(*c.order, c.id)
	return in, c.err
}

func TestChainAppliesInOrder(t *testing.T) {
	t.Parallel()

	var order []int
	chain := Chain{
		counterTransformer{id: 1, order: &order},
		counterTransformer{id: 2, order: &order},
		counterTransformer{id: 3, order: &order},
	}
	in := []records.Row{records.NewRow([]string{"a"}, []any{1})}
	out, err := chain.Apply(in)
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d", len(out))
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v, want [1 2 3]", order)
	}
}

func TestChainStopsAtFirstError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var order []int
	chain := Chain{
		counterTransformer{id: 1, order: &order, err: boom},
		counterTransformer{id: 2, order: &order},
	}
	if _, err := chain.Apply(nil); !errors.Is(err, boom) {
		t.Fatalf("want %v, got %v", boom, err)
	}
	if len(order) != 1 {
		t.Fatalf("second transformer ran after an error: %v", order)
	}
}

func TestEmptyChainIsIdentity(t *testing.T) {
	t.Parallel()

	in := []records.Row{records.NewRow([]string{"a"}, []any{1})}
	out, err := Chain{}.Apply(in)
	if err != nil || len(out) != 1 {
		t.Fatalf("Apply = %v, %v", out, err)
	}
}
