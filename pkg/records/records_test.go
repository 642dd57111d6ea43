package records

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_SetKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	var r Row
	r.Set("b", 1)
	r.Set("a", 2)
	r.Set("b", 3)

	assert.Equal(t, []string{"b", "a"}, r.Fields())
	assert.Equal(t, []any{3, 2}, r.Values())
	v, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestRow_MarshalJSONPreservesOrder(t *testing.T) {
	t.Parallel()

	r := NewRow([]string{"zeta", "alpha", "mid"}, []any{"z", 1.5, nil})
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"z","alpha":1.5,"mid":null}`, string(b))
}

func TestRow_UnmarshalJSONPreservesOrder(t *testing.T) {
	t.Parallel()

	var r Row
	require.NoError(t, json.Unmarshal([]byte(`{"c":"x","a":true,"b":null}`), &r))
	assert.Equal(t, []string{"c", "a", "b"}, r.Fields())
	_, ok := r.Get("b")
	assert.True(t, ok)
	_, ok = r.Get("d")
	assert.False(t, ok)
}

func TestRow_UnmarshalJSONRejectsArrays(t *testing.T) {
	t.Parallel()

	var r Row
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &r))
}

func TestNewRow_MissingValuesAreNil(t *testing.T) {
	t.Parallel()

	r := NewRow([]string{"a", "b"}, []any{1})
	v, ok := r.Get("b")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestRow_NewRowCopiesFieldList(t *testing.T) {
	t.Parallel()

	r := NewRow([]string{"a"}, []any{1})
	c := NewRow(r.Fields(), r.Values())
	c.Set("a", 2)
	c.Set("b", 3)

	v, _ := r.Get("a")
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"a"}, r.Fields())
	assert.Equal(t, []string{"a", "b"}, c.Fields())
}
