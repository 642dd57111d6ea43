package manifest

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etlmanifest/internal/config"
)

func TestParseLegacy(t *testing.T) {
	t.Parallel()

	m, err := Parse(filepath.Join("testdata", "legacy.yaml"))
	require.NoError(t, err)
	require.Len(t, m.Jobs, 1)
	assert.Empty(t, m.Warnings)

	job := m.Jobs[0]
	assert.Equal(t, "monthly_orders", job.ID)
	assert.Equal(t, "Orders placed last month, one row per user", job.Description)

	src := job.Source
	assert.Equal(t, Entity{Name: "users", Table: "users"}, src.Base())
	require.Len(t, src.Relationships, 1)
	rel := src.Relationships[0]
	assert.True(t, rel.Legacy())
	assert.Equal(t, "users", rel.From)
	assert.Equal(t, "hasMany", rel.Type)
	assert.Equal(t, "orders", rel.To)

	wantConds := []Condition{
		{Column: "orders.created_at", Op: OpShorthand, Value: SentinelLastMonth},
		{Column: "users.status", Op: OpShorthand, Value: "active"},
	}
	if diff := cmp.Diff(wantConds, src.Conditions); diff != "" {
		t.Fatalf("conditions mismatch (-want +got):\n%s", diff)
	}

	wantMapping := []Field{
		{Alias: "user_id", Expr: "users.id"},
		{Alias: "name", Expr: "users.name"},
		{Alias: "order_count", Expr: "orders.id", Function: "count"},
		{Alias: "total_spent", Expr: "orders.amount", Function: "sum"},
		{Alias: "label", Function: "concat", Parts: []Part{
			{Text: "users.name"}, {Text: " <"}, {Text: "users.email"}, {Text: ">"},
		}},
	}
	if diff := cmp.Diff(wantMapping, src.Mapping); diff != "" {
		t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"users.id", "users.name"}, src.GroupBy)

	require.Len(t, job.Transforms, 2)
	assert.Equal(t, "name", job.Transforms[0].Field)
	assert.Equal(t, "upper", job.Transforms[0].Type)
	require.NotNil(t, job.Transforms[1].Decimals)
	assert.Equal(t, 2, *job.Transforms[1].Decimals)

	require.Len(t, job.PostGroup, 1)
	assert.Equal(t, PostGroupTransform{
		Field:    "average_order",
		Function: "divide",
		Args:     []any{"total_spent", "order_count"},
	}, job.PostGroup[0])

	assert.Equal(t, Output{Format: FormatCSV, Path: "out/monthly_orders.csv", Delimiter: ";", Header: true}, job.Output)
}

func TestParseStructured(t *testing.T) {
	t.Parallel()

	m, err := Parse(filepath.Join("testdata", "structured.yaml"))
	require.NoError(t, err)
	require.Len(t, m.Jobs, 2)

	src := m.Jobs[0].Source
	wantEntities := []Entity{
		{Name: "customer", Table: "users", Fields: []string{"id", "email"}},
		{Name: "payment", Table: "payments"},
	}
	if diff := cmp.Diff(wantEntities, src.Entities); diff != "" {
		t.Fatalf("entities mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, src.Relationships, 1)
	rel := src.Relationships[0]
	assert.False(t, rel.Legacy())
	assert.Equal(t, []ColumnPair{{Left: "users.id", Right: "payments.user_id"}}, rel.On)

	wantConds := []Condition{
		{Column: "payments.amount", Op: OpGte, Value: 10},
		{Column: "payments.amount", Op: OpLt, Value: 500},
		{Column: "payments.refunded_at", Op: OpShorthand, Value: nil},
	}
	if diff := cmp.Diff(wantConds, src.Conditions); diff != "" {
		t.Fatalf("conditions mismatch (-want +got):\n%s", diff)
	}

	wantMapping := []Field{
		{Alias: "customer_id", Expr: "users.id"},
		{Alias: "email", Expr: "users.email"},
		{Alias: "contact", Expr: `users.email, " / ", payments.method`, Function: "concat", Parts: []Part{
			{Text: "users.email"}, {Text: " / ", Quoted: true}, {Text: "payments.method"},
		}},
		{Alias: "paid", Expr: "payments.amount", Function: "sum"},
	}
	if diff := cmp.Diff(wantMapping, src.Mapping); diff != "" {
		t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []Field{{Expr: "users.email", Raw: true}}, m.Jobs[1].Source.Mapping)
	assert.False(t, m.Jobs[1].Output.Header)

	require.Len(t, m.Warnings, 1)
	assert.Equal(t, config.SeverityWarning, m.Warnings[0].Severity)
	assert.Equal(t, "etl[1].id", m.Warnings[0].Path)
}

func TestParseNotFound(t *testing.T) {
	t.Parallel()

	_, err := Parse(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalid))
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	m, err := Parse(filepath.Join("testdata", "malformed.yaml"))
	assert.Nil(t, m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestParseInvalidReportsIssuesInOrder(t *testing.T) {
	t.Parallel()

	_, err := Parse(filepath.Join("testdata", "invalid.yaml"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalid))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, filepath.Join("testdata", "invalid.yaml"), ve.Path)

	var paths []string
	for _, iss := range ve.Issues {
		assert.Equal(t, config.SeverityError, iss.Severity)
		paths = append(paths, iss.Path)
	}
	want := []string{
		"etl[0].source.entities",
		"etl[0].source.relationships",
		"etl[0].source.mapping",
		"etl[0].output",
		"etl[0].output.format",
		"etl[0].output.delimiter",
		"etl[1]",
		"etl[1]",
	}
	assert.Equal(t, want, paths)
	assert.Contains(t, ve.Issues[6].Message, "'id'")
	assert.Contains(t, ve.Issues[7].Message, "'output'")
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestParseBytesTopLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  string
	}{
		{name: "empty document", doc: ""},
		{name: "missing etl", doc: "jobs: []\n"},
		{name: "empty etl", doc: "etl: []\n"},
		{name: "etl not a list", doc: "etl: {id: x}\n"},
		{name: "top level list", doc: "- etl\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseBytes([]byte(tc.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
			assert.Contains(t, err.Error(), `"etl"`)
		})
	}
}

func TestValidateKeepsWarnings(t *testing.T) {
	t.Parallel()

	doc := strings.Join([]string{
		"etl:",
		"  - {id: a, name: A, source: {entities: [t], mapping: [t.x]}, output: {format: csv, path: a.csv}}",
		"  - {id: a, name: B, source: {entities: [t], mapping: [t.x]}, output: {format: csv, path: b.csv}}",
	}, "\n")

	issues := Validate([]byte(doc))
	require.Len(t, issues, 1)
	assert.False(t, config.HasErrors(issues))
	assert.Contains(t, issues[0].Message, `"a"`)

	m, err := ParseBytes([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, m.Jobs, 2)
}

func TestParseTransformShapes(t *testing.T) {
	t.Parallel()

	doc := `
etl:
  - id: t
    name: T
    source: {entities: [t], mapping: ["a: t.a"]}
    transform:
      a: upper
      b: {function: add}
      c: {type: number, decimals: -1}
    output: {format: csv, path: t.csv}
`
	issues := Validate([]byte(doc))
	var paths []string
	for _, iss := range issues {
		paths = append(paths, iss.Path)
	}
	assert.Equal(t, []string{"etl[0].transform.a", "etl[0].transform.b.args", "etl[0].transform.c.decimals"}, paths)
}

func TestSplitParts(t *testing.T) {
	t.Parallel()

	got := splitParts(`users.first, ' ', users.last, "a, b", plain`)
	want := []Part{
		{Text: "users.first"},
		{Text: " ", Quoted: true},
		{Text: "users.last"},
		{Text: "a, b", Quoted: true},
		{Text: "plain"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("splitParts mismatch (-want +got):\n%s", diff)
	}
}
