// Package manifest loads ETL manifests: YAML documents describing one or more
// extraction jobs (what to query, how to reshape the rows, where to write
// them).
//
// Manifests in the wild use two generations of syntax for the same concepts.
// Entities may be a list of table names or a mapping of logical names to
// tables; relationships may be "users hasMany orders" strings or structured
// joins; mapping entries come in four shapes. Parse normalizes all of them into
// the single canonical representation defined here, so downstream packages
// never inspect raw YAML shapes.
package manifest

// Manifest is a parsed, validated manifest. It is immutable after Parse.
type Manifest struct {
	// Path is the file the manifest was loaded from, if any.
	Path string
	Jobs []Job
	// Warnings holds non-fatal lint findings (e.g. duplicate job ids).
	Warnings []Issue
}

// Job is one unit of work: a source query, optional transforms and an output.
type Job struct {
	// ID identifies the job in logs and error messages. Uniqueness is not
	// enforced.
	ID          string
	Name        string
	Description string
	Source      Source
	// Transforms are per-field value rewrites, in manifest order.
	Transforms []FieldTransform
	// PostGroup are arithmetic transforms over already-aggregated fields, in
	// manifest order.
	PostGroup []PostGroupTransform
	Output    Output
}

// Source describes what to query.
type Source struct {
	// Entities lists the tables involved; Entities[0] is the base table.
	Entities      []Entity
	Relationships []Relationship
	Conditions    []Condition
	Mapping       []Field
	GroupBy       []string
}

// Base returns the base entity.
func (s Source) Base() Entity {
	if len(s.Entities) == 0 {
		return Entity{}
	}
	return s.Entities[0]
}

// Entity is a logical name bound to a table. In the list form Name == Table.
type Entity struct {
	Name   string
	Table  string
	Fields []string
}

// Relationship is a join descriptor.
type Relationship struct {
	// Type is the declared relationship kind: hasMany, hasOne, one_to_many,
	// one_to_one. Unknown values are kept and rejected by the compiler.
	Type string
	From string
	To   string
	// On holds explicit join column pairs. Empty for the legacy string form,
	// where the join columns are inferred.
	On []ColumnPair
	// Text is the original legacy string, empty for structured relationships.
	Text string
}

// Legacy reports whether the relationship came from the "a hasMany b" form.
func (r Relationship) Legacy() bool { return r.Text != "" }

// ColumnPair is one equality in a join's ON clause.
type ColumnPair struct {
	Left  string
	Right string
}

// Condition operators accepted in the range form. OpShorthand marks the
// {column: value} form, where the value may also be a date sentinel.
const (
	OpShorthand = ""
	OpEq        = "eq"
	OpNeq       = "neq"
	OpGt        = "gt"
	OpGte       = "gte"
	OpLt        = "lt"
	OpLte       = "lte"
)

// SentinelLastMonth expands to the previous calendar month window.
const SentinelLastMonth = "last_month"

// Condition is a single filter.
type Condition struct {
	Column string
	Op     string
	Value  any
}

// Field is one projected column.
type Field struct {
	// Alias is the output column name. Empty for raw passthrough entries.
	Alias string
	// Expr is the source column (or raw expression when Raw is set).
	Expr string
	// Raw marks a bare string mapping entry passed through verbatim.
	Raw bool
	// Function is the aggregate function name, empty for plain columns.
	Function string
	// Parts are the concat operands, in order.
	Parts []Part
}

// Part is one concat operand.
type Part struct {
	Text string
	// Quoted is set when the manifest quoted the operand explicitly, which
	// makes it a literal regardless of its content.
	Quoted bool
}

// FieldTransform rewrites one field's value.
type FieldTransform struct {
	Field  string
	Type   string
	Format string
	// Decimals is nil when not declared.
	Decimals *int
}

// PostGroupTransform computes Field from two arguments after aggregation.
type PostGroupTransform struct {
	Field    string
	Function string
	// Args are field names or literals; resolution happens against each row.
	Args []any
}

// Output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Output describes the export destination.
type Output struct {
	Format    string
	Path      string
	Delimiter string
	Header    bool
	Encoding  string
}
