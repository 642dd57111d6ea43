package manifest

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"etlmanifest/internal/config"
)

// Parse reads and validates the manifest at path. It returns ErrNotFound when
// the file cannot be read and a *ValidationError (matching ErrInvalid) when
// the document is malformed. No partial manifest is ever returned.
func Parse(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "%s: %v", path, err)
	}
	m, err := ParseBytes(data)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Path = path
		}
		return nil, err
	}
	m.Path = path
	return m, nil
}

// ParseBytes validates and normalizes a manifest held in memory.
func ParseBytes(data []byte) (*Manifest, error) {
	m, issues := lint(data)
	if errs := config.Errors(issues); len(errs) > 0 {
		return nil, &ValidationError{Issues: errs}
	}
	return m, nil
}

// Validate returns every issue found in data, warnings included, without
// failing. An empty result means ParseBytes would succeed without warnings.
func Validate(data []byte) []Issue {
	_, issues := lint(data)
	return issues
}

func lint(data []byte) (*Manifest, []Issue) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, []Issue{{Severity: config.SeverityError, Message: err.Error()}}
	}

	d := &decoder{}
	m := d.manifest(&root)
	m.Warnings = warnings(d.issues)
	return m, d.issues
}

func warnings(issues []Issue) []Issue {
	var out []Issue
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			out = append(out, iss)
		}
	}
	return out
}

// decoder walks the YAML node tree, collecting issues as it normalizes.
type decoder struct {
	issues []Issue
}

func (d *decoder) errorf(path, format string, args ...any) {
	d.issues = append(d.issues, Issue{
		Severity: config.SeverityError,
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (d *decoder) warnf(path, format string, args ...any) {
	d.issues = append(d.issues, Issue{
		Severity: config.SeverityWarning,
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (d *decoder) manifest(root *yaml.Node) *Manifest {
	m := &Manifest{}

	doc := resolve(root)
	if doc != nil && doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = resolve(doc.Content[0])
	}
	if doc == nil || doc.Kind != yaml.MappingNode {
		d.errorf("etl", `missing or invalid "etl" section`)
		return m
	}

	jobs := lookup(doc, "etl")
	if jobs == nil || jobs.Kind != yaml.SequenceNode || len(jobs.Content) == 0 {
		d.errorf("etl", `missing or invalid "etl" section: must be a non-empty list of jobs`)
		return m
	}

	seen := map[string]int{}
	for i, n := range jobs.Content {
		path := fmt.Sprintf("etl[%d]", i)
		job, ok := d.job(resolve(n), path)
		if !ok {
			continue
		}
		if first, dup := seen[job.ID]; dup {
			d.warnf(path+".id", "job id %q already used by etl[%d]", job.ID, first)
		} else {
			seen[job.ID] = i
		}
		m.Jobs = append(m.Jobs, job)
	}
	return m
}

func (d *decoder) job(n *yaml.Node, path string) (Job, bool) {
	var job Job
	if n.Kind != yaml.MappingNode {
		d.errorf(path, "job must be a mapping")
		return job, false
	}

	missing := false
	for _, field := range []string{"id", "name", "source", "output"} {
		if isNull(lookup(n, field)) {
			d.errorf(path, "missing required field '%s' in ETL job", field)
			missing = true
		}
	}
	if missing {
		return job, false
	}

	job.ID = d.scalarString(lookup(n, "id"), path+".id")
	job.Name = d.scalarString(lookup(n, "name"), path+".name")
	if desc := lookup(n, "description"); !isNull(desc) {
		job.Description = d.scalarString(desc, path+".description")
	}
	job.Source = d.source(resolve(lookup(n, "source")), path+".source")
	job.Output = d.output(resolve(lookup(n, "output")), path+".output")
	if t := lookup(n, "transform"); !isNull(t) {
		job.Transforms, job.PostGroup = d.transforms(resolve(t), path+".transform")
	}
	return job, true
}

func (d *decoder) source(n *yaml.Node, path string) Source {
	var src Source
	if n.Kind != yaml.MappingNode {
		d.errorf(path, "source must be a mapping")
		return src
	}

	src.Entities = d.entities(resolve(lookup(n, "entities")), path+".entities")

	if r := lookup(n, "relationships"); !isNull(r) {
		r = resolve(r)
		if r.Kind != yaml.SequenceNode {
			d.errorf(path+".relationships", `"relationships" must be a list`)
		} else {
			for i, item := range r.Content {
				if rel, ok := d.relationship(resolve(item), fmt.Sprintf("%s.relationships[%d]", path, i)); ok {
					src.Relationships = append(src.Relationships, rel)
				}
			}
		}
	}

	if c := lookup(n, "conditions"); !isNull(c) {
		c = resolve(c)
		if c.Kind != yaml.SequenceNode {
			d.errorf(path+".conditions", `"conditions" must be a list`)
		} else {
			for i, item := range c.Content {
				src.Conditions = append(src.Conditions, d.conditions(resolve(item), fmt.Sprintf("%s.conditions[%d]", path, i))...)
			}
		}
	}

	mp := resolve(lookup(n, "mapping"))
	if isNull(mp) || mp.Kind != yaml.SequenceNode || len(mp.Content) == 0 {
		d.errorf(path+".mapping", `missing or invalid "mapping": must be a non-empty list`)
	} else {
		for i, item := range mp.Content {
			src.Mapping = append(src.Mapping, d.fields(resolve(item), fmt.Sprintf("%s.mapping[%d]", path, i))...)
		}
	}

	if g := lookup(n, "group_by"); !isNull(g) {
		src.GroupBy = d.stringList(resolve(g), path+".group_by")
	}
	return src
}

func (d *decoder) entities(n *yaml.Node, path string) []Entity {
	if isNull(n) {
		d.errorf(path, `missing or invalid "entities"`)
		return nil
	}

	var out []Entity
	switch n.Kind {
	case yaml.SequenceNode:
		for i, item := range n.Content {
			name := d.scalarString(resolve(item), fmt.Sprintf("%s[%d]", path, i))
			if name != "" {
				out = append(out, Entity{Name: name, Table: name})
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			name := n.Content[i].Value
			def := resolve(n.Content[i+1])
			e := Entity{Name: name, Table: name}
			switch {
			case isNull(def):
			case def.Kind == yaml.ScalarNode:
				e.Table = def.Value
			case def.Kind == yaml.MappingNode:
				if t := lookup(def, "table"); !isNull(t) {
					e.Table = d.scalarString(resolve(t), path+"."+name+".table")
				}
				if f := lookup(def, "fields"); !isNull(f) {
					e.Fields = d.stringList(resolve(f), path+"."+name+".fields")
				}
			default:
				d.errorf(path+"."+name, "entity must be a table name or a mapping with a table")
				continue
			}
			out = append(out, e)
		}
	default:
		d.errorf(path, `"entities" must be a list of tables or a mapping of entities`)
		return nil
	}

	if len(out) == 0 {
		d.errorf(path, `"entities" must not be empty`)
	}
	return out
}

func (d *decoder) relationship(n *yaml.Node, path string) (Relationship, bool) {
	switch n.Kind {
	case yaml.ScalarNode:
		text := strings.TrimSpace(n.Value)
		rel := Relationship{Text: text}
		if parts := strings.Fields(text); len(parts) == 3 {
			rel.From, rel.Type, rel.To = parts[0], parts[1], parts[2]
		}
		return rel, true

	case yaml.MappingNode:
		rel := Relationship{
			Type: d.optString(n, "type", path),
			From: d.optString(n, "from", path),
			To:   d.optString(n, "to", path),
		}
		on := resolve(lookup(n, "on"))
		switch {
		case isNull(on):
		case on.Kind == yaml.MappingNode:
			for i := 0; i+1 < len(on.Content); i += 2 {
				rel.On = append(rel.On, ColumnPair{
					Left:  on.Content[i].Value,
					Right: d.scalarString(resolve(on.Content[i+1]), path+".on."+on.Content[i].Value),
				})
			}
		default:
			d.errorf(path+".on", `"on" must be a mapping of left column to right column`)
		}
		return rel, true
	}

	d.errorf(path, "relationship must be a string or a mapping")
	return Relationship{}, false
}

func (d *decoder) conditions(n *yaml.Node, path string) []Condition {
	if n.Kind != yaml.MappingNode {
		d.errorf(path, "condition must be a mapping of column to value")
		return nil
	}

	var out []Condition
	for i := 0; i+1 < len(n.Content); i += 2 {
		col := n.Content[i].Value
		val := resolve(n.Content[i+1])
		if val.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(val.Content); j += 2 {
				out = append(out, Condition{
					Column: col,
					Op:     val.Content[j].Value,
					Value:  d.scalarValue(resolve(val.Content[j+1]), path+"."+col+"."+val.Content[j].Value),
				})
			}
			continue
		}
		out = append(out, Condition{Column: col, Op: OpShorthand, Value: d.scalarValue(val, path+"."+col)})
	}
	return out
}

func (d *decoder) fields(n *yaml.Node, path string) []Field {
	switch n.Kind {
	case yaml.ScalarNode:
		return []Field{parseFieldString(n.Value)}

	case yaml.MappingNode:
		if !isNull(lookup(n, "source")) && !isNull(lookup(n, "target")) {
			return []Field{d.targetField(n, path)}
		}
		var out []Field
		for i := 0; i+1 < len(n.Content); i += 2 {
			alias := n.Content[i].Value
			def := resolve(n.Content[i+1])
			switch def.Kind {
			case yaml.ScalarNode:
				out = append(out, Field{Alias: alias, Expr: strings.TrimSpace(def.Value)})
			case yaml.MappingNode:
				out = append(out, d.functionField(alias, def, path+"."+alias))
			default:
				d.errorf(path+"."+alias, "mapping value must be a column or a function definition")
			}
		}
		return out
	}

	d.errorf(path, "mapping entry must be a string or a mapping")
	return nil
}

// parseFieldString handles "alias: table.column" and bare passthrough strings.
func parseFieldString(s string) Field {
	if alias, expr, ok := strings.Cut(s, ":"); ok {
		return Field{Alias: strings.TrimSpace(alias), Expr: strings.TrimSpace(expr)}
	}
	return Field{Expr: strings.TrimSpace(s), Raw: true}
}

func (d *decoder) functionField(alias string, n *yaml.Node, path string) Field {
	f := Field{Alias: alias, Function: d.optString(n, "function", path)}
	if c := lookup(n, "column"); !isNull(c) {
		f.Expr = strings.TrimSpace(d.scalarString(resolve(c), path+".column"))
	}

	cols := lookup(n, "columns")
	switch {
	case !isNull(cols):
		cols = resolve(cols)
		if cols.Kind != yaml.SequenceNode {
			d.errorf(path+".columns", `"columns" must be a list`)
			return f
		}
		for i, c := range cols.Content {
			f.Parts = append(f.Parts, Part{Text: d.scalarString(resolve(c), fmt.Sprintf("%s.columns[%d]", path, i))})
		}
	case f.Function == "concat" && f.Expr != "":
		f.Parts = splitParts(f.Expr)
	}
	return f
}

// targetField handles the {source, target, aggregate} mapping form.
func (d *decoder) targetField(n *yaml.Node, path string) Field {
	f := Field{
		Alias:    d.optString(n, "target", path),
		Expr:     strings.TrimSpace(d.optString(n, "source", path)),
		Function: d.optString(n, "aggregate", path),
	}
	if f.Function == "concat" {
		f.Parts = splitParts(f.Expr)
	}
	return f
}

// splitParts splits a comma-separated concat operand list. Operands wrapped in
// double or single quotes are literals; quotes protect embedded commas.
func splitParts(s string) []Part {
	var (
		parts []Part
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		raw := strings.TrimSpace(cur.String())
		cur.Reset()
		if raw == "" {
			return
		}
		if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
			parts = append(parts, Part{Text: raw[1 : len(raw)-1], Quoted: true})
			return
		}
		parts = append(parts, Part{Text: raw})
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == ',':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return parts
}

func (d *decoder) transforms(n *yaml.Node, path string) ([]FieldTransform, []PostGroupTransform) {
	if n.Kind != yaml.MappingNode {
		d.errorf(path, `"transform" must be a mapping of field to transform`)
		return nil, nil
	}

	var (
		fields []FieldTransform
		post   []PostGroupTransform
	)
	for i := 0; i+1 < len(n.Content); i += 2 {
		field := n.Content[i].Value
		def := resolve(n.Content[i+1])
		fpath := path + "." + field
		if def.Kind != yaml.MappingNode {
			d.errorf(fpath, "transform must be a mapping")
			continue
		}

		if fn := lookup(def, "function"); !isNull(fn) {
			pg := PostGroupTransform{Field: field, Function: d.scalarString(resolve(fn), fpath+".function")}
			args := resolve(lookup(def, "args"))
			if isNull(args) || args.Kind != yaml.SequenceNode {
				d.errorf(fpath+".args", `post-group transform requires an "args" list`)
				continue
			}
			for j, a := range args.Content {
				pg.Args = append(pg.Args, d.scalarValue(resolve(a), fmt.Sprintf("%s.args[%d]", fpath, j)))
			}
			post = append(post, pg)
			continue
		}

		ft := FieldTransform{
			Field:  field,
			Type:   d.optString(def, "type", fpath),
			Format: d.optString(def, "format", fpath),
		}
		if dec := lookup(def, "decimals"); !isNull(dec) {
			var n int
			if err := resolve(dec).Decode(&n); err != nil || n < 0 {
				d.errorf(fpath+".decimals", "decimals must be a non-negative integer")
			} else {
				ft.Decimals = &n
			}
		}
		fields = append(fields, ft)
	}
	return fields, post
}

func (d *decoder) output(n *yaml.Node, path string) Output {
	out := Output{Header: true}
	if n.Kind != yaml.MappingNode {
		d.errorf(path, "output must be a mapping")
		return out
	}

	for _, field := range []string{"format", "path"} {
		if isNull(lookup(n, field)) {
			d.errorf(path, "missing required field '%s' in output section", field)
		}
	}
	out.Format = d.optString(n, "format", path)
	out.Path = d.optString(n, "path", path)
	if out.Format != "" && out.Format != FormatCSV && out.Format != FormatJSON {
		d.errorf(path+".format", `invalid output format %q: must be either "csv" or "json"`, out.Format)
	}

	out.Delimiter = d.optString(n, "delimiter", path)
	if out.Delimiter != "" && utf8.RuneCountInString(out.Delimiter) != 1 {
		d.errorf(path+".delimiter", "delimiter must be a single character, got %q", out.Delimiter)
	}
	if h := lookup(n, "header"); !isNull(h) {
		if err := resolve(h).Decode(&out.Header); err != nil {
			d.errorf(path+".header", "header must be a boolean")
		}
	}
	out.Encoding = d.optString(n, "encoding", path)
	return out
}

func (d *decoder) stringList(n *yaml.Node, path string) []string {
	if n.Kind != yaml.SequenceNode {
		d.errorf(path, "must be a list of strings")
		return nil
	}
	out := make([]string, 0, len(n.Content))
	for i, item := range n.Content {
		out = append(out, d.scalarString(resolve(item), fmt.Sprintf("%s[%d]", path, i)))
	}
	return out
}

func (d *decoder) optString(n *yaml.Node, key, path string) string {
	v := lookup(n, key)
	if isNull(v) {
		return ""
	}
	return d.scalarString(resolve(v), path+"."+key)
}

func (d *decoder) scalarString(n *yaml.Node, path string) string {
	if n == nil || n.Kind != yaml.ScalarNode {
		d.errorf(path, "must be a scalar value")
		return ""
	}
	return n.Value
}

// scalarValue decodes a scalar into its natural Go type (string, int,
// float64, bool or nil).
func (d *decoder) scalarValue(n *yaml.Node, path string) any {
	if n == nil || n.Kind != yaml.ScalarNode {
		d.errorf(path, "must be a scalar value")
		return nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		d.errorf(path, "cannot decode value: %v", err)
		return nil
	}
	return v
}

// lookup returns the value node for key in a mapping node, or nil.
func lookup(n *yaml.Node, key string) *yaml.Node {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	n = resolve(n)
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}
