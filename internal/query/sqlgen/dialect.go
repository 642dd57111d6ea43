// Package sqlgen renders query plans as parameterized SQL. Values are always
// bound as parameters; only identifiers chosen by the manifest author
// (tables, columns, aliases) and concat literals appear in the SQL text.
package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Dialect holds the rendering rules of one database family.
type Dialect struct {
	name        string
	placeholder func(n int) string
	ident       func(string) string
	literal     func(string) string
	concat      func([]string) string
	bind        func(any) any
	// timeExpr wraps both sides of a comparison against a time value. Nil
	// leaves them as is.
	timeExpr func(string) string
}

// Name returns the dialect name.
func (d *Dialect) Name() string { return d.name }

// QuoteIdent quotes an alias.
func (d *Dialect) QuoteIdent(s string) string { return d.ident(s) }

// QuoteLiteral quotes a string literal.
func (d *Dialect) QuoteLiteral(s string) string { return d.literal(s) }

// sqliteTime is the layout the demo schema stores timestamps in.
const sqliteTime = "2006-01-02 15:04:05"

var (
	// SQLite renders "?" placeholders and "||" concatenation. Times are bound
	// as text and both sides of a time comparison go through datetime(), so
	// "T" separators, zone suffixes and fractional seconds in TEXT columns
	// compare by instant rather than by string.
	SQLite = &Dialect{
		name:        "sqlite",
		placeholder: func(int) string { return "?" },
		ident:       doubleQuote,
		literal:     singleQuote,
		concat:      pipes,
		bind: func(v any) any {
			if t, ok := v.(time.Time); ok {
				return t.Format(sqliteTime)
			}
			return v
		},
		timeExpr: func(s string) string { return "datetime(" + s + ")" },
	}

	// Postgres renders "$n" placeholders and "||" concatenation.
	Postgres = &Dialect{
		name:        "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		ident:       pq.QuoteIdentifier,
		literal:     pq.QuoteLiteral,
		concat:      pipes,
		bind:        identity,
	}

	// MySQL renders "?" placeholders and CONCAT().
	MySQL = &Dialect{
		name:        "mysql",
		placeholder: func(int) string { return "?" },
		ident: func(s string) string {
			return "`" + strings.ReplaceAll(s, "`", "``") + "`"
		},
		literal: func(s string) string {
			s = strings.ReplaceAll(s, `\`, `\\`)
			return singleQuote(s)
		},
		concat: concatFunc,
		bind:   identity,
	}

	// MSSQL renders "@pN" placeholders and CONCAT().
	MSSQL = &Dialect{
		name:        "mssql",
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		ident: func(s string) string {
			return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
		},
		literal: singleQuote,
		concat:  concatFunc,
		bind:    identity,
	}
)

var dialects = map[string]*Dialect{
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"postgres":   Postgres,
	"postgresql": Postgres,
	"pgx":        Postgres,
	"mysql":      MySQL,
	"mssql":      MSSQL,
	"sqlserver":  MSSQL,
}

// ByName returns the dialect for a storage kind or driver name.
func ByName(name string) (*Dialect, bool) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

func doubleQuote(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }
func singleQuote(s string) string { return `'` + strings.ReplaceAll(s, `'`, `''`) + `'` }

func pipes(parts []string) string { return "(" + strings.Join(parts, " || ") + ")" }

func concatFunc(parts []string) string { return "CONCAT(" + strings.Join(parts, ", ") + ")" }

func identity(v any) any { return v }
