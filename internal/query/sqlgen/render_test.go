package sqlgen

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etlmanifest/internal/manifest"
	"etlmanifest/internal/query"
)

var now = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func ordersPlan(t *testing.T) *query.Plan {
	t.Helper()

	src := manifest.Source{
		Entities: []manifest.Entity{
			{Name: "users", Table: "users"},
			{Name: "orders", Table: "orders"},
		},
		Relationships: []manifest.Relationship{
			{Type: "hasMany", From: "users", To: "orders", Text: "users hasMany orders"},
		},
		Conditions: []manifest.Condition{
			{Column: "users.status", Value: "active"},
			{Column: "orders.created_at", Value: manifest.SentinelLastMonth},
			{Column: "orders.refunded_at", Value: nil},
		},
		Mapping: []manifest.Field{
			{Alias: "user_id", Expr: "users.id"},
			{Expr: "users.email", Raw: true},
			{Alias: "order_count", Expr: "orders.id", Function: "count"},
			{Alias: "total", Expr: "orders.amount", Function: "sum"},
			{Alias: "label", Function: "concat", Parts: []manifest.Part{
				{Text: "users.name"}, {Text: " <"}, {Text: "users.email"}, {Text: ">"},
			}},
		},
		GroupBy: []string{"users.id", "users.email", "users.name"},
	}

	plan, err := query.NewCompiler(query.WithClock(func() time.Time { return now })).Compile(src)
	require.NoError(t, err)
	return plan
}

func TestRenderGolden(t *testing.T) {
	t.Parallel()

	for _, d := range []*Dialect{SQLite, Postgres, MySQL, MSSQL} {
		t.Run(d.Name(), func(t *testing.T) {
			t.Parallel()

			sql, args, err := Render(ordersPlan(t), d)
			require.NoError(t, err)

			g := goldie.New(t)
			g.Assert(t, "orders_"+d.Name(), []byte(sql+"\n"))

			require.Len(t, args, 3)
			assert.Equal(t, "active", args[0])
		})
	}
}

func TestRenderBindsTimes(t *testing.T) {
	t.Parallel()

	_, args, err := Render(ordersPlan(t), SQLite)
	require.NoError(t, err)
	assert.Equal(t, []any{"active", "2024-02-01 00:00:00", "2024-02-29 23:59:59"}, args)

	_, args, err = Render(ordersPlan(t), Postgres)
	require.NoError(t, err)
	start, ok := args[1].(time.Time)
	require.True(t, ok, "postgres binds time.Time as is")
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestRenderNeverInterpolatesValues(t *testing.T) {
	t.Parallel()

	plan := &query.Plan{
		Table:       "users",
		Filters:     []query.Filter{{Column: "users.name", Op: query.Eq, Value: "x' OR 1=1 --"}},
		Projections: []query.Projection{{Expr: "users.id", Alias: "id"}},
	}
	sql, args, err := Render(plan, SQLite)
	require.NoError(t, err)
	assert.Equal(t, `SELECT users.id AS "id" FROM users WHERE users.name = ?`, sql)
	assert.NotContains(t, sql, "OR 1=1")
	assert.Equal(t, []any{"x' OR 1=1 --"}, args)
}

func TestRenderConcatLiteralQuoting(t *testing.T) {
	t.Parallel()

	plan := &query.Plan{
		Table: "users",
		Projections: []query.Projection{{Alias: "who", Agg: query.Concat, Operands: []query.Operand{
			{Value: "users.name", Column: true},
			{Value: "'s"},
		}}},
	}

	cases := map[*Dialect]string{
		SQLite:   `SELECT (users.name || '''s') AS "who" FROM users`,
		Postgres: `SELECT (users.name || '''s') AS "who" FROM users`,
		MySQL:    "SELECT CONCAT(users.name, '''s') AS `who` FROM users",
		MSSQL:    `SELECT CONCAT(users.name, '''s') AS [who] FROM users`,
	}
	for d, want := range cases {
		sql, args, err := Render(plan, d)
		require.NoError(t, err)
		assert.Equal(t, want, sql, d.Name())
		assert.Empty(t, args)
	}
}

func TestRenderSingleOperandConcat(t *testing.T) {
	t.Parallel()

	plan := &query.Plan{
		Table: "users",
		Projections: []query.Projection{{Alias: "n", Agg: query.Concat, Operands: []query.Operand{
			{Value: "users.name", Column: true},
		}}},
	}
	sql, _, err := Render(plan, MSSQL)
	require.NoError(t, err)
	assert.Equal(t, "SELECT users.name AS [n] FROM users", sql)
}

func TestRenderPlaceholders(t *testing.T) {
	t.Parallel()

	plan := &query.Plan{
		Table: "t",
		Filters: []query.Filter{
			{Column: "t.a", Op: query.Gte, Value: 1},
			{Column: "t.b", Op: query.IsNotNull},
			{Column: "t.c", Op: query.Lt, Value: 2},
		},
	}
	cases := map[*Dialect]string{
		SQLite:   "SELECT * FROM t WHERE t.a >= ? AND t.b IS NOT NULL AND t.c < ?",
		Postgres: "SELECT * FROM t WHERE t.a >= $1 AND t.b IS NOT NULL AND t.c < $2",
		MySQL:    "SELECT * FROM t WHERE t.a >= ? AND t.b IS NOT NULL AND t.c < ?",
		MSSQL:    "SELECT * FROM t WHERE t.a >= @p1 AND t.b IS NOT NULL AND t.c < @p2",
	}
	for d, want := range cases {
		sql, args, err := Render(plan, d)
		require.NoError(t, err)
		assert.Equal(t, want, sql, d.Name())
		assert.Equal(t, []any{1, 2}, args)
	}
}

func TestRenderTimeComparisons(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC)
	plan := &query.Plan{
		Table: "orders",
		Filters: []query.Filter{
			{Column: "orders.created_at", Op: query.Lte, Value: at},
			{Column: "orders.status", Op: query.Eq, Value: "paid"},
		},
	}
	cases := map[*Dialect]string{
		SQLite:   "SELECT * FROM orders WHERE datetime(orders.created_at) <= datetime(?) AND orders.status = ?",
		Postgres: "SELECT * FROM orders WHERE orders.created_at <= $1 AND orders.status = $2",
		MSSQL:    "SELECT * FROM orders WHERE orders.created_at <= @p1 AND orders.status = @p2",
	}
	for d, want := range cases {
		sql, _, err := Render(plan, d)
		require.NoError(t, err)
		assert.Equal(t, want, sql, d.Name())
	}

	_, args, err := Render(plan, SQLite)
	require.NoError(t, err)
	assert.Equal(t, []any{"2024-02-29 23:59:59", "paid"}, args)
}

func TestRenderErrors(t *testing.T) {
	t.Parallel()

	_, _, err := Render(nil, SQLite)
	assert.True(t, errors.Is(err, ErrRender))

	_, _, err = Render(&query.Plan{Table: "t"}, nil)
	assert.True(t, errors.Is(err, ErrRender))

	_, _, err = Render(&query.Plan{Table: "t", Projections: []query.Projection{{Alias: "x", Agg: query.Concat}}}, SQLite)
	assert.True(t, errors.Is(err, ErrRender))

	_, _, err = Render(&query.Plan{Table: "t", Projections: []query.Projection{{Alias: "x", Agg: query.Aggregate(42)}}}, SQLite)
	assert.True(t, errors.Is(err, ErrRender))
}

func TestByName(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]*Dialect{
		"sqlite": SQLite, "SQLite3": SQLite, "postgres": Postgres, "pgx": Postgres,
		"mysql": MySQL, "mssql": MSSQL, "sqlserver": MSSQL,
	} {
		got, ok := ByName(name)
		require.True(t, ok, name)
		assert.Same(t, want, got, name)
	}
	_, ok := ByName("oracle")
	assert.False(t, ok)
}
