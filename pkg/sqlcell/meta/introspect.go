package meta

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/noteable-io/noteable-notebook-magics/pkg/connections"
	"github.com/noteable-io/noteable-notebook-magics/pkg/sqlcell"
)

// builderFor returns a statement builder using the bind syntax of the
// connection's dialect.
func builderFor(conn *connections.Connection) sq.StatementBuilderType {
	if sqlcell.PlaceholderFor(conn.Dialect()) == sqlcell.Dollar {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// schemaFilter builds a predicate for an optional schema argument. A "*"
// in the argument acts as a wildcard.
func schemaFilter(column, arg string) sq.Sqlizer {
	if strings.Contains(arg, "*") {
		return sq.Like{column: strings.ReplaceAll(arg, "*", "%")}
	}
	return sq.Eq{column: arg}
}

func query(ctx context.Context, conn *connections.Connection, qb sq.SelectBuilder) (*sqlcell.ResultSet, error) {
	statement, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building introspection query: %w", err)
	}

	db, err := conn.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("querying information_schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return sqlcell.CollectRows(rows)
}

func runSchemas(verbose bool) func(context.Context, *connections.Connection, []string) (*sqlcell.ResultSet, error) {
	return func(ctx context.Context, conn *connections.Connection, args []string) (*sqlcell.ResultSet, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf(`\schemas takes no arguments`)
		}
		b := builderFor(conn)

		qb := b.Select("schema_name").
			From("information_schema.schemata").
			OrderBy("schema_name")
		if verbose {
			qb = b.Select("s.schema_name", "count(t.table_name) AS table_count").
				From("information_schema.schemata s").
				LeftJoin("information_schema.tables t ON t.table_schema = s.schema_name").
				GroupBy("s.schema_name").
				OrderBy("s.schema_name")
		}
		return query(ctx, conn, qb)
	}
}

func runRelations(tables, views bool) func(context.Context, *connections.Connection, []string) (*sqlcell.ResultSet, error) {
	return func(ctx context.Context, conn *connections.Connection, args []string) (*sqlcell.ResultSet, error) {
		if len(args) > 1 {
			return nil, fmt.Errorf("expected at most one schema argument, got %d", len(args))
		}
		var kinds []string
		if tables {
			kinds = append(kinds, "BASE TABLE")
		}
		if views {
			kinds = append(kinds, "VIEW")
		}

		qb := builderFor(conn).
			Select("table_schema", "table_name", "table_type").
			From("information_schema.tables").
			Where(sq.Eq{"table_type": kinds}).
			OrderBy("table_schema", "table_name")
		if len(args) > 0 {
			qb = qb.Where(schemaFilter("table_schema", args[0]))
		}
		return query(ctx, conn, qb)
	}
}

func runDescribe(ctx context.Context, conn *connections.Connection, args []string) (*sqlcell.ResultSet, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf(`\describe requires a relation name, like \describe public.users`)
	}

	relation := args[0]
	var schema string
	if i := strings.Index(relation, "."); i >= 0 {
		schema, relation = relation[:i], relation[i+1:]
	}

	qb := builderFor(conn).
		Select("column_name", "data_type", "is_nullable", "column_default").
		From("information_schema.columns").
		Where(sq.Eq{"table_name": relation}).
		OrderBy("ordinal_position")
	if schema != "" {
		qb = qb.Where(sq.Eq{"table_schema": schema})
	}

	result, err := query(ctx, conn, qb)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return nil, fmt.Errorf("relation %q not found", args[0])
	}
	return result, nil
}
