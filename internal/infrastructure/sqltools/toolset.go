package sqltools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kirillkom/kb-router/internal/core/ports"
)

const maxResultRows = 50

// Toolset exposes the Postgres introspection and query tools bound to the
// structured-data agent.
type Toolset struct {
	db *sql.DB
}

func New(db *sql.DB) *Toolset {
	return &Toolset{db: db}
}

func (t *Toolset) Tools() []ports.Tool {
	return []ports.Tool{
		funcTool{
			name:        "sql_db_list_tables",
			description: "List table names in the public schema. Input is ignored.",
			call:        t.listTables,
		},
		funcTool{
			name:        "sql_db_schema",
			description: "Describe columns of the given tables. Input: comma-separated table names.",
			call:        t.describeTables,
		},
		funcTool{
			name:        "sql_db_query",
			description: "Run a SELECT statement and return the result rows. Input: the SQL query.",
			call:        t.runQuery,
		},
		funcTool{
			name:        "sql_db_execute",
			description: "Run an INSERT, UPDATE or DELETE statement. Input: the SQL statement. Returns affected row count.",
			call:        t.runExec,
		},
	}
}

type funcTool struct {
	name        string
	description string
	call        func(ctx context.Context, input string) (string, error)
}

func (t funcTool) Name() string        { return t.name }
func (t funcTool) Description() string { return t.description }
func (t funcTool) Call(ctx context.Context, input string) (string, error) {
	return t.call(ctx, input)
}

func (t *Toolset) listTables(ctx context.Context, _ string) (string, error) {
	rows, err := t.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
ORDER BY table_name
`)
	if err != nil {
		return "", fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate tables: %w", err)
	}
	if len(names) == 0 {
		return "no tables", nil
	}
	return strings.Join(names, ", "), nil
}

func (t *Toolset) describeTables(ctx context.Context, input string) (string, error) {
	var tables []string
	for _, name := range strings.Split(input, ",") {
		if name = strings.TrimSpace(name); name != "" {
			tables = append(tables, name)
		}
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("no table names given")
	}

	var b strings.Builder
	for _, table := range tables {
		rows, err := t.db.QueryContext(ctx, `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'public' AND table_name = $1
ORDER BY ordinal_position
`, table)
		if err != nil {
			return "", fmt.Errorf("describe %s: %w", table, err)
		}

		var cols []string
		for rows.Next() {
			var name, typ string
			if err := rows.Scan(&name, &typ); err != nil {
				rows.Close()
				return "", fmt.Errorf("scan column: %w", err)
			}
			cols = append(cols, name+" "+typ)
		}
		closeErr := rows.Err()
		rows.Close()
		if closeErr != nil {
			return "", fmt.Errorf("iterate columns: %w", closeErr)
		}

		if len(cols) == 0 {
			fmt.Fprintf(&b, "%s: not found\n", table)
			continue
		}
		fmt.Fprintf(&b, "%s (%s)\n", table, strings.Join(cols, ", "))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (t *Toolset) runQuery(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("empty query")
	}

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("columns: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, " | "))
	b.WriteString("\n")

	count := 0
	for rows.Next() {
		if count >= maxResultRows {
			fmt.Fprintf(&b, "... truncated at %d rows\n", maxResultRows)
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("scan row: %w", err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = renderValue(v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate rows: %w", err)
	}
	if count == 0 {
		return "no rows", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (t *Toolset) runExec(ctx context.Context, input string) (string, error) {
	stmt := strings.TrimSpace(input)
	if stmt == "" {
		return "", fmt.Errorf("empty statement")
	}

	res, err := t.db.ExecContext(ctx, stmt)
	if err != nil {
		return "", fmt.Errorf("execute: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("rows affected: %w", err)
	}
	return fmt.Sprintf("ok, %d rows affected", affected), nil
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
