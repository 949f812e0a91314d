// Package dataloader ingests dataset files into the local DuckDB database
// so they can be queried as tables from SQL cells.
package dataloader

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/noteable-io/noteable-notebook-magics/pkg/sqlcell"
)

// defaultPreviewRows is how many rows the post-load preview returns.
const defaultPreviewRows = 10

// Options adjust how a file is loaded.
type Options struct {
	// Delimiter overrides the CSV field delimiter. Ignored for other
	// formats.
	Delimiter string

	// PreviewRows caps the preview result. Zero means the default.
	PreviewRows int
}

// Loader creates tables in the local database from data files.
type Loader struct {
	db *sql.DB
}

// New returns a loader writing into db, which must be a DuckDB pool.
func New(db *sql.DB) *Loader {
	return &Loader{db: db}
}

// Load creates or replaces table from the file at path, inferring the
// format from the file extension. It returns a preview of the loaded rows
// and a hint for querying the new table.
func (l *Loader) Load(ctx context.Context, path, table string, opts Options) (*sqlcell.ResultSet, string, error) {
	reader, err := readerFor(path, opts)
	if err != nil {
		return nil, "", err
	}

	create := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM %s`, quoteIdent(table), reader)
	if _, err := l.db.ExecContext(ctx, create); err != nil {
		return nil, "", fmt.Errorf("loading %s into table %s: %w", path, table, err)
	}

	previewRows := opts.PreviewRows
	if previewRows <= 0 {
		previewRows = defaultPreviewRows
	}
	rows, err := l.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, quoteIdent(table), previewRows))
	if err != nil {
		return nil, "", fmt.Errorf("previewing table %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	preview, err := sqlcell.CollectRows(rows)
	if err != nil {
		return nil, "", err
	}

	hint := fmt.Sprintf("Query the data with: SELECT * FROM %s", quoteIdent(table))
	return preview, hint, nil
}

// readerFor picks the DuckDB table function for a file.
func readerFor(path string, opts Options) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		if opts.Delimiter != "" {
			return fmt.Sprintf("read_csv(%s, delim=%s)", quoteString(path), quoteString(opts.Delimiter)), nil
		}
		return fmt.Sprintf("read_csv(%s)", quoteString(path)), nil
	case ".json", ".jsonl", ".ndjson":
		return fmt.Sprintf("read_json(%s)", quoteString(path)), nil
	case ".parquet", ".pq":
		return fmt.Sprintf("read_parquet(%s)", quoteString(path)), nil
	default:
		return "", fmt.Errorf("unsupported file format %q; expected csv, json, or parquet", filepath.Ext(path))
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
