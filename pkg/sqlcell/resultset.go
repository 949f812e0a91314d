package sqlcell

import (
	"database/sql"
	"fmt"
)

// ResultSet holds the rows produced by the final statement of a cell.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Count   int      `json:"count"`
}

// IsScalar reports whether the result is a single value.
func (r *ResultSet) IsScalar() bool {
	return r != nil && len(r.Rows) == 1 && len(r.Rows[0]) == 1
}

// Scalar returns the single value of a one-row one-column result.
func (r *ResultSet) Scalar() any {
	if !r.IsScalar() {
		return nil
	}
	return r.Rows[0][0]
}

// Empty reports whether the result has no rows.
func (r *ResultSet) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// CollectRows drains sql.Rows into a ResultSet. Byte slices are converted
// to strings so results stay printable and JSON-encodable.
func CollectRows(rows *sql.Rows) (*ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	result := &ResultSet{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	result.Count = len(result.Rows)
	return result, nil
}
