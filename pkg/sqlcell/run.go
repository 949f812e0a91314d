package sqlcell

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/noteable-io/noteable-notebook-magics/pkg/connections"
)

// Options control cell execution.
type Options struct {
	// Params supplies values for {{name}} template references.
	Params map[string]any

	// Feedback receives human-oriented progress lines such as
	// "2 rows affected.". Nil disables feedback.
	Feedback func(line string)
}

func (o Options) feedback(line string) {
	if o.Feedback != nil {
		o.Feedback(line)
	}
}

// ErrManagedTransaction rejects explicit transaction control inside cells.
var ErrManagedTransaction = errors.New("transactions are managed for you; do not use BEGIN in a SQL cell")

// Run executes the statements of a cell against a registered connection.
// Every statement is expanded against Options.Params; only the final
// statement produces a ResultSet. After each statement the work is
// committed unless the connection's dialect opts out of autocommit.
func Run(ctx context.Context, conn *connections.Connection, script string, opts Options) (*ResultSet, error) {
	statements := SplitStatements(script)
	if len(statements) == 0 {
		return nil, nil
	}

	db, err := conn.DB()
	if err != nil {
		return nil, err
	}
	style := PlaceholderFor(conn.Dialect())

	var result *ResultSet
	for i, stmt := range statements {
		if isTransactionControl(stmt) {
			return nil, ErrManagedTransaction
		}

		expanded, args, err := Expand(stmt, opts.Params, style)
		if err != nil {
			return nil, err
		}

		last := i == len(statements)-1
		if last && returnsRows(expanded) {
			rows, err := db.QueryContext(ctx, expanded, args...)
			if err != nil {
				return nil, runError(conn, err)
			}
			result, err = CollectRows(rows)
			rows.Close()
			if err != nil {
				return nil, runError(conn, err)
			}
		} else {
			res, err := db.ExecContext(ctx, expanded, args...)
			if err != nil {
				return nil, runError(conn, err)
			}
			if n, err := res.RowsAffected(); err == nil && n > 0 {
				opts.feedback(fmt.Sprintf("%d rows affected.", n))
			} else if last {
				opts.feedback("Done.")
			}
		}

		if connections.NeedsCommit(conn.Dialect()) {
			// Not every driver accepts a bare COMMIT outside an
			// explicit transaction; a failure here is harmless.
			_, _ = db.ExecContext(ctx, "COMMIT")
		}
	}
	return result, nil
}

// runError classifies a statement failure. Connection-level failures
// dispose the pool so the next cell starts from a fresh connection.
func runError(conn *connections.Connection, err error) error {
	if isFatal(err) {
		if resetErr := conn.Reset(); resetErr == nil {
			return fmt.Errorf("%w; the connection was reset, please re-run the cell", err)
		}
	}
	return err
}

func isFatal(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isTransactionControl(stmt string) bool {
	word := leadingWord(stmt)
	return word == "begin" || word == "start"
}

// returnsRows guesses whether a statement produces a row set. Statements
// that do not are executed through Exec so drivers report rows affected.
func returnsRows(stmt string) bool {
	switch leadingWord(stmt) {
	case "select", "with", "show", "describe", "explain", "values", "pragma", "table":
		return true
	}
	return false
}

func leadingWord(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
