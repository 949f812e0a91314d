package sqlcell

import (
	"context"
	"io"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteable-io/noteable-notebook-magics/pkg/connections"
)

func mockConnection(t *testing.T, dialect, dsn string) (*connections.Connection, sqlmock.Sqlmock) {
	t.Helper()

	_, mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)

	conn, err := connections.NewConnection("@mock", "Mock DB", dialect, "sqlmock", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, mock
}

func TestRun_SelectProducesResultSet(t *testing.T) {
	conn, mock := mockConnection(t, "postgresql", "run_select")
	mock.ExpectQuery(regexp.QuoteMeta("select id, name from users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "ada").
			AddRow(2, "grace"))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	result, err := Run(context.Background(), conn, "select id, name from users", Options{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{"id", "name"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "ada", result.Rows[0][1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_TemplateBindsDollarPlaceholders(t *testing.T) {
	conn, mock := mockConnection(t, "postgresql", "run_template")
	mock.ExpectQuery(regexp.QuoteMeta("select name from users where id = $1")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ada"))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	result, err := Run(context.Background(), conn,
		"select name from users where id = {{user_id}}",
		Options{Params: map[string]any{"user_id": 7}})
	require.NoError(t, err)
	assert.True(t, result.IsScalar())
	assert.Equal(t, "ada", result.Scalar())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_MultipleStatements(t *testing.T) {
	conn, mock := mockConnection(t, "postgresql", "run_multi")
	mock.ExpectExec(regexp.QuoteMeta("insert into t values (1), (2)")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select count(*) from t")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	var feedback []string
	result, err := Run(context.Background(), conn,
		"insert into t values (1), (2); select count(*) from t",
		Options{Feedback: func(line string) { feedback = append(feedback, line) }})
	require.NoError(t, err)
	assert.Equal(t, []string{"2 rows affected."}, feedback)
	assert.Equal(t, int64(2), result.Scalar())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_DMLFeedback(t *testing.T) {
	conn, mock := mockConnection(t, "postgresql", "run_dml")
	mock.ExpectExec(regexp.QuoteMeta("delete from t where id = 9")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	var feedback []string
	result, err := Run(context.Background(), conn, "delete from t where id = 9",
		Options{Feedback: func(line string) { feedback = append(feedback, line) }})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, []string{"Done."}, feedback)
}

func TestRun_NoCommitForBlacklistedDialect(t *testing.T) {
	connections.BlacklistCommit("vertica")

	conn, mock := mockConnection(t, "vertica", "run_nocommit")
	mock.ExpectQuery(regexp.QuoteMeta("select 1")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	_, err := Run(context.Background(), conn, "select 1", Options{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_RejectsBegin(t *testing.T) {
	conn, _ := mockConnection(t, "postgresql", "run_begin")

	_, err := Run(context.Background(), conn, "begin; insert into t values (1); commit", Options{})
	assert.ErrorIs(t, err, ErrManagedTransaction)
}

func TestRun_FatalErrorResetsConnection(t *testing.T) {
	conn, mock := mockConnection(t, "postgresql", "run_fatal")
	mock.ExpectQuery(regexp.QuoteMeta("select 1")).WillReturnError(io.EOF)
	mock.ExpectClose()

	_, err := Run(context.Background(), conn, "select 1", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "re-run the cell")
}

func TestRun_EmptyScript(t *testing.T) {
	conn, _ := mockConnection(t, "postgresql", "run_empty")

	result, err := Run(context.Background(), conn, "  ;  ", Options{})
	require.NoError(t, err)
	assert.Nil(t, result)
}
