package connections

import (
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T, handle, humanName string) *Connection {
	t.Helper()
	conn, err := NewConnection(handle, humanName, "postgresql", "postgres", "dsn")
	require.NoError(t, err)
	return conn
}

func TestNewConnection_RequiresAtPrefix(t *testing.T) {
	_, err := NewConnection("nope", "", "postgresql", "postgres", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with @")
}

func TestNewConnection_RequiresDriver(t *testing.T) {
	_, err := NewConnection("@abc", "", "postgresql", "", "dsn")
	require.Error(t, err)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	conn := newTestConnection(t, "@abc123", "My PostgreSQL Connection")
	require.NoError(t, reg.Register(conn))

	byHandle, err := reg.Get("@abc123")
	require.NoError(t, err)
	assert.Same(t, conn, byHandle)

	byName, err := reg.Get("My PostgreSQL Connection")
	require.NoError(t, err)
	assert.Same(t, conn, byName)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newTestConnection(t, "@abc", "")))
	assert.Error(t, reg.Register(newTestConnection(t, "@abc", "")))
}

func TestRegistry_UnknownHandle(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get("@3244356456")
	require.ErrorIs(t, err, ErrUnknownConnection)

	_, err = reg.Get("not a handle")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownConnection)
}

func TestRegistry_DefaultTracksLastRegistered(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Default()
	require.Error(t, err)

	first := newTestConnection(t, "@first", "")
	second := newTestConnection(t, "@second", "")
	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(second))

	def, err := reg.Default()
	require.NoError(t, err)
	assert.Same(t, second, def)

	require.NoError(t, reg.SetDefault("@first"))
	def, err = reg.Default()
	require.NoError(t, err)
	assert.Same(t, first, def)
}

func TestRegistry_List(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newTestConnection(t, "@b", "bee")))
	require.NoError(t, reg.Register(newTestConnection(t, "@a", "ay")))

	infos := reg.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "@a", infos[0].Handle)
	assert.True(t, infos[0].IsDefault)
	assert.Equal(t, "@b", infos[1].Handle)
	assert.False(t, infos[1].IsDefault)
}

func TestRegistry_CloseRemovesConnection(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newTestConnection(t, "@gone", "")))
	require.NoError(t, reg.Close("@gone"))

	_, err := reg.Get("@gone")
	assert.ErrorIs(t, err, ErrUnknownConnection)

	_, err = reg.Default()
	assert.Error(t, err)
}

func TestConnection_LazyOpenAndReset(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	opens := 0
	restore := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		opens++
		assert.Equal(t, "postgres", driver)
		return db, nil
	}
	defer func() { sqlOpen = restore }()

	conn := newTestConnection(t, "@lazy", "")
	assert.Equal(t, 0, opens)

	got, err := conn.DB()
	require.NoError(t, err)
	assert.Same(t, db, got)

	_, err = conn.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, opens, "pool should be reused")

	require.NoError(t, conn.Reset())
	_, err = conn.DB()
	require.NoError(t, err)
	assert.Equal(t, 2, opens, "reset should force a new pool")
}

func TestNeedsCommit(t *testing.T) {
	assert.True(t, NeedsCommit("postgresql"))
	assert.False(t, NeedsCommit("clickhouse"))

	BlacklistCommit("databricks")
	assert.False(t, NeedsCommit("databricks"))
}
