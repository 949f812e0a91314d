// Package connections manages the registry of datasource connections
// available to SQL cells. Each connection wraps a database/sql pool plus
// the metadata needed to address it from a cell ("@handle" or the
// user-assigned datasource name).
package connections

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// sqlOpen allows tests to substitute pool construction.
var sqlOpen = sql.Open

// Connection is one registered datasource: a lazily opened sql.DB plus
// naming and dialect metadata.
type Connection struct {
	handle    string
	humanName string
	dialect   string
	driver    string
	dsn       string

	mu sync.Mutex
	db *sql.DB
}

// NewConnection builds a connection. The handle must start with "@"; it is
// the hex of the datasource id for bootstrapped datasources, or a reserved
// name like "@noteable" for the local database. No pool is opened until DB
// is first called.
func NewConnection(handle, humanName, dialect, driver, dsn string) (*Connection, error) {
	if !strings.HasPrefix(handle, "@") {
		return nil, fmt.Errorf("connection handle %q must start with @", handle)
	}
	if driver == "" {
		return nil, fmt.Errorf("connection %s: driver is required", handle)
	}
	return &Connection{
		handle:    handle,
		humanName: humanName,
		dialect:   dialect,
		driver:    driver,
		dsn:       dsn,
	}, nil
}

// Handle returns the sql cell handle ("@...").
func (c *Connection) Handle() string { return c.handle }

// HumanName returns the name the user gave the datasource, if any.
func (c *Connection) HumanName() string { return c.humanName }

// Dialect returns the SQL dialect name (e.g. "postgresql", "trino").
func (c *Connection) Dialect() string { return c.dialect }

// Driver returns the database/sql driver name backing this connection.
func (c *Connection) Driver() string { return c.driver }

// DB returns the connection pool, opening it on first use.
func (c *Connection) DB() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		db, err := sqlOpen(c.driver, c.dsn)
		if err != nil {
			return nil, fmt.Errorf("opening %s connection %s: %w", c.dialect, c.handle, err)
		}
		c.db = db
	}
	return c.db, nil
}

// Reset disposes the pool so the next use reconnects from scratch. Used
// after fatal driver errors that poison pooled connections.
func (c *Connection) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil {
		return fmt.Errorf("disposing pool for %s: %w", c.handle, err)
	}
	return nil
}

// Close closes the pool if one was opened.
func (c *Connection) Close() error {
	return c.Reset()
}
