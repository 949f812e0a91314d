package connections

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownConnection is returned when a cell references a datasource
// handle that was never bootstrapped. The usual cause is a datasource
// created after the kernel launched.
var ErrUnknownConnection = errors.New(
	"cannot find data connection. If you recently created this connection, please restart the kernel")

// Registry tracks all bootstrapped connections and which one is current.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*Connection
	current string
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register adds a connection and makes it the current default.
func (r *Registry) Register(conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.Handle()]; exists {
		return fmt.Errorf("connection %s already registered", conn.Handle())
	}

	r.conns[conn.Handle()] = conn
	r.current = conn.Handle()
	return nil
}

// Get resolves a connection by handle or by human name. A miss on an
// "@"-prefixed identifier returns ErrUnknownConnection, since that always
// means a datasource the kernel does not know about.
func (r *Registry) Get(ident string) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if conn, ok := r.conns[ident]; ok {
		return conn, nil
	}
	for _, conn := range r.conns {
		if conn.HumanName() != "" && conn.HumanName() == ident {
			return conn, nil
		}
	}

	if strings.HasPrefix(ident, "@") {
		return nil, fmt.Errorf("%q: %w", ident, ErrUnknownConnection)
	}
	return nil, fmt.Errorf("no connection named %q", ident)
}

// Default returns the current default connection, or an error when none
// has been registered.
func (r *Registry) Default() (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == "" {
		return nil, errors.New("no default connection established")
	}
	return r.conns[r.current], nil
}

// SetDefault marks the identified connection as the default for cells that
// name no connection.
func (r *Registry) SetDefault(ident string) error {
	conn, err := r.Get(ident)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = conn.Handle()
	return nil
}

// ConnectionInfo is one row of the connection listing.
type ConnectionInfo struct {
	Handle    string
	HumanName string
	Dialect   string
	IsDefault bool
}

// List returns all connections sorted by handle, with the default marked.
func (r *Registry) List() []ConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ConnectionInfo, 0, len(r.conns))
	for handle, conn := range r.conns {
		infos = append(infos, ConnectionInfo{
			Handle:    handle,
			HumanName: conn.HumanName(),
			Dialect:   conn.Dialect(),
			IsDefault: handle == r.current,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Handle < infos[j].Handle })
	return infos
}

// Close removes the identified connection and closes its pool. Closing the
// default leaves no default until the next Register or SetDefault.
func (r *Registry) Close(ident string) error {
	conn, err := r.Get(ident)
	if err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.conns, conn.Handle())
	if r.current == conn.Handle() {
		r.current = ""
	}
	r.mu.Unlock()

	return conn.Close()
}

// CloseAll closes every registered connection, keeping the first error.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Connection)
	r.current = ""
	r.mu.Unlock()

	var firstErr error
	for _, conn := range conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
