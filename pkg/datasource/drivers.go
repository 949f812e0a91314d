// Package datasource bootstraps SQL datasource connections from the
// secret files injected into the kernel environment, one triplet of JSON
// files per datasource.
package datasource

import (
	"database/sql"
	"fmt"
	"sync"

	// Drivers linked into every kernel image.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/trinodb/trino-go-client/trino"
	_ "modernc.org/sqlite"
)

var (
	dialectMu sync.RWMutex

	// dialectDrivers maps datasource dialect names to database/sql driver
	// names. Several dialects speak the postgres or mysql wire protocol
	// and share a driver.
	dialectDrivers = map[string]string{
		"postgres":      "postgres",
		"postgresql":    "postgres",
		"redshift":      "postgres",
		"cockroachdb":   "postgres",
		"mysql":         "mysql",
		"mariadb":       "mysql",
		"singlestoredb": "mysql",
		"trino":         "trino",
		"duckdb":        "duckdb",
		"sqlite":        "sqlite",
	}
)

// RegisterDialect maps a dialect name to a database/sql driver name.
// Embedders that link extra drivers can extend the mapping.
func RegisterDialect(dialect, driver string) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	dialectDrivers[dialect] = driver
}

// DriverFor resolves the driver name for a dialect.
func DriverFor(dialect string) (string, error) {
	dialectMu.RLock()
	defer dialectMu.RUnlock()

	driver, ok := dialectDrivers[dialect]
	if !ok {
		return "", fmt.Errorf("no driver available for dialect %q", dialect)
	}
	return driver, nil
}

// requireDrivers verifies every named driver is linked into this binary.
// Drivers cannot be installed on the fly, so a missing driver is a hard
// error telling the user which one the kernel image lacks.
func requireDrivers(datasourceID string, names []string) error {
	linked := make(map[string]struct{})
	for _, name := range sql.Drivers() {
		linked[name] = struct{}{}
	}

	for _, name := range names {
		if _, ok := linked[name]; !ok {
			return fmt.Errorf(
				"datasource %q requires driver %q, which is not linked into this kernel image",
				datasourceID, name)
		}
	}
	return nil
}
