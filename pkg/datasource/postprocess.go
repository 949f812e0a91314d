package datasource

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PostProcessor adjusts the decoded DSN parts for one dialect before the
// connection string is built. Dialects with quirks (credential files,
// schema folding, path restrictions) register one at init.
type PostProcessor func(datasourceID string, parts *DSNParts) error

var postProcessors = map[string]PostProcessor{}

// RegisterPostProcessor registers a dialect post-processor. Registering
// the same dialect twice is a programming error.
func RegisterPostProcessor(dialect string, fn PostProcessor) {
	if _, exists := postProcessors[dialect]; exists {
		panic(fmt.Sprintf("post-processor for %q already registered", dialect))
	}
	postProcessors[dialect] = fn
}

// postProcess runs the dialect's post-processor, if any.
func postProcess(dialect, datasourceID string, parts *DSNParts) error {
	fn, ok := postProcessors[dialect]
	if !ok {
		return nil
	}
	if err := fn(datasourceID, parts); err != nil {
		return fmt.Errorf("post-processing %s datasource %s: %w", dialect, datasourceID, err)
	}
	return nil
}

func init() {
	RegisterPostProcessor("snowflake", postprocessSnowflake)
	RegisterPostProcessor("bigquery", postprocessBigQuery)
	RegisterPostProcessor("sqlite", postprocessSQLite)
	RegisterPostProcessor("duckdb", postprocessSQLite)
}

// postprocessSnowflake folds a schema query parameter into the database
// path, which is how snowflake addresses "database/schema".
func postprocessSnowflake(_ string, parts *DSNParts) error {
	schema, ok := parts.Query["schema"]
	if !ok {
		return nil
	}
	delete(parts.Query, "schema")
	parts.Database = parts.Database + "/" + schema
	return nil
}

// postprocessBigQuery materializes base64 credential file contents into a
// per-datasource file and points the DSN at its path. Users can have
// multiple BigQuery datasources, so the file name carries the id.
func postprocessBigQuery(datasourceID string, parts *DSNParts) error {
	encoded, ok := parts.Query["credential_file_contents"]
	if !ok {
		return nil
	}
	delete(parts.Query, "credential_file_contents")

	contents, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decoding credential file contents: %w", err)
	}

	path := filepath.Join(os.TempDir(), datasourceID+"_bigquery_credentials.json")
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}

	parts.setQuery("credentials_path", path)
	return nil
}

// postprocessSQLite rejects database files outside the project working
// directory or the temp dir. In-memory databases are always allowed.
func postprocessSQLite(_ string, parts *DSNParts) error {
	path := parts.Database
	if path == "" || path == ":memory:" {
		return nil
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving database path %q: %w", path, err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	for _, parent := range []string{cwd, os.TempDir()} {
		if strings.HasPrefix(resolved, parent+string(filepath.Separator)) || resolved == parent {
			return nil
		}
	}
	return fmt.Errorf(
		"database files should be located within either the project or the temp directory, got %q", path)
}
